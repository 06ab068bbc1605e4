package detection

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// CustomDetector detects a user-defined CLI described in settings.
type CustomDetector struct {
	CLIDetector
	DisplayName string
}

// NewCustomDetector builds a detector from a custom tool definition. Tools
// without signatures fall back to the default version pattern.
func NewCustomDetector(tool profile.CustomTool, opts Options) (*CustomDetector, error) {
	opts = opts.withDefaults()
	goos := opts.Prober.Env.GOOS

	if tool.Name == "" || tool.Command == "" {
		return nil, fmt.Errorf("custom tool needs a name and a command")
	}

	spec := VerifySpec{
		VersionSignatures: tool.VersionSignature,
		HelpSignatures:    tool.HelpSignature,
		MinimumVersion:    tool.MinimumVersion,
	}
	switch {
	case tool.SemverPattern != "":
		re, err := regexp.Compile(tool.SemverPattern)
		if err != nil {
			return nil, fmt.Errorf("custom tool %s: invalid semver_pattern: %w", tool.Name, err)
		}
		spec.SemverPattern = re
	case len(tool.VersionSignature) == 0:
		spec.SemverPattern = DefaultSemverPattern
	}
	if len(spec.HelpSignatures) == 0 {
		spec.HelpSignatures = spec.VersionSignatures
	}

	display := tool.DisplayName
	if display == "" {
		display = tool.Name
	}

	d := &CustomDetector{CLIDetector: opts.base(tool.Name, tool.Command), DisplayName: display}
	d.Paths = slices.Concat(tool.WellKnownPaths, CommonPaths(tool.Command, display, goos))
	d.Spec = spec
	d.ConfigPaths = tool.ConfigPaths
	d.Instructions = tool.Instructions
	if strings.TrimSpace(d.Instructions) == "" {
		d.Instructions = fmt.Sprintf("%s is not installed.\n\nInstall %q and make sure it is on your PATH.", display, tool.Command)
	}
	return d, nil
}

// CustomDetectors builds detectors for every custom tool, skipping and
// reporting invalid definitions.
func CustomDetectors(tools []profile.CustomTool, opts Options) ([]Detector, []error) {
	var out []Detector
	var errs []error
	for _, t := range tools {
		d, err := NewCustomDetector(t, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	return out, errs
}
