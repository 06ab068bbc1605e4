package detection

import (
	"context"
	"os"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// PartialInstallMessage is reported when a tool's configuration exists but
// no executable could be verified.
const PartialInstallMessage = "Configuration found but executable not in PATH"

// Detector is the capability set every tool detector provides.
type Detector interface {
	Name() string
	CommonPaths() []string
	Verify(ctx context.Context, path string) (Verification, error)
	GetVersion(ctx context.Context, path string) string
	// CheckRunning returns nil when the tool has no liveness probe.
	CheckRunning(ctx context.Context) *bool
	// CheckAuth returns nil when the tool has no cheap auth check.
	CheckAuth(ctx context.Context) *bool
	InstallationInstructions() string
	// Detect probes, verifies and inspects the tool. Only cancellation is
	// reported as an error; every other failure ends up in the ToolInfo.
	Detect(ctx context.Context) (ToolInfo, error)
}

// CLIDetector implements detection for a command-line tool. Tool specific
// detectors embed it and fill in the hooks.
type CLIDetector struct {
	ToolName string
	Command  string
	// Paths are well-known locations, tried in order after PATH.
	Paths []string
	Spec  VerifySpec
	// ConfigPaths mark a partial install when present without an executable.
	ConfigPaths  []string
	Instructions string

	Prober   *Prober
	Verifier *Verifier

	RunningCheck func(ctx context.Context) *bool
	AuthCheck    func(ctx context.Context) *bool
}

func (d *CLIDetector) Name() string { return d.ToolName }

func (d *CLIDetector) CommonPaths() []string { return d.Paths }

func (d *CLIDetector) Verify(ctx context.Context, path string) (Verification, error) {
	return d.Verifier.Verify(ctx, path, d.Spec)
}

func (d *CLIDetector) GetVersion(ctx context.Context, path string) string {
	out, err := d.Verifier.run(ctx, path, "--version")
	if err != nil {
		return ""
	}
	return ExtractVersion(out)
}

func (d *CLIDetector) CheckRunning(ctx context.Context) *bool {
	if d.RunningCheck == nil {
		return nil
	}
	return d.RunningCheck(ctx)
}

func (d *CLIDetector) CheckAuth(ctx context.Context) *bool {
	if d.AuthCheck == nil {
		return nil
	}
	return d.AuthCheck(ctx)
}

func (d *CLIDetector) InstallationInstructions() string { return d.Instructions }

// Resolve walks the probe strategies and returns the first candidate that
// verifies.
func (d *CLIDetector) Resolve(ctx context.Context) (Candidate, Verification, bool) {
	tried := make(map[string]bool)
	for c := range d.Prober.Probe(ctx, d.Command, d.Paths) {
		if tried[c.Path] {
			continue
		}
		tried[c.Path] = true

		v, err := d.Verify(ctx, c.Path)
		if err == nil {
			return c, v, true
		}
		if ctx.Err() != nil {
			break
		}
		if apperr.KindOf(err) != apperr.KindNotFound {
			logger.Debugf("%s: rejected %s candidate %s: %v", d.ToolName, c.Source, c.Path, err)
		}
	}
	return Candidate{}, Verification{}, false
}

func (d *CLIDetector) Detect(ctx context.Context) (ToolInfo, error) {
	info := ToolInfo{Name: d.ToolName}

	cand, ver, ok := d.Resolve(ctx)
	if err := ctx.Err(); err != nil {
		return ToolInfo{}, err
	}
	if !ok {
		if path := d.configFound(); path != "" {
			logger.Debugf("%s: configuration at %s but no executable", d.ToolName, path)
			info.Error = PartialInstallMessage
		}
		return info, nil
	}

	info.Installed = true
	info.Path = cand.Path
	info.InPath = cand.InPath
	info.Version = ver.Version
	if err := CheckMinimum(info.Version, d.Spec.MinimumVersion); err != nil {
		info.Error = err.Error()
	}
	info.Running = d.CheckRunning(ctx)
	info.Authenticated = d.CheckAuth(ctx)

	if err := ctx.Err(); err != nil {
		return ToolInfo{}, err
	}
	return info, nil
}

func (d *CLIDetector) configFound() string {
	for _, pattern := range d.ConfigPaths {
		path := ExpandPath(pattern, d.Prober.Env)
		if path == "" {
			continue
		}
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path
		}
	}
	return ""
}

// CommonPaths returns the well-known locations of command on goos, in probe
// order, followed by extras. vendorDir names the install folder used under
// Program Files on Windows.
func CommonPaths(command, vendorDir, goos string, extras ...string) []string {
	var paths []string
	if goos == "windows" {
		paths = []string{
			`%LOCALAPPDATA%\Programs\` + vendorDir + `\` + command + ".exe",
			`%ProgramFiles%\` + vendorDir + `\` + command + ".exe",
			`%LOCALAPPDATA%\npm\` + command + ".cmd",
			`%APPDATA%\npm\` + command + ".cmd",
		}
	} else {
		for _, dir := range []string{
			"~/bin",
			"~/.local/bin",
			"~/.npm-global/bin",
			"~/.nvm/versions/node/*/bin",
			"/opt/homebrew/bin",
			"/usr/local/bin",
			"/usr/bin",
			"/snap/bin",
		} {
			paths = append(paths, dir+"/"+command)
		}
	}
	return append(paths, extras...)
}
