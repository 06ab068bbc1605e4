package detection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/coreos/go-semver/semver"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
)

// DefaultVerifyTimeout bounds each --version and --help invocation.
const DefaultVerifyTimeout = 5 * time.Second

var (
	// DefaultSemverPattern accepts output that carries a version number.
	DefaultSemverPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

	versionTriple = regexp.MustCompile(`\d+\.\d+\.\d+`)
	versionPair   = regexp.MustCompile(`\d+\.\d+`)
)

// VerifySpec says how to recognise a tool from its own output.
type VerifySpec struct {
	// VersionSignatures are matched case-insensitively against --version output.
	VersionSignatures []string
	// HelpSignatures are matched against --help output when --version did
	// not identify the tool.
	HelpSignatures []string
	// SemverPattern also identifies the tool from --version output. Nil
	// disables the pattern match.
	SemverPattern  *regexp.Regexp
	MinimumVersion string
}

// Verification is the evidence that a path is the intended tool.
type Verification struct {
	Path    string
	Via     string
	Output  string
	Version string
}

// Verifier runs candidate binaries to confirm their identity.
type Verifier struct {
	Runner  Runner
	Timeout time.Duration
}

// NewVerifier returns a Verifier with the given per-invocation timeout.
func NewVerifier(runner Runner, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &Verifier{Runner: runner, Timeout: timeout}
}

// Verify confirms that path is the tool described by spec. Missing files
// and directories are rejected without spawning anything. A non-zero exit
// status alone does not reject; a timeout does.
func (v *Verifier) Verify(ctx context.Context, path string, spec VerifySpec) (Verification, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Verification{}, apperr.Wrap(apperr.KindNotFound, err, "stat %s", path)
	}
	if info.IsDir() {
		return Verification{}, apperr.New(apperr.KindVerificationFailed, "%s is a directory", path)
	}

	versionOut, err := v.run(ctx, path, "--version")
	if err != nil {
		return Verification{}, err
	}
	res := Verification{Path: path, Output: versionOut, Version: ExtractVersion(versionOut)}
	if containsAny(versionOut, spec.VersionSignatures) ||
		(spec.SemverPattern != nil && spec.SemverPattern.MatchString(versionOut)) {
		res.Via = "--version"
		return res, nil
	}

	helpOut, err := v.run(ctx, path, "--help")
	if err != nil {
		return Verification{}, err
	}
	if containsAny(helpOut, spec.HelpSignatures) {
		res.Via = "--help"
		return res, nil
	}

	return Verification{}, apperr.New(apperr.KindVerificationFailed, "%s did not identify itself", path)
}

// run executes path with one flag under the verify timeout. Only failing to
// start, the timeout and cancellation are errors.
func (v *Verifier) run(ctx context.Context, path, flag string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	out, err := v.Runner.Run(runCtx, path, flag)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", apperr.New(apperr.KindTimeout, "%s %s exceeded %s", path, flag, v.Timeout)
	}
	if err != nil && len(out) == 0 && !isExitError(err) {
		return "", apperr.Wrap(apperr.KindVerificationFailed, err, "run %s %s", path, flag)
	}
	return strings.ToValidUTF8(string(out), "\uFFFD"), nil
}

// ExtractVersion returns the first x.y.z in output, falling back to x.y.
func ExtractVersion(output string) string {
	if m := versionTriple.FindString(output); m != "" {
		return m
	}
	return versionPair.FindString(output)
}

// CheckMinimum returns an error when version is older than minimum. Values
// that do not parse as versions are not compared.
func CheckMinimum(version, minimum string) error {
	if version == "" || minimum == "" {
		return nil
	}
	have, err := parseSemver(version)
	if err != nil {
		return nil
	}
	want, err := parseSemver(minimum)
	if err != nil {
		return nil
	}
	if have.LessThan(*want) {
		return fmt.Errorf("version %s is older than the minimum supported %s", version, minimum)
	}
	return nil
}

func parseSemver(s string) (*semver.Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if strings.Count(s, ".") == 1 {
		s += ".0"
	}
	return semver.NewVersion(s)
}

func containsAny(output string, signatures []string) bool {
	if output == "" {
		return false
	}
	lower := strings.ToLower(output)
	for _, sig := range signatures {
		if sig != "" && strings.Contains(lower, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
