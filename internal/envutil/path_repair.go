// Package envutil repairs the process environment of GUI-launched processes.
package envutil

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/logger"
)

const (
	skipPathPatchEnv = "TOOLBRIDGE_SKIP_PATH_PATCH"
	termEnv          = "TERM"
	shellEnv         = "SHELL"
	pathEnv          = "PATH"

	loginShellTimeout = 5 * time.Second
)

// HomebrewDirs are the directories whose absence marks a truncated GUI PATH.
var HomebrewDirs = []string{"/opt/homebrew/bin", "/usr/local/bin"}

// Result describes what a repair did.
type Result struct {
	Changed bool     `json:"changed"`
	Added   []string `json:"added,omitempty"`
	Skipped string   `json:"skipped,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type pathCacheEntry struct {
	path string
	err  error
}

// Repairer merges the login-shell PATH into the process PATH. The zero
// value is not usable; see NewRepairer.
type Repairer struct {
	GOOS      string
	Getenv    func(string) string
	Setenv    func(key, value string) error
	LoginPATH func(ctx context.Context, shell string) (string, error)
	// OnChange is called after PATH was modified.
	OnChange func(Result)

	mu    sync.Mutex
	cache map[string]pathCacheEntry
}

// NewRepairer returns a Repairer bound to the real process environment.
func NewRepairer() *Repairer {
	return &Repairer{
		GOOS:      runtime.GOOS,
		Getenv:    os.Getenv,
		Setenv:    os.Setenv,
		LoginPATH: resolveLoginShellPATH,
	}
}

var defaultRepairer = NewRepairer()

// FixEnvironment repairs the process PATH once per login shell. It is
// idempotent and best effort; the outcome is logged and returned.
func FixEnvironment(ctx context.Context) Result {
	return defaultRepairer.Fix(ctx)
}

// EnsureAsync repairs PATH before returning when it lacks the Homebrew
// directories. Otherwise the first detection can proceed at once, and the
// rest of the login-shell PATH (npm, nvm, ~/.local/bin and similar) is
// merged in the background.
func EnsureAsync(ctx context.Context) <-chan Result {
	return defaultRepairer.EnsureAsync(ctx)
}

// EnsureAsync is the Repairer form of the package function. The returned
// channel yields the outcome once and is then closed.
func (r *Repairer) EnsureAsync(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	if !HasHomebrewDir(r.Getenv(pathEnv)) {
		out <- r.Fix(ctx)
		close(out)
		return out
	}
	go func() {
		defer close(out)
		out <- r.report(r.fix(context.WithoutCancel(ctx), true))
	}()
	return out
}

// Fix merges the login-shell PATH into PATH when the Homebrew directories
// are missing. Directories are only ever added, and PATH is written at most
// once per call.
func (r *Repairer) Fix(ctx context.Context) Result {
	return r.report(r.fix(ctx, false))
}

func (r *Repairer) report(res Result) Result {
	switch {
	case res.Error != "":
		logger.Warnf("PATH repair failed: %s", res.Error)
	case res.Changed:
		logger.Infof("PATH repaired from login shell, added %d directories", len(res.Added))
		if r.OnChange != nil {
			r.OnChange(res)
		}
	case res.Skipped != "":
		logger.Debugf("PATH repair skipped: %s", res.Skipped)
	}
	return res
}

// fix does the merge. With complete set it merges even when the Homebrew
// directories are already present.
func (r *Repairer) fix(ctx context.Context, complete bool) Result {
	if r.GOOS != "darwin" {
		return Result{Skipped: "not macOS"}
	}
	if strings.TrimSpace(r.Getenv(skipPathPatchEnv)) != "" {
		return Result{Skipped: skipPathPatchEnv + " is set"}
	}
	if strings.TrimSpace(r.Getenv(termEnv)) != "" {
		return Result{Skipped: "launched from a terminal"}
	}

	current := r.Getenv(pathEnv)
	if !complete && HasHomebrewDir(current) {
		return Result{Skipped: "PATH already contains Homebrew directories"}
	}

	shell := strings.TrimSpace(r.Getenv(shellEnv))
	if shell == "" {
		shell = "/bin/zsh"
	}
	loginPath, err := r.loginShellPATH(ctx, shell)
	if err != nil {
		return Result{Error: err.Error()}
	}
	if strings.TrimSpace(loginPath) == "" {
		return Result{Skipped: "login shell reported an empty PATH"}
	}

	merged := MergePATH(loginPath, current)
	added := addedEntries(current, merged)
	if len(added) == 0 {
		return Result{Skipped: "nothing to add"}
	}
	if err := r.Setenv(pathEnv, merged); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Changed: true, Added: added}
}

func (r *Repairer) loginShellPATH(ctx context.Context, shell string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = make(map[string]pathCacheEntry)
	}
	if cached, ok := r.cache[shell]; ok {
		return cached.path, cached.err
	}
	path, err := r.LoginPATH(ctx, shell)
	if ctx.Err() == nil {
		r.cache[shell] = pathCacheEntry{path: path, err: err}
	}
	return path, err
}

func resolveLoginShellPATH(ctx context.Context, shell string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, loginShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, "-l", "-c", "echo $PATH")
	cmd.Env = append(os.Environ(), "LANG=C", "LC_ALL=C")
	cmd.WaitDelay = time.Second
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	// Shell init files may print banners; PATH is the last line.
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// HasHomebrewDir reports whether path lists any of HomebrewDirs.
func HasHomebrewDir(path string) bool {
	for _, entry := range strings.Split(path, string(os.PathListSeparator)) {
		for _, dir := range HomebrewDirs {
			if strings.TrimRight(strings.TrimSpace(entry), "/") == dir {
				return true
			}
		}
	}
	return false
}

// MergePATH joins primary and fallback, dropping duplicates and empty
// entries. Every entry of fallback is kept.
func MergePATH(primary, fallback string) string {
	separator := string(os.PathListSeparator)
	seen := map[string]struct{}{}
	out := make([]string, 0, 8)

	appendPath := func(path string) {
		for _, entry := range strings.Split(path, separator) {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if _, exists := seen[entry]; exists {
				continue
			}
			seen[entry] = struct{}{}
			out = append(out, entry)
		}
	}

	appendPath(primary)
	appendPath(fallback)

	return strings.Join(out, separator)
}

func addedEntries(before, after string) []string {
	separator := string(os.PathListSeparator)
	had := map[string]struct{}{}
	for _, entry := range strings.Split(before, separator) {
		had[strings.TrimSpace(entry)] = struct{}{}
	}
	var added []string
	for _, entry := range strings.Split(after, separator) {
		if _, ok := had[entry]; !ok {
			added = append(added, entry)
		}
	}
	return added
}
