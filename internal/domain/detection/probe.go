package detection

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// Prober enumerates candidate executables for a command name.
type Prober struct {
	Runner Runner
	Env    Env
	// LoginShells are tried in order for the login-shell strategy.
	LoginShells []string
}

// NewProber returns a Prober using runner and the process environment.
func NewProber(runner Runner, env Env) *Prober {
	return &Prober{Runner: runner, Env: env, LoginShells: loginShells(env.getenv("SHELL"))}
}

// loginShells puts the user's $SHELL first, then zsh and bash.
func loginShells(userShell string) []string {
	shells := []string{"zsh", "bash"}
	if userShell == "" {
		return shells
	}
	out := []string{userShell}
	for _, sh := range shells {
		if filepath.Base(userShell) != sh {
			out = append(out, sh)
		}
	}
	return out
}

// Probe yields candidates lazily, strategy by strategy: PATH search,
// well-known locations, then the login shell on Unix. The caller stops the
// sequence as soon as a candidate verifies.
func (p *Prober) Probe(ctx context.Context, command string, wellKnown []string) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		if c, ok := p.PathLookup(ctx, command); ok {
			if !yield(c) {
				return
			}
		}
		for _, c := range p.WellKnown(wellKnown) {
			if ctx.Err() != nil {
				return
			}
			if !yield(c) {
				return
			}
		}
		if p.Env.windows() || ctx.Err() != nil {
			return
		}
		if c, ok := p.LoginShell(ctx, command); ok {
			yield(c)
		}
	}
}

// Candidates runs every strategy and returns all candidates in discovery
// order, duplicates included.
func (p *Prober) Candidates(ctx context.Context, command string, wellKnown []string) []Candidate {
	var out []Candidate
	for c := range p.Probe(ctx, command, wellKnown) {
		out = append(out, c)
	}
	return out
}

// PathLookup asks which (where on Windows) for command and returns the
// first non-empty line of its output.
func (p *Prober) PathLookup(ctx context.Context, command string) (Candidate, bool) {
	lookup := "which"
	if p.Env.windows() {
		lookup = "where"
	}
	out, err := p.Runner.Run(ctx, lookup, command)
	if err != nil {
		return Candidate{}, false
	}
	path := firstPathLine(out)
	if path == "" {
		return Candidate{}, false
	}
	return Candidate{Path: path, InPath: true, Source: SourcePATH}, true
}

// LoginShell runs `<shell> -l -c "which <command>"` for each configured
// shell, recovering the PATH an interactive terminal would have.
func (p *Prober) LoginShell(ctx context.Context, command string) (Candidate, bool) {
	script := "which " + shellescape.Quote(command)
	for _, shell := range p.LoginShells {
		if ctx.Err() != nil {
			return Candidate{}, false
		}
		out, err := p.Runner.Run(ctx, shell, "-l", "-c", script)
		if err != nil {
			continue
		}
		if path := firstPathLine(out); path != "" {
			return Candidate{Path: path, InPath: true, Source: SourceLoginShell}, true
		}
	}
	return Candidate{}, false
}

// WellKnown expands patterns into candidates, keeping pattern order.
// "~", $VAR and %VAR% are expanded, and patterns containing glob
// metacharacters are matched against the filesystem in lexical order.
func (p *Prober) WellKnown(patterns []string) []Candidate {
	var out []Candidate
	for _, pattern := range patterns {
		expanded := ExpandPath(pattern, p.Env)
		if expanded == "" {
			continue
		}
		if !strings.ContainsAny(expanded, "*?[") {
			out = append(out, Candidate{Path: expanded, Source: SourceWellKnown})
			continue
		}
		matches, err := filepath.Glob(expanded)
		if err != nil {
			continue
		}
		for _, m := range matches {
			out = append(out, Candidate{Path: m, Source: SourceWellKnown})
		}
	}
	return out
}

var windowsVarPattern = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)

// ExpandPath expands a leading "~" and environment references. A pattern
// referencing an unset variable expands to "" so that it is skipped.
func ExpandPath(pattern string, env Env) string {
	missing := false
	lookup := func(key string) string {
		v := env.getenv(key)
		if v == "" {
			missing = true
		}
		return v
	}

	out := windowsVarPattern.ReplaceAllStringFunc(pattern, func(m string) string {
		return lookup(m[1 : len(m)-1])
	})
	out = os.Expand(out, lookup)

	if out == "~" || strings.HasPrefix(out, "~/") || strings.HasPrefix(out, `~\`) {
		if env.Home == "" {
			return ""
		}
		out = env.Home + out[1:]
	}
	if missing {
		return ""
	}
	return out
}

func firstPathLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// zsh's which reports aliases and builtins in prose.
		if !filepath.IsAbs(line) && !isWindowsAbs(line) {
			return ""
		}
		return line
	}
	return ""
}

func isWindowsAbs(p string) bool {
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}
