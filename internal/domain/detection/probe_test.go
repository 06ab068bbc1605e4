package detection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	env := Env{
		GOOS: "windows",
		Home: "/home/u",
		Getenv: func(k string) string {
			return map[string]string{"LOCALAPPDATA": `C:\Users\u\AppData\Local`, "XDG": "/x"}[k]
		},
	}
	tests := []struct {
		in   string
		want string
	}{
		{"~/bin/claude", "/home/u/bin/claude"},
		{"~", "/home/u"},
		{"/usr/bin/claude", "/usr/bin/claude"},
		{`%LOCALAPPDATA%\npm\claude.cmd`, `C:\Users\u\AppData\Local\npm\claude.cmd`},
		{"$XDG/bin/tool", "/x/bin/tool"},
		{`%ProgramFiles%\Claude\claude.exe`, ""},
		{"~user/bin", "~user/bin"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in, env))
		})
	}

	assert.Equal(t, "", ExpandPath("~/bin", Env{}))
}

func TestProber_WellKnownGlobOrder(t *testing.T) {
	home := t.TempDir()
	for _, v := range []string{"v20.1.0", "v18.2.0"} {
		dir := filepath.Join(home, ".nvm", "versions", "node", v, "bin")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "claude"), nil, 0755))
	}

	p := NewProber(newSpyRunner(), testEnv(home, nil))
	got := p.WellKnown([]string{"~/bin/claude", "~/.nvm/versions/node/*/bin/claude", "/opt/homebrew/bin/claude"})

	var paths []string
	for _, c := range got {
		assert.Equal(t, SourceWellKnown, c.Source)
		assert.False(t, c.InPath)
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{
		filepath.Join(home, "bin", "claude"),
		filepath.Join(home, ".nvm", "versions", "node", "v18.2.0", "bin", "claude"),
		filepath.Join(home, ".nvm", "versions", "node", "v20.1.0", "bin", "claude"),
		"/opt/homebrew/bin/claude",
	}, paths)
}

func TestProber_PathLookup(t *testing.T) {
	runner := newSpyRunner()
	runner.which["ollama"] = "/usr/local/bin/ollama\n/usr/bin/ollama"
	runner.which["aliased"] = "aliased: aliased to foo"
	p := NewProber(runner, testEnv(t.TempDir(), nil))

	c, ok := p.PathLookup(context.Background(), "ollama")
	require.True(t, ok)
	assert.Equal(t, Candidate{Path: "/usr/local/bin/ollama", InPath: true, Source: SourcePATH}, c)

	_, ok = p.PathLookup(context.Background(), "aliased")
	assert.False(t, ok)
	_, ok = p.PathLookup(context.Background(), "missing")
	assert.False(t, ok)
}

func TestProber_LoginShellFallsThrough(t *testing.T) {
	runner := newSpyRunner()
	runner.shells["zsh"] = "gemini not found"
	runner.shells["bash"] = "\n/home/u/.npm-global/bin/gemini\n"
	p := NewProber(runner, testEnv(t.TempDir(), nil))

	c, ok := p.LoginShell(context.Background(), "gemini")
	require.True(t, ok)
	assert.Equal(t, Candidate{Path: "/home/u/.npm-global/bin/gemini", InPath: true, Source: SourceLoginShell}, c)
	assert.Equal(t, []string{"zsh -l -c which gemini", "bash -l -c which gemini"}, runner.history())
}

func TestProber_LoginShellUsesSHELLFirst(t *testing.T) {
	runner := newSpyRunner()
	p := NewProber(runner, testEnv(t.TempDir(), map[string]string{"SHELL": "/usr/bin/fish"}))
	assert.Equal(t, []string{"/usr/bin/fish", "zsh", "bash"}, p.LoginShells)

	p = NewProber(runner, testEnv(t.TempDir(), map[string]string{"SHELL": "/bin/zsh"}))
	assert.Equal(t, []string{"/bin/zsh", "bash"}, p.LoginShells)

	_, _ = p.LoginShell(context.Background(), "gemini")
	assert.Equal(t, []string{"/bin/zsh -l -c which gemini", "bash -l -c which gemini"}, runner.history())
}

func TestProber_LoginShellQuotes(t *testing.T) {
	runner := newSpyRunner()
	p := NewProber(runner, testEnv(t.TempDir(), nil))
	p.LoginShells = []string{"zsh"}

	_, ok := p.LoginShell(context.Background(), "my tool;rm -rf ~")
	assert.False(t, ok)
	assert.Equal(t, []string{`zsh -l -c which 'my tool;rm -rf ~'`}, runner.history())
}

func TestProber_ProbeIsLazy(t *testing.T) {
	runner := newSpyRunner()
	runner.which["claude"] = "/usr/bin/claude"
	p := NewProber(runner, testEnv(t.TempDir(), nil))

	var first Candidate
	for c := range p.Probe(context.Background(), "claude", []string{"/opt/x/claude"}) {
		first = c
		break
	}
	assert.Equal(t, SourcePATH, first.Source)
	assert.Equal(t, 0, runner.count("-l -c"))
}

func TestProber_CandidatesOrder(t *testing.T) {
	runner := newSpyRunner()
	runner.which["claude"] = "/usr/bin/claude"
	runner.shells["zsh"] = "/home/u/.local/bin/claude"
	env := testEnv(t.TempDir(), nil)
	env.GOOS = "linux"
	p := NewProber(runner, env)

	got := p.Candidates(context.Background(), "claude", []string{"/opt/a/claude", "/opt/b/claude"})
	var sources []string
	for _, c := range got {
		sources = append(sources, c.Source)
	}
	assert.Equal(t, []string{SourcePATH, SourceWellKnown, SourceWellKnown, SourceLoginShell}, sources)

	env.GOOS = "windows"
	p = NewProber(runner, env)
	got = p.Candidates(context.Background(), "claude", nil)
	require.Len(t, got, 1, "windows has no login shell strategy")
	assert.Equal(t, SourcePATH, got[0].Source)
	assert.Contains(t, runner.history(), "where claude")
}

func TestCommonPaths(t *testing.T) {
	unix := CommonPaths("ollama", "Ollama", "linux", "/extra/ollama")
	assert.Equal(t, []string{
		"~/bin/ollama",
		"~/.local/bin/ollama",
		"~/.npm-global/bin/ollama",
		"~/.nvm/versions/node/*/bin/ollama",
		"/opt/homebrew/bin/ollama",
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/snap/bin/ollama",
		"/extra/ollama",
	}, unix)

	win := CommonPaths("claude", "Claude", "windows")
	assert.Equal(t, []string{
		`%LOCALAPPDATA%\Programs\Claude\claude.exe`,
		`%ProgramFiles%\Claude\claude.exe`,
		`%LOCALAPPDATA%\npm\claude.cmd`,
		`%APPDATA%\npm\claude.cmd`,
	}, win)
}
