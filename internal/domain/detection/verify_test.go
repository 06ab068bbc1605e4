package detection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
)

var ollamaSpec = VerifySpec{
	VersionSignatures: []string{"ollama"},
	HelpSignatures:    []string{"ollama"},
	SemverPattern:     DefaultSemverPattern,
}

func TestVerifier_Verify(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()

	tests := []struct {
		name     string
		script   string
		wantVia  string
		wantVer  string
		wantKind apperr.Kind
	}{
		{
			name:    "version signature",
			script:  `echo "ollama version is 0.1.34"`,
			wantVia: "--version",
			wantVer: "0.1.34",
		},
		{
			name:    "semver only",
			script:  `echo "2.1"`,
			wantVia: "--version",
			wantVer: "2.1",
		},
		{
			name: "help fallback with non-zero exit",
			script: `if [ "$1" = "--version" ]; then exit 1; fi
echo "Usage: OLLAMA [command]" >&2
exit 2`,
			wantVia: "--help",
		},
		{
			name:     "unknown binary",
			script:   `echo hello`,
			wantKind: apperr.KindVerificationFailed,
		},
		{
			name:     "empty version and unrelated help",
			script:   `if [ "$1" = "--help" ]; then echo "usage: thing"; fi`,
			wantKind: apperr.KindVerificationFailed,
		},
	}

	v := NewVerifier(ExecRunner{}, 2*time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeShim(t, dir, "tool-"+sanitize(tt.name), tt.script)
			res, err := v.Verify(context.Background(), path, ollamaSpec)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, res.Path)
			assert.Equal(t, tt.wantVia, res.Via)
			assert.Equal(t, tt.wantVer, res.Version)
		})
	}
}

func TestVerifier_RejectsDirectoryAndMissing(t *testing.T) {
	runner := newSpyRunner()
	v := NewVerifier(runner, time.Second)

	_, err := v.Verify(context.Background(), t.TempDir(), ollamaSpec)
	assert.ErrorIs(t, err, apperr.ErrVerificationFailed)

	_, err = v.Verify(context.Background(), "/definitely/not/here/ollama", ollamaSpec)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Empty(t, runner.history(), "nothing may be spawned")
}

func TestVerifier_TimeoutRejectsAndKills(t *testing.T) {
	skipWithoutShell(t)
	path := writeShim(t, t.TempDir(), "ollama", "exec sleep 30")

	v := NewVerifier(ExecRunner{}, 200*time.Millisecond)
	start := time.Now()
	_, err := v.Verify(context.Background(), path, ollamaSpec)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestVerifier_CancelledContext(t *testing.T) {
	skipWithoutShell(t)
	path := writeShim(t, t.TempDir(), "ollama", "exec sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := NewVerifier(ExecRunner{}, 10*time.Second).Verify(ctx, path, ollamaSpec)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifier_LossyOutput(t *testing.T) {
	skipWithoutShell(t)
	path := writeShim(t, t.TempDir(), "gemini", `printf 'gemini \377\376 1.2.3\n'`)

	res, err := NewVerifier(ExecRunner{}, 2*time.Second).Verify(context.Background(), path, VerifySpec{VersionSignatures: []string{"gemini"}})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", res.Version)
	assert.Contains(t, res.Output, "�")
}

func TestExtractVersion(t *testing.T) {
	tests := map[string]string{
		"ollama version is 0.1.34":          "0.1.34",
		"1.0.35 (Claude Code)":              "1.0.35",
		"gemini 0.9":                        "0.9",
		"v2.10.1-beta and later 3.4":        "2.10.1",
		"no digits here":                    "",
		"build 12 on 2024.05":               "2024.05",
		"first 1.2 then triple 3.4.5 later": "3.4.5",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractVersion(in), in)
	}
}

func TestCheckMinimum(t *testing.T) {
	assert.NoError(t, CheckMinimum("1.2.3", "1.2.0"))
	assert.NoError(t, CheckMinimum("1.2", "1.2.0"))
	assert.NoError(t, CheckMinimum("", "1.0.0"))
	assert.NoError(t, CheckMinimum("1.0.0", ""))
	assert.NoError(t, CheckMinimum("weird", "1.0.0"))

	err := CheckMinimum("0.9.1", "1.0.0")
	require.Error(t, err)
	assert.Equal(t, "version 0.9.1 is older than the minimum supported 1.0.0", err.Error())
}

func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == ' ' {
			out[i] = '-'
		}
	}
	return string(out)
}
