package detection

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ClaudeCodeDetector finds the Claude Code CLI. A leftover configuration
// without a binary is reported as a partial install.
type ClaudeCodeDetector struct {
	CLIDetector
}

func NewClaudeCodeDetector(opts Options) *ClaudeCodeDetector {
	opts = opts.withDefaults()
	goos := opts.Prober.Env.GOOS

	d := &ClaudeCodeDetector{CLIDetector: opts.base(ToolClaudeCode, "claude")}
	d.Paths = CommonPaths("claude", "Claude", goos, claudeExtraPaths(goos)...)
	d.Spec = VerifySpec{
		VersionSignatures: []string{"claude"},
		HelpSignatures:    []string{"claude"},
		SemverPattern:     DefaultSemverPattern,
	}
	d.ConfigPaths = []string{
		"~/.claude.json",
		"~/.claude/settings.json",
		"~/.config/claude-code/config.json",
	}
	if goos == "windows" {
		d.ConfigPaths = append(d.ConfigPaths, `%APPDATA%\claude-code\config.json`)
	}
	d.Instructions = claudeInstructions(goos)
	d.AuthCheck = d.checkAuth
	return d
}

func claudeExtraPaths(goos string) []string {
	if goos == "windows" {
		return []string{`%USERPROFILE%\.claude\local\claude.exe`}
	}
	return []string{"~/.claude/local/claude"}
}

// checkAuth looks for an API key, stored credentials, or an OAuth account
// recorded in ~/.claude.json. It never contacts the network.
func (d *ClaudeCodeDetector) checkAuth(ctx context.Context) *bool {
	env := d.Prober.Env
	if strings.TrimSpace(env.getenv("ANTHROPIC_API_KEY")) != "" {
		return boolPtr(true)
	}
	if env.Home == "" {
		return boolPtr(false)
	}
	if _, err := os.Stat(filepath.Join(env.Home, ".claude", ".credentials.json")); err == nil {
		return boolPtr(true)
	}
	data, err := os.ReadFile(filepath.Join(env.Home, ".claude.json"))
	if err != nil {
		return boolPtr(false)
	}
	var state struct {
		OAuthAccount json.RawMessage `json:"oauthAccount"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return boolPtr(false)
	}
	raw := strings.TrimSpace(string(state.OAuthAccount))
	return boolPtr(raw != "" && raw != "null")
}
