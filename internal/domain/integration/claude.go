package integration

import (
	"path/filepath"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// ClaudeCodeClient reads user scoped servers from ~/.claude.json.
type ClaudeCodeClient struct {
	loc Locator
}

func (c *ClaudeCodeClient) Name() string { return "claude-code" }

func (c *ClaudeCodeClient) ConfigPath() string {
	return filepath.Join(c.loc.Home, ".claude.json")
}

func (c *ClaudeCodeClient) Servers() ([]profile.ServerConfig, error) {
	var config struct {
		McpServers map[string]stdioEntry `json:"mcpServers"`
	}
	if err := readJSON(c.ConfigPath(), &config); err != nil {
		return nil, err
	}
	return toServers(config.McpServers), nil
}

// ClaudeDesktopClient reads claude_desktop_config.json.
type ClaudeDesktopClient struct {
	loc Locator
}

func (c *ClaudeDesktopClient) Name() string { return "claude-desktop" }

func (c *ClaudeDesktopClient) ConfigPath() string {
	switch c.loc.GOOS {
	case "windows":
		return filepath.Join(c.loc.appData(), "Claude", "claude_desktop_config.json")
	case "darwin":
		return filepath.Join(c.loc.Home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	default:
		return filepath.Join(c.loc.Home, ".config", "Claude", "claude_desktop_config.json")
	}
}

func (c *ClaudeDesktopClient) Servers() ([]profile.ServerConfig, error) {
	var config struct {
		McpServers map[string]stdioEntry `json:"mcpServers"`
	}
	if err := readJSON(c.ConfigPath(), &config); err != nil {
		return nil, err
	}
	return toServers(config.McpServers), nil
}
