package integration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// CodexClient reads [mcp_servers.<name>] tables from ~/.codex/config.toml.
type CodexClient struct {
	loc Locator
}

func (c *CodexClient) Name() string { return "codex" }

func (c *CodexClient) ConfigPath() string {
	if c.loc.Getenv != nil {
		if dir := c.loc.Getenv("CODEX_HOME"); dir != "" {
			return filepath.Join(dir, "config.toml")
		}
	}
	return filepath.Join(c.loc.Home, ".codex", "config.toml")
}

func (c *CodexClient) Servers() ([]profile.ServerConfig, error) {
	data, err := os.ReadFile(c.ConfigPath())
	if err != nil {
		return nil, err
	}

	var config struct {
		McpServers map[string]struct {
			Command string            `toml:"command"`
			Args    []string          `toml:"args"`
			Env     map[string]string `toml:"env"`
			URL     string            `toml:"url"`
		} `toml:"mcp_servers"`
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", c.ConfigPath(), err)
	}

	entries := make(map[string]stdioEntry, len(config.McpServers))
	for name, s := range config.McpServers {
		entries[name] = stdioEntry{Command: s.Command, Args: s.Args, Env: s.Env, URL: s.URL}
	}
	return toServers(entries), nil
}
