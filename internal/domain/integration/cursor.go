package integration

import (
	"os"
	"path/filepath"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// CursorClient reads servers from Cursor's global mcp.json.
type CursorClient struct {
	loc Locator
}

func (c *CursorClient) Name() string { return "cursor" }

func (c *CursorClient) ConfigPath() string {
	paths := []string{filepath.Join(c.loc.Home, ".cursor", "mcp.json")}
	if c.loc.GOOS == "windows" {
		paths = append(paths, filepath.Join(c.loc.appData(), "Cursor", "User", "globalStorage", "mcp.json"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return paths[0]
}

func (c *CursorClient) Servers() ([]profile.ServerConfig, error) {
	var config struct {
		McpServers map[string]stdioEntry `json:"mcpServers"`
	}
	if err := readJSON(c.ConfigPath(), &config); err != nil {
		return nil, err
	}
	return toServers(config.McpServers), nil
}
