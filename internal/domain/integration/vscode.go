package integration

import (
	"path/filepath"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// VSCodeClient reads the user level mcp.json, which keys servers under
// "servers" rather than "mcpServers".
type VSCodeClient struct {
	loc Locator
}

func (v *VSCodeClient) Name() string { return "vscode" }

func (v *VSCodeClient) ConfigPath() string {
	switch v.loc.GOOS {
	case "windows":
		return filepath.Join(v.loc.appData(), "Code", "User", "mcp.json")
	case "darwin":
		return filepath.Join(v.loc.Home, "Library", "Application Support", "Code", "User", "mcp.json")
	default:
		return filepath.Join(v.loc.Home, ".config", "Code", "User", "mcp.json")
	}
}

func (v *VSCodeClient) Servers() ([]profile.ServerConfig, error) {
	var config struct {
		Servers map[string]stdioEntry `json:"servers"`
	}
	if err := readJSON(v.ConfigPath(), &config); err != nil {
		return nil, err
	}
	return toServers(config.Servers), nil
}
