package integration

import (
	"encoding/json"
	"path/filepath"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// ZedClient reads "context_servers" from Zed's settings.json.
type ZedClient struct {
	loc Locator
}

func (z *ZedClient) Name() string { return "zed" }

func (z *ZedClient) ConfigPath() string {
	switch z.loc.GOOS {
	case "windows":
		return filepath.Join(z.loc.appData(), "Zed", "settings.json")
	default:
		return filepath.Join(z.loc.Home, ".config", "zed", "settings.json")
	}
}

// zedCommand accepts both the nested {"command": {"path", "args", "env"}}
// form and the flat form used by newer Zed releases.
type zedCommand struct {
	Path string            `json:"path"`
	Args []string          `json:"args"`
	Env  map[string]string `json:"env"`
}

func (z *ZedClient) Servers() ([]profile.ServerConfig, error) {
	var config struct {
		ContextServers map[string]struct {
			Command json.RawMessage   `json:"command"`
			Args    []string          `json:"args"`
			Env     map[string]string `json:"env"`
		} `json:"context_servers"`
	}
	if err := readJSON(z.ConfigPath(), &config); err != nil {
		return nil, err
	}

	entries := make(map[string]stdioEntry, len(config.ContextServers))
	for name, s := range config.ContextServers {
		var flat string
		if json.Unmarshal(s.Command, &flat) == nil {
			entries[name] = stdioEntry{Command: flat, Args: s.Args, Env: s.Env}
			continue
		}
		var nested zedCommand
		if json.Unmarshal(s.Command, &nested) == nil {
			entries[name] = stdioEntry{Command: nested.Path, Args: nested.Args, Env: nested.Env}
		}
	}
	return toServers(entries), nil
}
