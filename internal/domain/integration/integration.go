// Package integration reads the configuration of other MCP clients and
// provides the secret lookup used when spawning MCP servers.
package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// Locator resolves per-user configuration paths.
type Locator struct {
	Home   string
	GOOS   string
	Getenv func(string) string
}

// SystemLocator returns a Locator for the current user.
func SystemLocator() Locator {
	home, _ := os.UserHomeDir()
	return Locator{Home: home, GOOS: runtime.GOOS, Getenv: os.Getenv}
}

func (l Locator) appData() string {
	if l.Getenv != nil {
		if v := l.Getenv("APPDATA"); v != "" {
			return v
		}
	}
	return filepath.Join(l.Home, "AppData", "Roaming")
}

// Client is another application whose MCP server list can be imported.
type Client interface {
	Name() string
	ConfigPath() string
	Servers() ([]profile.ServerConfig, error)
}

// Clients returns every supported client, in import priority order.
func Clients(l Locator) []Client {
	return []Client{
		&ClaudeCodeClient{loc: l},
		&ClaudeDesktopClient{loc: l},
		&GeminiClient{loc: l},
		&CodexClient{loc: l},
		&CursorClient{loc: l},
		&VSCodeClient{loc: l},
		&ZedClient{loc: l},
	}
}

// ClientByName finds a client by its Name.
func ClientByName(l Locator, name string) (Client, error) {
	for _, c := range Clients(l) {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown client %q", name)
}

// ImportResult is the outcome of merging several clients' servers.
type ImportResult struct {
	Servers []profile.ServerConfig `json:"servers"`
	// Skipped explains entries that were not imported.
	Skipped []string `json:"skipped,omitempty"`
}

// ImportServers collects stdio servers from clients. Ids already in
// existing, or seen from an earlier client, are skipped. Missing config
// files are ignored.
func ImportServers(clients []Client, existing []profile.ServerConfig) ImportResult {
	seen := make(map[string]bool)
	for _, s := range existing {
		seen[s.ID] = true
	}

	var res ImportResult
	for _, c := range clients {
		servers, err := c.Servers()
		if err != nil {
			if !os.IsNotExist(err) {
				res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", c.Name(), err))
			}
			continue
		}
		for _, s := range servers {
			if seen[s.ID] {
				res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %s already configured", c.Name(), s.ID))
				continue
			}
			seen[s.ID] = true
			res.Servers = append(res.Servers, s)
		}
	}
	return res
}

// stdioEntry is the server shape shared by the JSON based clients.
type stdioEntry struct {
	Type    string            `json:"type"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	URL     string            `json:"url"`
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// toServers converts named entries, dropping remote (url) servers.
func toServers(entries map[string]stdioEntry) []profile.ServerConfig {
	out := make([]profile.ServerConfig, 0, len(entries))
	for _, name := range sortedKeys(entries) {
		e := entries[name]
		if e.Command == "" || (e.Type != "" && e.Type != "stdio") {
			continue
		}
		out = append(out, profile.ServerConfig{
			ID:      SanitizeID(name),
			Command: e.Command,
			Args:    e.Args,
			Env:     e.Env,
		}.Normalize())
	}
	return out
}

var invalidIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeID turns a client's server name into a valid server id.
func SanitizeID(name string) string {
	id := invalidIDChars.ReplaceAllString(strings.TrimSpace(name), "-")
	for strings.Contains(id, "__") {
		id = strings.ReplaceAll(id, "__", "_")
	}
	id = strings.TrimLeft(id, "-")
	id = strings.TrimRight(id, "_-")
	if id == "" {
		id = "server"
	}
	return id
}
