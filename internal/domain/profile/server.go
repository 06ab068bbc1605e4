package profile

import (
	"strings"

	"github.com/mattn/go-shellwords"
)

// ServerConfig describes one MCP server the gateway may launch.
type ServerConfig struct {
	// ID is the namespace prefix for the server's tools; it must not contain "__".
	ID      string            `yaml:"id" json:"id"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// SecretsEnv maps environment variable names to secret identifiers
	// resolved through the secret lookup at spawn time.
	SecretsEnv map[string]string `yaml:"secrets_env,omitempty" json:"secrets_env,omitempty"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the server takes part in the gateway.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Normalize splits a command line pasted into Command when no Args were
// given, e.g. "npx -y @modelcontextprotocol/server-everything".
func (c ServerConfig) Normalize() ServerConfig {
	c.ID = strings.TrimSpace(c.ID)
	c.Command = strings.TrimSpace(c.Command)
	if len(c.Args) > 0 || !strings.ContainsAny(c.Command, " \t") {
		return c
	}
	words, err := shellwords.Parse(c.Command)
	if err != nil || len(words) == 0 {
		return c
	}
	c.Command = words[0]
	c.Args = words[1:]
	return c
}

// Bool returns a pointer to b, for literal ServerConfig values.
func Bool(b bool) *bool { return &b }

// CustomTool defines a user-supplied CLI to detect alongside the built-ins.
type CustomTool struct {
	Name             string   `yaml:"name" json:"name"`
	DisplayName      string   `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Command          string   `yaml:"command" json:"command"`
	VersionSignature []string `yaml:"version_signature,omitempty" json:"version_signature,omitempty"`
	HelpSignature    []string `yaml:"help_signature,omitempty" json:"help_signature,omitempty"`
	SemverPattern    string   `yaml:"semver_pattern,omitempty" json:"semver_pattern,omitempty"`
	WellKnownPaths   []string `yaml:"well_known_paths,omitempty" json:"well_known_paths,omitempty"`
	ConfigPaths      []string `yaml:"config_paths,omitempty" json:"config_paths,omitempty"`
	MinimumVersion   string   `yaml:"minimum_version,omitempty" json:"minimum_version,omitempty"`
	Instructions     string   `yaml:"install_instructions,omitempty" json:"install_instructions,omitempty"`
}
