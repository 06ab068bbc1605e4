package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(errs []profile.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	s := profile.DefaultSettings()
	s.McpServers = []profile.ServerConfig{
		{ID: "echo_srv", Command: "mcp-echo"},
		{ID: "git-hub", Command: "npx", SecretsEnv: map[string]string{"GITHUB_TOKEN": "gh"}},
	}
	s.CustomTools = []profile.CustomTool{
		{Name: "aider", Command: "aider", VersionSignature: []string{"aider"}, MinimumVersion: "0.50.0", Instructions: "pip install aider-chat"},
	}

	result := profile.Validate(s, "claude-code", "ollama", "gemini")
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
	assert.NoError(t, result.Err())
}

func TestValidate_ServerErrors(t *testing.T) {
	tests := []struct {
		name  string
		srv   []profile.ServerConfig
		field string
	}{
		{"missing id", []profile.ServerConfig{{Command: "x"}}, "mcp_servers[0].id"},
		{"separator in id", []profile.ServerConfig{{ID: "a__b", Command: "x"}}, "mcp_servers[0].id"},
		{"trailing underscore", []profile.ServerConfig{{ID: "srv_", Command: "x"}}, "mcp_servers[0].id"},
		{"bad chars", []profile.ServerConfig{{ID: "a.b", Command: "x"}}, "mcp_servers[0].id"},
		{"duplicate", []profile.ServerConfig{{ID: "a", Command: "x"}, {ID: "a", Command: "y"}}, "mcp_servers[1].id"},
		{"missing command", []profile.ServerConfig{{ID: "a"}}, "mcp_servers[0].command"},
		{"bad env key", []profile.ServerConfig{{ID: "a", Command: "x", Env: map[string]string{"1BAD": "v"}}}, "mcp_servers[0].env.1BAD"},
		{"empty secret id", []profile.ServerConfig{{ID: "a", Command: "x", SecretsEnv: map[string]string{"TOKEN": " "}}}, "mcp_servers[0].secrets_env.TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := profile.DefaultSettings()
			s.McpServers = tt.srv
			result := profile.Validate(s)
			assert.False(t, result.Valid)
			assert.Contains(t, fields(result.Errors), tt.field)
			assert.Error(t, result.Err())
		})
	}
}

func TestValidate_CustomTools(t *testing.T) {
	s := profile.DefaultSettings()
	s.CustomTools = []profile.CustomTool{
		{Name: "ollama", Command: "ollama"},
		{Name: "Bad Name", Command: "x"},
		{Name: "ok", Command: "ok", SemverPattern: "(", MinimumVersion: "latest"},
	}
	result := profile.Validate(s, "claude-code", "ollama", "gemini")
	assert.False(t, result.Valid)
	got := fields(result.Errors)
	assert.Contains(t, got, "custom_tools[0].name")
	assert.Contains(t, got, "custom_tools[1].name")
	assert.Contains(t, got, "custom_tools[2].semver_pattern")
	assert.Contains(t, got, "custom_tools[2].minimum_version")
}

func TestValidate_Warnings(t *testing.T) {
	s := profile.DefaultSettings()
	s.McpServers = []profile.ServerConfig{{
		ID: "a", Command: "x",
		Env:        map[string]string{"TOKEN": "plain"},
		SecretsEnv: map[string]string{"TOKEN": "vault-id"},
	}}
	s.CustomTools = []profile.CustomTool{{Name: "bare", Command: "bare"}}

	result := profile.Validate(s)
	assert.True(t, result.Valid)
	got := fields(result.Warnings)
	assert.Contains(t, got, "mcp_servers[0].secrets_env.TOKEN")
	assert.Contains(t, got, "custom_tools[0]")
	assert.Contains(t, got, "custom_tools[0].install_instructions")
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("mcp_servers:\n  - id: echo_srv\n    command: mcp-echo\n"), 0644))
	result, err := profile.ValidateFile(good)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mcp_servers: {"), 0644))
	result, err = profile.ValidateFile(bad)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	_, err = profile.ValidateFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
