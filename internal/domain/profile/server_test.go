package profile_test

import (
	"testing"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/stretchr/testify/assert"
)

func TestServerConfig_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		in       profile.ServerConfig
		wantCmd  string
		wantArgs []string
	}{
		{"plain command", profile.ServerConfig{Command: "mcp-echo"}, "mcp-echo", nil},
		{"command line", profile.ServerConfig{Command: "uvx mcp-server-fetch --ignore-robots"}, "uvx", []string{"mcp-server-fetch", "--ignore-robots"}},
		{"quoted path", profile.ServerConfig{Command: `"/Applications/My Tools/server" --stdio`}, "/Applications/My Tools/server", []string{"--stdio"}},
		{"explicit args win", profile.ServerConfig{Command: "node server.js", Args: []string{"x"}}, "node server.js", []string{"x"}},
		{"trimmed", profile.ServerConfig{ID: " a ", Command: " node "}, "node", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantCmd, got.Command)
			assert.Equal(t, tt.wantArgs, got.Args)
		})
	}
}

func TestServerConfig_IsEnabled(t *testing.T) {
	assert.True(t, profile.ServerConfig{}.IsEnabled())
	assert.True(t, profile.ServerConfig{Enabled: profile.Bool(true)}.IsEnabled())
	assert.False(t, profile.ServerConfig{Enabled: profile.Bool(false)}.IsEnabled())
}

func TestSettings_EnabledServersKeepsOrder(t *testing.T) {
	s := profile.Settings{McpServers: []profile.ServerConfig{
		{ID: "c"}, {ID: "a", Enabled: profile.Bool(false)}, {ID: "b"},
	}}
	var ids []string
	for _, srv := range s.EnabledServers() {
		ids = append(ids, srv.ID)
	}
	assert.Equal(t, []string{"c", "b"}, ids)
}

func TestDuration_Text(t *testing.T) {
	var d profile.Duration
	assert.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, "1m30s", d.String())
	assert.Error(t, d.UnmarshalText([]byte("90")))
}
