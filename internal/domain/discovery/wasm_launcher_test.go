package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
)

func TestIsWasmCommand(t *testing.T) {
	assert.True(t, IsWasmCommand("/opt/tools/server.wasm"))
	assert.True(t, IsWasmCommand("SERVER.WASM"))
	assert.False(t, IsWasmCommand("npx"))
	assert.False(t, IsWasmCommand("/usr/bin/wasm"))
}

func TestWasmLauncher_Errors(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.wasm")
	require.NoError(t, os.WriteFile(bogus, []byte("not a module"), 0644))

	m := testManager(ManagerOptions{})
	for _, command := range []string{filepath.Join(dir, "missing.wasm"), bogus} {
		_, err := m.Request(context.Background(), profile.ServerConfig{ID: "wasm", Command: command},
			protocol.MethodToolsList, nil, 0)
		require.Error(t, err, command)
		assert.True(t, errors.Is(err, apperr.ErrSpawnFailed), command)
		assert.Contains(t, err.Error(), "wasm")
	}
}

// buildEchoModule compiles cmd/mcp-echo for wasip1 into a temp dir.
func buildEchoModule(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("compiles a wasm module")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}

	out := filepath.Join(t.TempDir(), "mcp-echo.wasm")
	cmd := exec.Command(goBin, "build", "-o", out, "github.com/mcp-scooter/toolbridge/cmd/mcp-echo")
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm", "CGO_ENABLED=0")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, string(output))
	return out
}

func TestWasmLauncher_ServesTools(t *testing.T) {
	module := buildEchoModule(t)
	m := testManager(ManagerOptions{})
	cfg := profile.ServerConfig{ID: "wasm", Command: module, Env: map[string]string{"GREETING": "from-wasi"}}

	raw, err := m.Request(context.Background(), cfg, protocol.MethodToolsList, nil, 0)
	require.NoError(t, err)
	var listing protocol.ListToolsResult
	require.NoError(t, json.Unmarshal(raw, &listing))
	var names []string
	for _, tool := range listing.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"echo", "shout", "env"}, names)
	assert.Empty(t, m.Active(), "session must be torn down")

	g := NewGateway(m, func() []profile.ServerConfig { return []profile.ServerConfig{cfg} })
	result, err := g.CallTool(context.Background(), "wasm__shout", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	text, ok := ExtractText(result)
	require.True(t, ok)
	assert.Equal(t, "HI", text)

	result, err = g.CallTool(context.Background(), "wasm__env", json.RawMessage(`{"name":"GREETING"}`))
	require.NoError(t, err)
	text, ok = ExtractText(result)
	require.True(t, ok)
	assert.Equal(t, "from-wasi", text)
}
