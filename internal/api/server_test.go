package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
	"github.com/mcp-scooter/toolbridge/internal/envutil"
)

type stubDetector struct {
	name  string
	calls int
}

func (d *stubDetector) Name() string          { return d.name }
func (d *stubDetector) CommonPaths() []string { return nil }
func (d *stubDetector) Verify(context.Context, string) (detection.Verification, error) {
	return detection.Verification{}, nil
}
func (d *stubDetector) GetVersion(context.Context, string) string { return "" }
func (d *stubDetector) CheckRunning(context.Context) *bool         { return nil }
func (d *stubDetector) CheckAuth(context.Context) *bool            { return nil }
func (d *stubDetector) InstallationInstructions() string           { return "brew install " + d.name }
func (d *stubDetector) Detect(context.Context) (detection.ToolInfo, error) {
	d.calls++
	return detection.ToolInfo{Installed: true, Version: "1.2.3", Path: "/usr/bin/" + d.name, InPath: true}, nil
}

type stubRequester struct{}

func (stubRequester) ListTools(_ context.Context, cfg profile.ServerConfig) ([]protocol.Tool, error) {
	if cfg.ID == "broken" {
		return nil, apperr.New(apperr.KindSpawnFailed, "failed to spawn server broken")
	}
	return []protocol.Tool{{Name: "shout"}}, nil
}

func (stubRequester) Request(_ context.Context, cfg profile.ServerConfig, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	p := params.(protocol.CallToolParams)
	switch p.Name {
	case "slow":
		return nil, apperr.New(apperr.KindTimeout, "tools/call timed out after %s", timeout).WithServer(cfg.ID)
	case "bad":
		return nil, &apperr.Error{Kind: apperr.KindRPC, Code: -32602, Msg: "invalid arguments", Server: cfg.ID}
	}
	var args struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(p.Arguments, &args)
	return json.RawMessage(`{"content":[{"type":"text","text":"` + strings.ToUpper(args.Text) + `"}]}`), nil
}

type stubFixer struct{ res envutil.Result }

func (f stubFixer) Fix(context.Context) envutil.Result { return f.res }

type fixture struct {
	srv      *ControlServer
	detector *stubDetector
	store    *profile.Store
	applied  []profile.Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{detector: &stubDetector{name: "ollama"}}

	settings := profile.DefaultSettings()
	settings.McpServers = []profile.ServerConfig{
		{ID: "echo_srv", Command: "mcp-echo", SecretsEnv: map[string]string{"TOKEN": "tok"}},
		{ID: "broken", Command: "nope"},
	}
	gw := discovery.NewGateway(stubRequester{}, func() []profile.ServerConfig { return settings.McpServers })

	home := t.TempDir()
	f.store = profile.NewStore(filepath.Join(home, "settings.yaml"))
	f.srv = NewControlServer(Deps{
		Registry:   detection.NewRegistry(time.Minute, f.detector),
		Gateway:    gw,
		Scripts:    discovery.NewScriptRunner(gw, time.Second),
		Fixer:      stubFixer{res: envutil.Result{Changed: true, Added: []string{"/opt/homebrew/bin"}}},
		Store:      f.store,
		Locator:    integration.Locator{Home: home, GOOS: "linux", Getenv: func(string) string { return "" }},
		OnSettings: func(s profile.Settings) { f.applied = append(f.applied, s) },
	}, settings)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestDetectionRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/api/detection", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[map[string]detection.Detection](t, w)
	require.Contains(t, all, "ollama")
	assert.True(t, all["ollama"].Installed)
	assert.Equal(t, "1.2.3", all["ollama"].Version)

	w = f.do(t, "GET", "/api/detection/ollama", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.detector.calls, "second read is served from cache")

	w = f.do(t, "POST", "/api/detection/ollama/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, f.detector.calls)

	w = f.do(t, "DELETE", "/api/detection", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	f.do(t, "GET", "/api/detection/ollama", "")
	assert.Equal(t, 3, f.detector.calls)

	w = f.do(t, "GET", "/api/detection/ollama/instructions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "brew install ollama", decode[InstructionsResponse](t, w).Instructions)
}

func TestDetectionUnknownTool(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/detection/nope", "/api/detection/nope/instructions"} {
		w := f.do(t, "GET", path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, string(apperr.KindUnknownTool), decode[ErrorBody](t, w).Kind)
	}
}

func TestMCPTools(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/api/mcp/tools", "")
	require.Equal(t, http.StatusOK, w.Code)
	listing := decode[discovery.ToolListing](t, w)
	require.Len(t, listing.Tools, 1)
	assert.Equal(t, "echo_srv__shout", listing.Tools[0].Name)
	require.Len(t, listing.Failures, 1)
	assert.Equal(t, "broken", listing.Failures[0].Server)
}

func TestMCPServersHideSecrets(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/api/mcp/servers", "")
	require.Equal(t, http.StatusOK, w.Code)
	servers := decode[[]ServerInfo](t, w)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"TOKEN"}, servers[0].Secrets)
	assert.NotContains(t, w.Body.String(), "tok\"")
}

func TestMCPCall(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/mcp/call", `{"name":"echo_srv__shout","arguments":{"text":"hi"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HI", decode[CallResponse](t, w).Text)

	tests := []struct {
		body   string
		status int
		kind   string
	}{
		{`{"name":"noseparator"}`, http.StatusNotFound, string(apperr.KindUnknownTool)},
		{`{"name":"ghost__tool"}`, http.StatusBadRequest, string(apperr.KindConfig)},
		{`{"name":"echo_srv__slow","timeout_ms":50}`, http.StatusGatewayTimeout, string(apperr.KindTimeout)},
		{`{"name":"echo_srv__bad"}`, http.StatusBadGateway, string(apperr.KindRPC)},
		{`{"name":""}`, http.StatusBadRequest, KindBadRequest},
		{`not json`, http.StatusBadRequest, KindBadRequest},
	}
	for _, tt := range tests {
		w := f.do(t, "POST", "/api/mcp/call", tt.body)
		assert.Equal(t, tt.status, w.Code, tt.body)
		assert.Equal(t, tt.kind, decode[ErrorBody](t, w).Kind, tt.body)
	}
}

func TestMCPRPC(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/mcp/rpc", `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"echo_srv__shout","arguments":{"text":"rpc"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ID     int             `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *protocol.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.ID)
	require.Nil(t, resp.Error)
	text, _ := discovery.ExtractText(resp.Result)
	assert.Equal(t, "RPC", text)

	w = f.do(t, "POST", "/api/mcp/rpc", `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"echo_srv__bad"}}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)

	w = f.do(t, "POST", "/api/mcp/rpc", `{"jsonrpc":"2.0","id":9,"method":"resources/list"}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.MethodNotFound, resp.Error.Code)

	w = f.do(t, "POST", "/api/mcp/rpc", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestMCPScript(t *testing.T) {
	f := newFixture(t)
	body := `{"script":"return textOf(callTool('echo_srv__shout', {text: args.w}))","args":{"w":"js"}}`
	w := f.do(t, "POST", "/api/mcp/script", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "JS", decode[discovery.ScriptResult](t, w).Value)

	w = f.do(t, "POST", "/api/mcp/script", `{"script":"throw new Error('nope')"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestFixEnvironmentClearsDetectionCache(t *testing.T) {
	f := newFixture(t)
	f.do(t, "GET", "/api/detection/ollama", "")
	require.Equal(t, 1, f.detector.calls)

	w := f.do(t, "POST", "/api/environment/fix", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[envutil.Result](t, w).Changed)

	f.do(t, "GET", "/api/detection/ollama", "")
	assert.Equal(t, 2, f.detector.calls)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "PUT", "/api/settings", `{"control_port":7000,"mcp_servers":[{"id":"a","command":"npx -y server-a"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	saved, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, saved.ControlPort)
	require.Len(t, saved.McpServers, 1)
	assert.Equal(t, "npx", saved.McpServers[0].Command)
	assert.Equal(t, []string{"-y", "server-a"}, saved.McpServers[0].Args)
	require.Len(t, f.applied, 1)

	w = f.do(t, "GET", "/api/settings", "")
	assert.Equal(t, 7000, decode[profile.Settings](t, w).ControlPort)

	w = f.do(t, "PUT", "/api/settings", `{"mcp_servers":[{"id":"bad__id","command":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.applied, 1)
}

func TestCORS_ForeignOriginRefused(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("OPTIONS", "/api/settings", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("PUT", "/api/settings",
		strings.NewReader(`{"mcp_servers":[{"id":"pwn","command":"/bin/sh","args":["-c","true"]}]}`))
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, KindForbidden, decode[ErrorBody](t, w).Kind)
	assert.Empty(t, f.applied)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	f := newFixture(t)
	settings := f.srv.currentSettings()
	settings.AllowedOrigins = []string{"http://localhost:5173"}
	f.srv.SetSettings(settings)

	req := httptest.NewRequest("OPTIONS", "/api/mcp/call", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	// No wildcard for callers without an Origin header.
	w = f.do(t, "OPTIONS", "/api/mcp/call", "")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteRoutesRequireJSON(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path, body string }{
		{"POST", "/api/mcp/script", `return callTool("echo_srv__shout", {text: "hi"}).content[0].text`},
		{"POST", "/api/mcp/call", `{"name":"echo_srv__shout"}`},
		{"PUT", "/api/settings", `{"mcp_servers":[]}`},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		f.srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, tc.path)
	}
	assert.Empty(t, f.applied)

	// Bodyless writes need no content type.
	w := f.do(t, "POST", "/api/environment/fix", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.New(apperr.KindUnknownTool, "x")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperr.New(apperr.KindConfig, "x")))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(apperr.New(apperr.KindTimeout, "x")))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.New(apperr.KindTransport, "x")))
}
