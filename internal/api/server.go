// Package api serves the local control API used by the desktop shell and
// the CLI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"slices"
	"sync"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/envutil"
)

// EnvironmentFixer repairs the process environment.
type EnvironmentFixer interface {
	Fix(ctx context.Context) envutil.Result
}

// Deps are the services behind the control API. Nil services disable the
// routes that need them.
type Deps struct {
	Registry *detection.Registry
	Gateway  *discovery.Gateway
	Manager  *discovery.Manager
	Scripts  *discovery.ScriptRunner
	Fixer    EnvironmentFixer
	Store    *profile.Store
	Locator  integration.Locator
	Metrics  http.Handler

	// OnSettings is called after settings were saved through the API.
	OnSettings func(profile.Settings)
}

// ControlServer handles management requests.
type ControlServer struct {
	mux  *http.ServeMux
	deps Deps

	mu       sync.RWMutex
	settings profile.Settings
}

// NewControlServer creates the control API over deps.
func NewControlServer(deps Deps, settings profile.Settings) *ControlServer {
	s := &ControlServer{
		mux:      http.NewServeMux(),
		deps:     deps,
		settings: settings,
	}
	s.routes()
	return s
}

func (s *ControlServer) routes() {
	s.mux.HandleFunc("GET /api/detection", s.handleDetectAll)
	s.mux.HandleFunc("DELETE /api/detection", s.handleClearAll)
	s.mux.HandleFunc("GET /api/detection/{name}", s.handleDetect)
	s.mux.HandleFunc("POST /api/detection/{name}/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/detection/{name}/instructions", s.handleInstructions)

	s.mux.HandleFunc("GET /api/mcp/servers", s.handleServers)
	s.mux.HandleFunc("GET /api/mcp/tools", s.handleListTools)
	s.mux.HandleFunc("POST /api/mcp/call", s.handleCallTool)
	s.mux.HandleFunc("POST /api/mcp/script", s.handleScript)
	s.mux.HandleFunc("GET /api/mcp/sessions", s.handleSessions)
	s.mux.HandleFunc("POST /api/mcp/rpc", s.handleRPC)

	s.mux.HandleFunc("POST /api/environment/fix", s.handleFixEnvironment)
	s.mux.HandleFunc("GET /api/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/logs/stream", s.handleLogStream)
	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	s.mux.HandleFunc("GET /api/clients", s.handleGetClients)
	s.mux.HandleFunc("POST /api/clients/import", s.handleImportClients)

	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
}

func (s *ControlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" {
		// Only listed browser origins may call; the API spawns commands.
		if !slices.Contains(s.currentSettings().AllowedOrigins, origin) {
			writeJSON(w, http.StatusForbidden, ErrorBody{Error: "origin " + origin + " is not allowed", Kind: KindForbidden})
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Add("Vary", "Origin")
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Browsers send form and text bodies cross-site without a preflight.
	if hasBody(r) && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType, ErrorBody{Error: "Content-Type must be application/json", Kind: KindBadRequest})
			return
		}
	}

	s.mux.ServeHTTP(w, r)
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

// SetSettings swaps the settings snapshot, e.g. after a file reload.
func (s *ControlServer) SetSettings(settings profile.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

func (s *ControlServer) currentSettings() profile.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// KindBadRequest marks request bodies the API could not decode.
const KindBadRequest = "bad_request"

// KindForbidden marks requests from origins that are not allowed.
const KindForbidden = "forbidden"

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUnknownTool:
		return http.StatusNotFound
	case apperr.KindConfig:
		return http.StatusBadRequest
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := string(apperr.KindOf(err))
	if kind == "" {
		kind = "error"
	}
	writeJSON(w, StatusFor(err), ErrorBody{Error: err.Error(), Kind: kind})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{Error: msg, Kind: KindBadRequest})
}

func unavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, ErrorBody{Error: what + " is not configured", Kind: "unavailable"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(v)
}
