package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

func (s *ControlServer) handleFixEnvironment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Fixer == nil {
		unavailable(w, "environment repair")
		return
	}
	res := s.deps.Fixer.Fix(r.Context())
	if res.Changed && s.deps.Registry != nil {
		// New PATH entries can turn missing tools into installed ones.
		s.deps.Registry.ClearAll()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *ControlServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": logger.GetLogs(),
		"file": logger.GetLogFilePath(),
	})
}

// handleLogStream pushes log entries as server-sent events until the
// client goes away.
func (s *ControlServer) handleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := logger.Subscribe()
	defer logger.Unsubscribe(ch)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(entry)
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: pulse\ndata: {\"timestamp\": %q}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *ControlServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentSettings())
}

func (s *ControlServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings profile.Settings
	if err := decodeBody(w, r, &settings); err != nil {
		badRequest(w, "invalid settings: "+err.Error())
		return
	}
	settings = settings.WithDefaults()
	s.saveSettings(w, settings, settings)
}

// saveSettings validates, persists and applies settings, then answers
// with body.
func (s *ControlServer) saveSettings(w http.ResponseWriter, settings profile.Settings, body any) {
	if res := profile.Validate(settings, detection.BuiltinNames()...); !res.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  res.Err().Error(),
			"kind":   string(apperr.KindConfig),
			"errors": res.Errors,
		})
		return
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.Save(settings); err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: err.Error(), Kind: "io"})
			return
		}
	}
	s.SetSettings(settings)
	if s.deps.OnSettings != nil {
		s.deps.OnSettings(settings)
	}
	writeJSON(w, http.StatusOK, body)
}

// ClientInfo describes an AI client whose MCP servers can be imported.
type ClientInfo struct {
	Name       string `json:"name"`
	ConfigPath string `json:"config_path"`
	Present    bool   `json:"present"`
	Servers    int    `json:"servers"`
	Error      string `json:"error,omitempty"`
}

func (s *ControlServer) handleGetClients(w http.ResponseWriter, r *http.Request) {
	clients := integration.Clients(s.deps.Locator)
	out := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		info := ClientInfo{Name: c.Name(), ConfigPath: c.ConfigPath()}
		if _, err := os.Stat(c.ConfigPath()); err == nil {
			info.Present = true
			servers, err := c.Servers()
			if err != nil {
				info.Error = err.Error()
			}
			info.Servers = len(servers)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// ImportRequest selects the clients to import from; empty means all.
type ImportRequest struct {
	Clients []string `json:"clients,omitempty"`
}

func (s *ControlServer) handleImportClients(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			badRequest(w, "invalid request body: "+err.Error())
			return
		}
	}

	var clients []integration.Client
	for _, c := range integration.Clients(s.deps.Locator) {
		if len(req.Clients) == 0 || slices.Contains(req.Clients, c.Name()) {
			clients = append(clients, c)
		}
	}

	settings := s.currentSettings()
	res := integration.ImportServers(clients, settings.McpServers)
	if len(res.Servers) == 0 {
		writeJSON(w, http.StatusOK, res)
		return
	}
	settings.McpServers = append(slices.Clone(settings.McpServers), res.Servers...)
	logger.Infof("Imported %d MCP servers from client configs", len(res.Servers))
	s.saveSettings(w, settings, res)
}
