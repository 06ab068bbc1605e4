package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
)

// ServerInfo describes a configured MCP server without its secrets.
type ServerInfo struct {
	ID      string   `json:"id"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Enabled bool     `json:"enabled"`
	// Secrets lists the variable names filled from the keychain.
	Secrets []string `json:"secrets,omitempty"`
}

// DescribeServers strips secrets from server configs.
func DescribeServers(servers []profile.ServerConfig) []ServerInfo {
	out := make([]ServerInfo, 0, len(servers))
	for _, srv := range servers {
		info := ServerInfo{ID: srv.ID, Command: srv.Command, Args: srv.Args, Enabled: srv.IsEnabled()}
		for name := range srv.SecretsEnv {
			info.Secrets = append(info.Secrets, name)
		}
		sort.Strings(info.Secrets)
		out = append(out, info)
	}
	return out
}

func (s *ControlServer) handleServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DescribeServers(s.currentSettings().McpServers))
}

func (s *ControlServer) handleListTools(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gateway == nil {
		unavailable(w, "gateway")
		return
	}
	listing, err := s.deps.Gateway.ListToolsDetailed(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// CallRequest is the body of POST /api/mcp/call.
type CallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	TimeoutMS int64           `json:"timeout_ms,omitempty"`
}

// CallResponse carries the raw result and, when one could be extracted,
// its text.
type CallResponse struct {
	Result json.RawMessage `json:"result"`
	Text   string          `json:"text,omitempty"`
}

func (s *ControlServer) handleCallTool(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gateway == nil {
		unavailable(w, "gateway")
		return
	}
	var req CallRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	var opts []discovery.CallOption
	if req.TimeoutMS > 0 {
		opts = append(opts, discovery.WithTimeout(time.Duration(req.TimeoutMS)*time.Millisecond))
	}
	result, err := s.deps.Gateway.CallTool(r.Context(), req.Name, req.Arguments, opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	text, _ := discovery.ExtractText(result)
	writeJSON(w, http.StatusOK, CallResponse{Result: result, Text: text})
}

// ScriptRequest is the body of POST /api/mcp/script.
type ScriptRequest struct {
	Script string         `json:"script"`
	Args   map[string]any `json:"args,omitempty"`
}

func (s *ControlServer) handleScript(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scripts == nil {
		unavailable(w, "script runner")
		return
	}
	var req ScriptRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Script == "" {
		badRequest(w, "script is required")
		return
	}
	res, err := s.deps.Scripts.Run(r.Context(), req.Script, req.Args)
	if err != nil {
		body := ErrorBody{Error: err.Error(), Kind: "script"}
		if kind := apperr.KindOf(err); kind != "" {
			body.Kind = string(kind)
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *ControlServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Manager == nil {
		writeJSON(w, http.StatusOK, []discovery.SessionInfo{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Manager.Active())
}

// rpcResponse is a JSON-RPC response written by the rpc endpoint.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *protocol.Error `json:"error,omitempty"`
}

func rpcResult(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: protocol.Version, ID: id, Result: result}
}

func rpcFailure(id json.RawMessage, code int, message string) rpcResponse {
	return rpcResponse{JSONRPC: protocol.Version, ID: id, Error: &protocol.Error{Code: code, Message: message}}
}

// handleRPC answers tools/list and tools/call as JSON-RPC so MCP-style
// clients can reach the aggregated tool space with one POST.
func (s *ControlServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gateway == nil {
		unavailable(w, "gateway")
		return
	}
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusOK, rpcFailure(nil, protocol.ParseError, "Parse error"))
		return
	}
	if len(req.ID) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case protocol.MethodToolsList:
		tools, err := s.deps.Gateway.ListTools(r.Context())
		if err != nil {
			writeJSON(w, http.StatusOK, rpcFailure(req.ID, protocol.InternalError, err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, rpcResult(req.ID, protocol.ListToolsResult{Tools: tools}))
	case protocol.MethodToolsCall:
		var params protocol.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			writeJSON(w, http.StatusOK, rpcFailure(req.ID, protocol.InvalidParams, "Invalid params"))
			return
		}
		result, err := s.deps.Gateway.CallTool(r.Context(), params.Name, params.Arguments)
		if err != nil {
			writeJSON(w, http.StatusOK, rpcFailure(req.ID, rpcCode(err), err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, rpcResult(req.ID, result))
	case "ping":
		writeJSON(w, http.StatusOK, rpcResult(req.ID, struct{}{}))
	default:
		writeJSON(w, http.StatusOK, rpcFailure(req.ID, protocol.MethodNotFound, "Method not found: "+req.Method))
	}
}

// rpcCode passes a server's own JSON-RPC code through and maps gateway
// failures onto the standard codes.
func rpcCode(err error) int {
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind == apperr.KindRPC && e.Code != 0 {
		return e.Code
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnknownTool, apperr.KindConfig:
		return protocol.InvalidParams
	}
	return protocol.InternalError
}
