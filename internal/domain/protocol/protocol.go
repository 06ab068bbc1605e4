// Package protocol holds the JSON-RPC 2.0 and MCP wire types spoken over stdio.
package protocol

import (
	"bytes"
	"encoding/json"
)

// Version is the JSON-RPC version string carried by every message.
const Version = "2.0"

// MCPProtocolVersion is the protocol revision sent in initialize.
const MCPProtocolVersion = "2024-11-05"

// Method names used by the client.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Request represents a JSON-RPC request or, with a nil ID, a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with params marshalled from v.
func NewRequest(id any, method string, params any) (Request, error) {
	req := Request{JSONRPC: Version, ID: id, Method: method}
	if params == nil {
		return req, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		req.Params = raw
		return req, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return Request{}, err
	}
	req.Params = data
	return req, nil
}

// Response is a decoded JSON-RPC message read from a server. Result is kept
// raw so callers can hand it through untouched.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a standard JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// HasID reports whether the message carries a non-null id.
func (r *Response) HasID() bool {
	id := bytes.TrimSpace(r.ID)
	return len(id) > 0 && !bytes.Equal(id, []byte("null"))
}

// IsNotification reports whether the message is a server-initiated
// notification or request rather than a response.
func (r *Response) IsNotification() bool {
	return r.Method != ""
}

// MatchesID compares the raw id with an integer id. Servers that echo the id
// back as a string ("1") are accepted too.
func (r *Response) MatchesID(id int64) bool {
	var n int64
	if err := json.Unmarshal(r.ID, &n); err == nil {
		return n == id
	}
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		var parsed int64
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed == id
		}
	}
	return false
}

// HasResult reports whether a result member was present, including null.
func (r *Response) HasResult() bool {
	return len(r.Result) > 0
}
