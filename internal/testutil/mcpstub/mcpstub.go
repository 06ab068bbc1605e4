// Package mcpstub is a scriptable MCP server speaking newline-delimited
// JSON-RPC on stdio. Tests re-exec their own binary with EnvMode set and
// call RunIfHelper from TestMain; cmd/mcp-echo serves the echo mode.
package mcpstub

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// EnvMode selects the stub's behaviour when a test binary is re-executed.
const EnvMode = "TOOLBRIDGE_MCPSTUB_MODE"

// Modes.
const (
	// ModeEcho answers every request correctly.
	ModeEcho = "echo"
	// ModeHang initializes and then never answers tools/call.
	ModeHang = "hang"
	// ModeOversize answers tools/call with a line of OversizeBytes.
	ModeOversize = "oversize"
	// ModeNotify sends a notification and a server request before each
	// response.
	ModeNotify = "notify"
	// ModeMismatch answers with a foreign id first.
	ModeMismatch = "mismatch"
	// ModeRPCError answers tools/call with a JSON-RPC error.
	ModeRPCError = "rpcerror"
	// ModeEOF exits after the handshake without answering.
	ModeEOF = "eof"
	// ModeGarbage writes a non-JSON line instead of a response.
	ModeGarbage = "garbage"
	// ModeBoth answers with both result and error.
	ModeBoth = "both"
	// ModeNoID answers with a result but no id.
	ModeNoID = "noid"
	// ModeInitError rejects initialize.
	ModeInitError = "initerror"
	// ModePaged splits tools/list over two pages.
	ModePaged = "paged"
	// ModeStubborn ignores stdin closing and must be killed.
	ModeStubborn = "stubborn"
)

// OversizeBytes is the padding written in ModeOversize.
const OversizeBytes = 256 * 1024

// RPCErrorCode is returned by tools/call in ModeRPCError.
const RPCErrorCode = -32602

// Tools served by the stub.
var Tools = []map[string]any{
	{
		"name":        "echo",
		"description": "Echoes back the input",
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
		},
	},
	{
		"name":        "shout",
		"description": "Upper-cases the input",
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
		},
	},
	{
		"name":        "env",
		"description": "Returns the value of an environment variable",
		"input_schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
		},
	},
}

// RunIfHelper serves the mode named by EnvMode and exits. It returns
// immediately when the variable is unset.
func RunIfHelper() {
	mode := os.Getenv(EnvMode)
	if mode == "" {
		return
	}
	if err := Serve(os.Stdin, os.Stdout, mode); err != nil {
		fmt.Fprintln(os.Stderr, "mcpstub:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

type request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type server struct {
	mode string
	mu   sync.Mutex
	out  io.Writer
}

// Serve answers requests read from in until in is closed.
func Serve(in io.Reader, out io.Writer, mode string) error {
	s := &server{mode: mode, out: out}
	fmt.Fprintf(os.Stderr, "mcpstub starting in %s mode\n", mode)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.send(map[string]any{
				"jsonrpc": "2.0",
				"id":      nil,
				"error":   map[string]any{"code": -32700, "message": "parse error"},
			})
			continue
		}
		if len(req.ID) == 0 {
			continue // notification
		}
		if done := s.handle(req); done {
			return nil
		}
	}
	if s.mode == ModeStubborn {
		time.Sleep(time.Hour)
	}
	return scanner.Err()
}

// handle answers one request. It reports true when the stub should exit.
func (s *server) handle(req request) bool {
	if req.Method == "initialize" {
		if s.mode == ModeInitError {
			s.replyError(req.ID, -32600, "unsupported client")
			return false
		}
		s.reply(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]string{"name": "mcpstub", "version": "0.1.0"},
		})
		return false
	}

	switch s.mode {
	case ModeHang:
		time.Sleep(time.Hour)
		return true
	case ModeEOF:
		return true
	case ModeOversize:
		s.reply(req.ID, map[string]any{"padding": strings.Repeat("x", OversizeBytes)})
		return false
	case ModeGarbage:
		s.write([]byte("this is not json\n"))
		return false
	case ModeBoth:
		s.send(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{},
			"error":   map[string]any{"code": -1, "message": "also"},
		})
		return false
	case ModeNoID:
		s.send(map[string]any{"jsonrpc": "2.0", "result": map[string]any{}})
		return false
	case ModeNotify:
		s.send(map[string]any{"jsonrpc": "2.0", "method": "notifications/progress", "params": map[string]any{"progress": 1}})
		s.send(map[string]any{"jsonrpc": "2.0", "id": 42, "method": "roots/list"})
	case ModeMismatch:
		s.reply(json.RawMessage("99"), map[string]any{"stale": true})
	case ModeRPCError:
		if req.Method == "tools/call" {
			s.replyError(req.ID, RPCErrorCode, "invalid arguments")
			return false
		}
	}

	switch req.Method {
	case "tools/list":
		s.reply(req.ID, s.listTools(req.Params))
	case "tools/call":
		s.reply(req.ID, callTool(req.Params))
	case "ping":
		s.reply(req.ID, map[string]any{})
	default:
		s.replyError(req.ID, -32601, "method not found: "+req.Method)
	}
	return false
}

func (s *server) listTools(params json.RawMessage) map[string]any {
	if s.mode != ModePaged {
		return map[string]any{"tools": Tools}
	}
	var p struct {
		Cursor string `json:"cursor"`
	}
	_ = json.Unmarshal(params, &p)
	if p.Cursor == "" {
		return map[string]any{"tools": Tools[:1], "nextCursor": "page-2"}
	}
	return map[string]any{"tools": Tools[1:]}
}

func callTool(params json.RawMessage) map[string]any {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	_ = json.Unmarshal(params, &p)
	arg := func(key string) string {
		v, _ := p.Arguments[key].(string)
		return v
	}

	var text string
	switch p.Name {
	case "echo":
		text = arg("text")
	case "shout":
		text = strings.ToUpper(arg("text"))
	case "env":
		text = os.Getenv(arg("name"))
	default:
		return map[string]any{
			"isError": true,
			"content": []map[string]any{{"type": "text", "text": "unknown tool " + p.Name}},
		}
	}
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	}
}

func (s *server) reply(id json.RawMessage, result any) {
	s.send(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func (s *server) replyError(id json.RawMessage, code int, msg string) {
	s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": msg},
	})
}

func (s *server) send(msg map[string]any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.write(append(data, '\n'))
}

func (s *server) write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(data)
}
