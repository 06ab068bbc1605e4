package discovery

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// requestID is the JSON-RPC id used for every request. A session carries
// one request at a time, so ids never need to be told apart.
const requestID = 1

var errLineTooLong = errors.New("line too long")

// Session is one live MCP server process. Sessions are single-use: the
// manager opens one, runs the exchange and closes it.
type Session struct {
	id      string
	server  string
	proc    Process
	reader  *bufio.Reader
	maxLine int
	grace   time.Duration
	started time.Time

	// mu serialises requests; MCP over stdio has no multiplexing here.
	mu        sync.Mutex
	closeOnce sync.Once
	onClose   func()
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID      string    `json:"id"`
	Server  string    `json:"server"`
	PID     int       `json:"pid,omitempty"`
	Started time.Time `json:"started"`
}

func newSession(id, server string, proc Process, maxLine int, grace time.Duration) *Session {
	return &Session{
		id:      id,
		server:  server,
		proc:    proc,
		reader:  bufio.NewReaderSize(proc.Stdout(), 64*1024),
		maxLine: maxLine,
		grace:   grace,
		started: time.Now(),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Server() string { return s.server }

// PID returns the server's process id, or 0 for in-process servers.
func (s *Session) PID() int { return s.proc.PID() }

func (s *Session) Info() SessionInfo {
	return SessionInfo{ID: s.id, Server: s.server, PID: s.PID(), Started: s.started}
}

// initialize performs the MCP handshake and sends notifications/initialized.
func (s *Session) initialize(ctx context.Context, client protocol.ClientInfo, timeout time.Duration) error {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.MCPProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      client,
	}
	result, err := s.Call(ctx, protocol.MethodInitialize, params, timeout)
	if err != nil {
		return err
	}
	var info struct {
		ServerInfo protocol.ClientInfo `json:"serverInfo"`
	}
	if json.Unmarshal(result, &info) == nil && info.ServerInfo.Name != "" {
		logger.Debugf("[%s] initialized %s %s", s.server, info.ServerInfo.Name, info.ServerInfo.Version)
	}
	return s.notify(protocol.MethodInitialized)
}

// Call sends one request and waits for its response. On timeout or
// cancellation the process is killed and reaped before Call returns.
func (s *Session) Call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := protocol.NewRequest(requestID, method, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProtocol, err, "encode %s params", method)
	}
	if err := s.write(req); err != nil {
		s.kill()
		return nil, err
	}

	type outcome struct {
		result json.RawMessage
		err    error
	}
	// Buffered so the reader can finish after we stop listening.
	ch := make(chan outcome, 1)
	go func() {
		res, err := s.readResponse(requestID)
		ch <- outcome{res, err}
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case out := <-ch:
		if out.err != nil && apperr.KindOf(out.err) != apperr.KindRPC {
			s.kill()
		}
		return out.result, out.err
	case <-timer:
		s.kill()
		return nil, apperr.New(apperr.KindTimeout, "%s timed out after %s", method, timeout)
	case <-ctx.Done():
		s.kill()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.KindTimeout, ctx.Err(), "%s", method)
		}
		return nil, apperr.Wrap(apperr.KindTransport, ctx.Err(), "%s cancelled", method)
	}
}

func (s *Session) notify(method string) error {
	req, err := protocol.NewRequest(nil, method, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindProtocol, err, "encode %s", method)
	}
	return s.write(req)
}

func (s *Session) write(req protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return apperr.Wrap(apperr.KindProtocol, err, "encode %s", req.Method)
	}
	data = append(data, '\n')
	if _, err := s.proc.Stdin().Write(data); err != nil {
		return apperr.Wrap(apperr.KindTransport, err, "write %s", req.Method)
	}
	return nil
}

// readResponse reads lines until the response for want arrives. Blank
// lines, notifications and responses for other ids are skipped.
func (s *Session) readResponse(want int64) (json.RawMessage, error) {
	for {
		line, err := readLine(s.reader, s.maxLine)
		switch {
		case errors.Is(err, errLineTooLong):
			return nil, apperr.New(apperr.KindTransport, "response line exceeds %d bytes", s.maxLine)
		case errors.Is(err, io.EOF):
			return nil, apperr.New(apperr.KindTransport, "server closed connection without response")
		case err != nil:
			return nil, apperr.Wrap(apperr.KindTransport, err, "read response")
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var resp protocol.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, apperr.Wrap(apperr.KindTransport, err, "decode response")
		}
		if resp.IsNotification() {
			logger.Debugf("[%s] skipping %s", s.server, resp.Method)
			continue
		}
		if !resp.HasID() {
			// Servers answer unparseable requests with id null.
			if resp.Error != nil && !resp.HasResult() {
				return nil, rpcError(resp.Error)
			}
			return nil, apperr.New(apperr.KindProtocol, "response without id")
		}
		if !resp.MatchesID(want) {
			logger.Debugf("[%s] skipping response for id %s", s.server, resp.ID)
			continue
		}
		switch {
		case resp.HasResult() && resp.Error != nil:
			return nil, apperr.New(apperr.KindProtocol, "response has both result and error")
		case resp.Error != nil:
			return nil, rpcError(resp.Error)
		case !resp.HasResult():
			return nil, apperr.New(apperr.KindProtocol, "response has neither result nor error")
		}
		return resp.Result, nil
	}
}

func rpcError(e *protocol.Error) error {
	return &apperr.Error{Kind: apperr.KindRPC, Code: e.Code, Msg: logger.Redact(e.Message)}
}

// readLine returns the next newline-terminated line, refusing to buffer
// more than max bytes. A final unterminated line is returned as is.
func readLine(r *bufio.Reader, max int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if max > 0 && len(line)+len(bytes.TrimRight(chunk, "\r\n")) > max {
			return nil, errLineTooLong
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return line, nil
		default:
			return nil, err
		}
	}
}

// Close tears the session down: stdin is closed so a well-behaved server
// exits on its own; after the grace period it is killed. The process is
// always reaped.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.proc.Stdin().Close()
		if s.grace > 0 {
			t := time.NewTimer(s.grace)
			select {
			case <-s.proc.Done():
			case <-t.C:
				logger.Warnf("[%s] did not exit within %s, killing", s.server, s.grace)
			}
			t.Stop()
		}
		s.terminate()
	})
	return nil
}

// kill ends the session without the grace period.
func (s *Session) kill() {
	s.closeOnce.Do(func() {
		_ = s.proc.Stdin().Close()
		s.terminate()
	})
}

func (s *Session) terminate() {
	if err := s.proc.Kill(); err != nil {
		logger.Warnf("[%s] kill: %v", s.server, err)
	}
	<-s.proc.Done()
	if s.onClose != nil {
		s.onClose()
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("%s/%s", s.server, shortID(s.id))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
