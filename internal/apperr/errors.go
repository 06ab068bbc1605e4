// Package apperr defines the error kinds shared by detection and the MCP gateway.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Callers switch on the kind, never on message text.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindPartialInstall     Kind = "partial_install"
	KindVerificationFailed Kind = "verification_failed"
	KindSpawnFailed        Kind = "spawn_failed"
	KindTransport          Kind = "transport"
	KindProtocol           Kind = "protocol"
	KindRPC                Kind = "rpc"
	KindTimeout            Kind = "timeout"
	KindUnknownTool        Kind = "unknown_tool"
	KindConfig             Kind = "config"
)

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrPartialInstall     = &Error{Kind: KindPartialInstall}
	ErrVerificationFailed = &Error{Kind: KindVerificationFailed}
	ErrSpawnFailed        = &Error{Kind: KindSpawnFailed}
	ErrTransport          = &Error{Kind: KindTransport}
	ErrProtocol           = &Error{Kind: KindProtocol}
	ErrRPC                = &Error{Kind: KindRPC}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrUnknownTool        = &Error{Kind: KindUnknownTool}
	ErrConfig             = &Error{Kind: KindConfig}
)

// Error carries a Kind plus enough context to build a user-facing message.
type Error struct {
	Kind Kind
	// Server is the MCP server id, when the failure belongs to one.
	Server string
	// Tool is the detector name or the tool name involved.
	Tool string
	// Code is the JSON-RPC error code for KindRPC.
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Server != "" {
		sb.WriteString(" [server ")
		sb.WriteString(e.Server)
		sb.WriteString("]")
	}
	if e.Tool != "" {
		sb.WriteString(" [tool ")
		sb.WriteString(e.Tool)
		sb.WriteString("]")
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Code != 0 {
		fmt.Fprintf(&sb, " (code: %d)", e.Code)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithServer returns a copy of e tagged with a server id.
func (e *Error) WithServer(id string) *Error {
	c := *e
	c.Server = id
	return &c
}

// WithTool returns a copy of e tagged with a tool name.
func (e *Error) WithTool(name string) *Error {
	c := *e
	c.Tool = name
	return &c
}

// KindOf extracts the Kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// TagServer makes sure err names the server it came from.
func TagServer(err error, id string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Server == "" {
			return e.WithServer(id)
		}
		return err
	}
	return &Error{Kind: KindTransport, Server: id, Err: err}
}
