package errors

import (
	"errors"
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/cli/client"
)

type ErrorKind string

const (
	ErrorKindOffline ErrorKind = "offline"
	ErrorKindOther   ErrorKind = "other"
)

type ClassifiedError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"` // User-friendly suggestion
	Server  string    `json:"server,omitempty"`
	Raw     error     `json:"-"`
}

func (e ClassifiedError) Error() string {
	return e.Message
}

var hints = map[apperr.Kind]string{
	apperr.KindNotFound:           "Install the tool, then run 'toolbridge instructions <name>' for steps.",
	apperr.KindPartialInstall:     "The tool's config exists but the binary is not on PATH. Try 'toolbridge fix-env'.",
	apperr.KindVerificationFailed: "A binary with that name exists but does not look like the expected tool.",
	apperr.KindSpawnFailed:        "Check the server's command in the settings file and that it is installed.",
	apperr.KindTransport:          "The MCP server stopped talking. Check the server logs.",
	apperr.KindProtocol:           "The MCP server sent a malformed response.",
	apperr.KindRPC:                "The MCP server rejected the request. Check the tool arguments.",
	apperr.KindTimeout:            "The server did not answer in time. Raise --timeout or check the server.",
	apperr.KindUnknownTool:        "Use <server>__<tool>; 'toolbridge tools' lists the available names.",
	apperr.KindConfig:             "Run 'toolbridge validate' and 'toolbridge servers' to check the configuration.",
}

// Classify maps err to a kind and a hint for the terminal.
func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	c := ClassifiedError{Kind: ErrorKindOther, Message: err.Error(), Raw: err}
	var e *apperr.Error
	if errors.As(err, &e) {
		c.Server = e.Server
	}

	if kind := apperr.KindOf(err); kind != "" {
		c.Kind = ErrorKind(kind)
		c.Hint = hints[kind]
		return c
	}

	var remote *client.RemoteError
	msg := strings.ToLower(err.Error())
	switch {
	case errors.As(err, &remote):
		c.Hint = "The daemon rejected the request."
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "daemon unreachable"):
		c.Kind = ErrorKindOffline
		c.Hint = "Is toolbridged running? Start it, or drop --daemon to run in-process."
	default:
		c.Hint = "An unexpected error occurred."
	}
	return c
}
