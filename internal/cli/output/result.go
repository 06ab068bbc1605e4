package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
)

// CallResult is a tools/call result as returned by a server.
type CallResult struct {
	Raw     json.RawMessage
	Content []protocol.ContentBlock
	isError bool
}

func NewCallResult(raw json.RawMessage) *CallResult {
	r := &CallResult{Raw: raw}
	var parsed struct {
		Content []protocol.ContentBlock `json:"content"`
		IsError bool                    `json:"isError"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		r.Content = parsed.Content
		r.isError = parsed.IsError
	}
	return r
}

// Text is the result's text, falling back to the raw JSON when no text
// could be extracted.
func (r *CallResult) Text() string {
	if text, ok := discovery.ExtractText(r.Raw); ok {
		return text
	}
	return string(r.Raw)
}

func (r *CallResult) JSON() (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *CallResult) Markdown() string {
	if len(r.Content) == 0 {
		return r.Text()
	}
	var sb strings.Builder
	for _, c := range r.Content {
		switch c.Type {
		case "text":
			sb.WriteString(c.Text)
			sb.WriteString("\n\n")
		case "image":
			fmt.Fprintf(&sb, "![Image](data:%s;base64,%s)\n\n", mimeOr(c.MimeType, "image/png"), c.Data)
		default:
			fmt.Fprintf(&sb, "### %s\n\n", c.Type)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (r *CallResult) IsError() bool {
	return r.isError
}

func mimeOr(mime, fallback string) string {
	if mime == "" {
		return fallback
	}
	return mime
}
