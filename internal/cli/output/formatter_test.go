package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-scooter/toolbridge/internal/cli/errors"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
)

func TestFormatResult(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`)
	res := NewCallResult(raw)

	var buf bytes.Buffer
	assert.Equal(t, "a\nb", NewFormatter(&buf, FormatText, false).FormatResult(res))
	assert.Equal(t, string(raw), NewFormatter(&buf, FormatRaw, false).FormatResult(res))
	assert.Equal(t, "a\n\nb", NewFormatter(&buf, FormatMarkdown, false).FormatResult(res))
	assert.JSONEq(t, string(raw), NewFormatter(&buf, FormatJSON, false).FormatResult(res))
}

func TestFormatResult_ErrorAndFallback(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, FormatText, false)

	res := NewCallResult(json.RawMessage(`{"isError":true,"content":[{"type":"text","text":"nope"}]}`))
	assert.True(t, res.IsError())
	assert.Equal(t, "Error: nope", f.FormatResult(res))

	// Nothing extractable: the raw JSON is shown.
	res = NewCallResult(json.RawMessage(`{"content":[]}`))
	assert.Equal(t, `{"content":[]}`, f.FormatResult(res))
}

func TestFormatError(t *testing.T) {
	var buf bytes.Buffer
	err := errors.ClassifiedError{Kind: "timeout", Message: "too slow", Hint: "raise --timeout"}
	assert.Equal(t, "Error [timeout]: too slow\nHint: raise --timeout", NewFormatter(&buf, FormatText, false).FormatError(err))
}

func TestDetectionsTable(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf, FormatText, false)
	running := true
	require.NoError(t, f.Detections(map[string]detection.Detection{
		"ollama": {ToolInfo: detection.ToolInfo{Name: "ollama", Installed: true, Version: "0.5.1", Path: "/usr/bin/ollama", InPath: true, Running: &running}},
		"gemini": {ToolInfo: detection.ToolInfo{Name: "gemini", Error: "not found"}},
	}))
	out := buf.String()
	assert.Contains(t, out, "0.5.1")
	assert.Contains(t, out, "not found")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("gemini")), bytes.Index(buf.Bytes(), []byte("ollama")))
}
