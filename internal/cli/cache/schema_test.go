package cache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
)

func TestSchemaCache_SetGet(t *testing.T) {
	c := NewSchemaCache(t.TempDir())
	tool := protocol.Tool{Name: "fs__read/file", InputSchema: json.RawMessage(`{"type":"object"}`)}
	require.NoError(t, c.Set(tool))

	got, ok := c.Get("fs__read/file")
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"object"}`, string(got.InputSchema))

	_, ok = c.Get("fs__missing")
	assert.False(t, ok)
	_, ok = c.Get("malformed")
	assert.False(t, ok)
}

func TestSchemaCache_ReplaceDropsStaleTools(t *testing.T) {
	c := NewSchemaCache(t.TempDir())
	require.NoError(t, c.Replace([]protocol.Tool{{Name: "a__old"}, {Name: "b__keep"}}))
	require.NoError(t, c.Replace([]protocol.Tool{{Name: "a__new"}}))

	tools, err := c.All()
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"a__new", "b__keep"}, names)
}

func TestSchemaCache_AllMissingDir(t *testing.T) {
	c := NewSchemaCache(t.TempDir() + "/nope")
	tools, err := c.All()
	require.NoError(t, err)
	assert.Empty(t, tools)
}
