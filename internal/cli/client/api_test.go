package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-scooter/toolbridge/internal/api"
	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
)

func TestControlClient_Detect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/detection/{name}/refresh", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(detection.Detection{ToolInfo: detection.ToolInfo{Name: r.PathValue("name"), Installed: true}})
	})
	mux.HandleFunc("DELETE /api/detection", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewControlClient(srv.URL, time.Second)
	d, err := c.Detect(context.Background(), "ollama", true)
	require.NoError(t, err)
	assert.Equal(t, "ollama", d.Name)
	assert.True(t, d.Installed)
	require.NoError(t, c.ClearDetections(context.Background()))
}

func TestControlClient_CallTool(t *testing.T) {
	var got api.CallRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mcp/call", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		json.NewEncoder(w).Encode(api.CallResponse{Result: json.RawMessage(`{"content":[]}`)})
	}))
	defer srv.Close()

	c := NewControlClient(srv.URL, 0)
	res, err := c.CallTool(context.Background(), "s__t", json.RawMessage(`{"a":1}`), 1500*time.Millisecond)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[]}`, string(res))
	assert.Equal(t, "s__t", got.Name)
	assert.Equal(t, int64(1500), got.TimeoutMS)
	assert.JSONEq(t, `{"a":1}`, string(got.Arguments))
}

func TestControlClient_ErrorBodyKeepsKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorBody{Error: "unknown_tool: malformed tool name", Kind: "unknown_tool"})
	}))
	defer srv.Close()

	_, err := NewControlClient(srv.URL, 0).CallTool(context.Background(), "bad", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnknownTool))
	assert.Equal(t, apperr.KindUnknownTool, apperr.KindOf(err))

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusNotFound, remote.Status)
}

func TestControlClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewControlClient(srv.URL, 0).Servers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(err))
}

func TestControlClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewControlClient(url, time.Second).Sessions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon unreachable")
}
