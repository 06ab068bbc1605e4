// Package client talks to toolbridge either through the daemon's control
// API or in-process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/api"
	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
	"github.com/mcp-scooter/toolbridge/internal/envutil"
)

// Backend is what the CLI commands need from toolbridge.
type Backend interface {
	DetectAll(ctx context.Context) (map[string]detection.Detection, error)
	Detect(ctx context.Context, name string, refresh bool) (detection.Detection, error)
	ClearDetections(ctx context.Context) error
	Instructions(ctx context.Context, name string) (string, error)
	Servers(ctx context.Context) ([]api.ServerInfo, error)
	ImportServers(ctx context.Context, clients []string) (integration.ImportResult, error)
	ListTools(ctx context.Context) (discovery.ToolListing, error)
	CallTool(ctx context.Context, name string, args json.RawMessage, timeout time.Duration) (json.RawMessage, error)
	RunScript(ctx context.Context, script string, args map[string]any) (*discovery.ScriptResult, error)
	FixEnvironment(ctx context.Context) (envutil.Result, error)
	Sessions(ctx context.Context) ([]discovery.SessionInfo, error)
	Close() error
}

// RemoteError is an error answered by the daemon. It unwraps to an
// apperr error of the same kind so apperr.KindOf keeps working.
type RemoteError struct {
	Status  int
	Kind    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error {
	if e.Kind == "" {
		return nil
	}
	return &apperr.Error{Kind: apperr.Kind(e.Kind)}
}

// ControlClient is a Backend over the daemon's HTTP control API.
type ControlClient struct {
	baseURL string
	client  *http.Client
}

// NewControlClient creates a client for the daemon at baseURL. A zero
// timeout leaves requests bounded only by their context.
func NewControlClient(baseURL string, timeout time.Duration) *ControlClient {
	return &ControlClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ControlClient) DetectAll(ctx context.Context) (map[string]detection.Detection, error) {
	var out map[string]detection.Detection
	err := c.do(ctx, http.MethodGet, "/api/detection", nil, &out)
	return out, err
}

func (c *ControlClient) Detect(ctx context.Context, name string, refresh bool) (detection.Detection, error) {
	var out detection.Detection
	path := "/api/detection/" + url.PathEscape(name)
	if refresh {
		err := c.do(ctx, http.MethodPost, path+"/refresh", nil, &out)
		return out, err
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *ControlClient) ClearDetections(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/detection", nil, nil)
}

func (c *ControlClient) Instructions(ctx context.Context, name string) (string, error) {
	var out api.InstructionsResponse
	err := c.do(ctx, http.MethodGet, "/api/detection/"+url.PathEscape(name)+"/instructions", nil, &out)
	return out.Instructions, err
}

func (c *ControlClient) Servers(ctx context.Context) ([]api.ServerInfo, error) {
	var out []api.ServerInfo
	err := c.do(ctx, http.MethodGet, "/api/mcp/servers", nil, &out)
	return out, err
}

func (c *ControlClient) ImportServers(ctx context.Context, clients []string) (integration.ImportResult, error) {
	var out integration.ImportResult
	err := c.do(ctx, http.MethodPost, "/api/clients/import", api.ImportRequest{Clients: clients}, &out)
	return out, err
}

func (c *ControlClient) ListTools(ctx context.Context) (discovery.ToolListing, error) {
	var out discovery.ToolListing
	err := c.do(ctx, http.MethodGet, "/api/mcp/tools", nil, &out)
	return out, err
}

func (c *ControlClient) CallTool(ctx context.Context, name string, args json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	req := api.CallRequest{Name: name, Arguments: args, TimeoutMS: timeout.Milliseconds()}
	var out api.CallResponse
	if err := c.do(ctx, http.MethodPost, "/api/mcp/call", req, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *ControlClient) RunScript(ctx context.Context, script string, args map[string]any) (*discovery.ScriptResult, error) {
	var out discovery.ScriptResult
	err := c.do(ctx, http.MethodPost, "/api/mcp/script", api.ScriptRequest{Script: script, Args: args}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ControlClient) FixEnvironment(ctx context.Context) (envutil.Result, error) {
	var out envutil.Result
	err := c.do(ctx, http.MethodPost, "/api/environment/fix", nil, &out)
	return out, err
}

func (c *ControlClient) Sessions(ctx context.Context) ([]discovery.SessionInfo, error) {
	var out []discovery.SessionInfo
	err := c.do(ctx, http.MethodGet, "/api/mcp/sessions", nil, &out)
	return out, err
}

func (c *ControlClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *ControlClient) do(ctx context.Context, method, path string, body, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body api.ErrorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return &RemoteError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
		}
	}
	return &RemoteError{Status: resp.StatusCode, Kind: body.Kind, Message: body.Error}
}
