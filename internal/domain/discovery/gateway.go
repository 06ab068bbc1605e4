package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// Separator joins a server id and a raw tool name.
const Separator = "__"

// Requester is the part of Manager the gateway needs.
type Requester interface {
	Request(ctx context.Context, cfg profile.ServerConfig, method string, params any, timeout time.Duration) (json.RawMessage, error)
	ListTools(ctx context.Context, cfg profile.ServerConfig) ([]protocol.Tool, error)
}

// Gateway presents the tools of all enabled servers as one flat,
// namespaced space.
type Gateway struct {
	requester Requester

	mu      sync.RWMutex
	servers func() []profile.ServerConfig
}

// NewGateway creates a gateway reading its server list from servers on
// every call.
func NewGateway(requester Requester, servers func() []profile.ServerConfig) *Gateway {
	if servers == nil {
		servers = func() []profile.ServerConfig { return nil }
	}
	return &Gateway{requester: requester, servers: servers}
}

// SetServers replaces the server list with a fixed snapshot.
func (g *Gateway) SetServers(servers []profile.ServerConfig) {
	snapshot := append([]profile.ServerConfig(nil), servers...)
	g.mu.Lock()
	g.servers = func() []profile.ServerConfig { return snapshot }
	g.mu.Unlock()
}

// Servers returns the enabled servers in configuration order.
func (g *Gateway) Servers() []profile.ServerConfig {
	g.mu.RLock()
	source := g.servers
	g.mu.RUnlock()
	var out []profile.ServerConfig
	for _, s := range source() {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// ServerFailure records a server left out of a tool listing.
type ServerFailure struct {
	Server string `json:"server"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error"`
}

// ToolListing is the outcome of listing every server.
type ToolListing struct {
	Tools    []protocol.Tool `json:"tools"`
	Failures []ServerFailure `json:"failures,omitempty"`
}

// ListTools returns the namespaced tools of every enabled server. Servers
// that fail are logged and left out; only cancellation fails the call.
func (g *Gateway) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	listing, err := g.ListToolsDetailed(ctx)
	if err != nil {
		return nil, err
	}
	return listing.Tools, nil
}

// ListToolsDetailed is ListTools plus the per-server failures.
func (g *Gateway) ListToolsDetailed(ctx context.Context) (ToolListing, error) {
	servers := g.Servers()
	perServer := make([][]protocol.Tool, len(servers))
	errs := make([]error, len(servers))

	var eg errgroup.Group
	for i, srv := range servers {
		eg.Go(func() error {
			tools, err := g.requester.ListTools(ctx, srv)
			if err != nil {
				errs[i] = err
				return nil
			}
			for j := range tools {
				tools[j].Name = srv.ID + Separator + tools[j].Name
			}
			perServer[i] = tools
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return ToolListing{}, err
	}

	listing := ToolListing{Tools: []protocol.Tool{}}
	for i, srv := range servers {
		if errs[i] != nil {
			logger.Warnf("[%s] tools/list failed, omitting server: %v", srv.ID, errs[i])
			listing.Failures = append(listing.Failures, ServerFailure{
				Server: srv.ID,
				Kind:   string(apperr.KindOf(errs[i])),
				Error:  errs[i].Error(),
			})
			continue
		}
		listing.Tools = append(listing.Tools, perServer[i]...)
	}
	return listing, nil
}

// CallOption adjusts a single CallTool invocation.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the manager's call timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// CallTool dispatches tools/call for a namespaced tool and returns the
// raw result payload.
func (g *Gateway) CallTool(ctx context.Context, name string, arguments json.RawMessage, opts ...CallOption) (json.RawMessage, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	serverID, tool, err := SplitName(name)
	if err != nil {
		return nil, err
	}
	srv, ok := g.server(serverID)
	if !ok {
		return nil, apperr.New(apperr.KindConfig, "no enabled server %q", serverID).WithServer(serverID).WithTool(name)
	}
	if len(arguments) == 0 || string(arguments) == "null" {
		arguments = json.RawMessage("{}")
	}
	params := protocol.CallToolParams{Name: tool, Arguments: arguments}
	return g.requester.Request(ctx, srv, protocol.MethodToolsCall, params, o.timeout)
}

func (g *Gateway) server(id string) (profile.ServerConfig, bool) {
	for _, s := range g.Servers() {
		if s.ID == id {
			return s, true
		}
	}
	return profile.ServerConfig{}, false
}

// SplitName splits "<server>__<tool>" on the first separator. Tool names
// may themselves contain the separator.
func SplitName(name string) (server, tool string, err error) {
	server, tool, ok := strings.Cut(name, Separator)
	if !ok || server == "" || tool == "" {
		return "", "", apperr.New(apperr.KindUnknownTool, "malformed tool name %q, expected <server>%s<tool>", name, Separator).WithTool(name)
	}
	return server, tool, nil
}
