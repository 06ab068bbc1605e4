package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcp-scooter/toolbridge/internal/api"
	"github.com/mcp-scooter/toolbridge/internal/app"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
	"github.com/mcp-scooter/toolbridge/internal/envutil"
)

// Direct is a Backend that runs everything in the CLI process.
type Direct struct {
	svc     *app.Services
	locator integration.Locator
}

// NewDirect wraps in-process services.
func NewDirect(svc *app.Services) *Direct {
	return &Direct{svc: svc, locator: integration.SystemLocator()}
}

func (d *Direct) DetectAll(ctx context.Context) (map[string]detection.Detection, error) {
	return d.svc.Registry.DetectAll(ctx), nil
}

func (d *Direct) Detect(ctx context.Context, name string, refresh bool) (detection.Detection, error) {
	if refresh {
		if err := d.svc.Registry.Clear(name); err != nil {
			return detection.Detection{}, err
		}
	}
	return d.svc.Registry.Detect(ctx, name)
}

func (d *Direct) ClearDetections(ctx context.Context) error {
	d.svc.Registry.ClearAll()
	return nil
}

func (d *Direct) Instructions(ctx context.Context, name string) (string, error) {
	return d.svc.Registry.InstallationInstructions(name)
}

func (d *Direct) Servers(ctx context.Context) ([]api.ServerInfo, error) {
	return api.DescribeServers(d.svc.Settings().McpServers), nil
}

func (d *Direct) ImportServers(ctx context.Context, clients []string) (integration.ImportResult, error) {
	return d.svc.ImportServers(clients, d.locator)
}

func (d *Direct) ListTools(ctx context.Context) (discovery.ToolListing, error) {
	return d.svc.Gateway.ListToolsDetailed(ctx)
}

func (d *Direct) CallTool(ctx context.Context, name string, args json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	var opts []discovery.CallOption
	if timeout > 0 {
		opts = append(opts, discovery.WithTimeout(timeout))
	}
	return d.svc.Gateway.CallTool(ctx, name, args, opts...)
}

func (d *Direct) RunScript(ctx context.Context, script string, args map[string]any) (*discovery.ScriptResult, error) {
	return d.svc.Scripts.Run(ctx, script, args)
}

func (d *Direct) FixEnvironment(ctx context.Context) (envutil.Result, error) {
	return d.svc.Fixer.Fix(ctx), nil
}

func (d *Direct) Sessions(ctx context.Context) ([]discovery.SessionInfo, error) {
	return d.svc.Manager.Active(), nil
}

// Close kills any server still running.
func (d *Direct) Close() error {
	d.svc.Manager.Shutdown()
	return nil
}
