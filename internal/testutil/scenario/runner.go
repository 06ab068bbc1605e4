// Package scenario runs YAML-described gateway scenarios against stub MCP
// servers.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/testutil/mcpstub"
)

// Scenario represents a test scenario defined in YAML.
type Scenario struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	CallTimeout profile.Duration `yaml:"call_timeout"`
	Servers     []Server         `yaml:"servers"`
	Steps       []Step           `yaml:"steps"`
}

// Server is a stub server; Mode is one of the mcpstub modes.
type Server struct {
	ID       string `yaml:"id"`
	Mode     string `yaml:"mode"`
	Disabled bool   `yaml:"disabled"`
}

type Step struct {
	Name   string         `yaml:"name"`
	Action string         `yaml:"action"`
	Tool   string         `yaml:"tool,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`
	Expect Expect         `yaml:"expect"`
}

// Expect lists what a step must observe. Empty fields are not checked.
type Expect struct {
	ToolsContain    []string         `yaml:"tools_contain"`
	ToolsNotContain []string         `yaml:"tools_not_contain"`
	Failed          []string         `yaml:"failed"`
	Text            *string          `yaml:"text"`
	NoText          bool             `yaml:"no_text"`
	ResultContains  string           `yaml:"result_contains"`
	ErrorKind       string           `yaml:"error_kind"`
	ErrorContains   string           `yaml:"error_contains"`
	Within          profile.Duration `yaml:"within"`
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// Runner executes scenarios. Command is the binary started for every stub
// server, normally a test binary that calls mcpstub.RunIfHelper.
type Runner struct {
	Command string
	Options discovery.ManagerOptions
}

// Run executes every step of s against a fresh manager and gateway.
func (r *Runner) Run(ctx context.Context, s *Scenario) error {
	opts := r.Options
	if s.CallTimeout > 0 {
		opts.CallTimeout = s.CallTimeout.Std()
	}
	m := discovery.NewManager(opts)
	defer m.Shutdown()

	servers := make([]profile.ServerConfig, 0, len(s.Servers))
	for _, srv := range s.Servers {
		cfg := profile.ServerConfig{
			ID:      srv.ID,
			Command: r.Command,
			Env:     map[string]string{mcpstub.EnvMode: srv.Mode},
		}
		if srv.Disabled {
			cfg.Enabled = profile.Bool(false)
		}
		servers = append(servers, cfg)
	}
	g := discovery.NewGateway(m, func() []profile.ServerConfig { return servers })

	for _, step := range s.Steps {
		started := time.Now()
		var err error
		switch step.Action {
		case "list_tools":
			err = r.listTools(ctx, g, step.Expect)
		case "call_tool":
			err = r.callTool(ctx, g, step)
		default:
			return fmt.Errorf("unknown action: %s", step.Action)
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}
		if limit := step.Expect.Within.Std(); limit > 0 {
			if elapsed := time.Since(started); elapsed > limit {
				return fmt.Errorf("step %s took %s, expected within %s", step.Name, elapsed, limit)
			}
		}
	}
	return nil
}

func (r *Runner) listTools(ctx context.Context, g *discovery.Gateway, expect Expect) error {
	listing, err := g.ListToolsDetailed(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(listing.Tools))
	for _, t := range listing.Tools {
		names = append(names, t.Name)
	}
	for _, want := range expect.ToolsContain {
		if !slices.Contains(names, want) {
			return fmt.Errorf("expected tool %s not found in %v", want, names)
		}
	}
	for _, unwanted := range expect.ToolsNotContain {
		if slices.Contains(names, unwanted) {
			return fmt.Errorf("tool %s should not be listed", unwanted)
		}
	}
	var failed []string
	for _, f := range listing.Failures {
		failed = append(failed, f.Server)
	}
	for _, want := range expect.Failed {
		if !slices.Contains(failed, want) {
			return fmt.Errorf("expected server %s to fail, failures: %v", want, failed)
		}
	}
	return nil
}

func (r *Runner) callTool(ctx context.Context, g *discovery.Gateway, step Step) error {
	var args json.RawMessage
	if step.Args != nil {
		data, err := json.Marshal(step.Args)
		if err != nil {
			return err
		}
		args = data
	}
	result, err := g.CallTool(ctx, step.Tool, args)
	expect := step.Expect

	if expect.ErrorKind != "" || expect.ErrorContains != "" {
		if err == nil {
			return fmt.Errorf("expected an error, got result %s", result)
		}
		if expect.ErrorKind != "" && apperr.KindOf(err) != apperr.Kind(expect.ErrorKind) {
			return fmt.Errorf("expected error kind %s, got %q: %v", expect.ErrorKind, apperr.KindOf(err), err)
		}
		if !strings.Contains(err.Error(), expect.ErrorContains) {
			return fmt.Errorf("expected error containing %q, got %v", expect.ErrorContains, err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	text, ok := discovery.ExtractText(result)
	switch {
	case expect.NoText && ok:
		return fmt.Errorf("expected no text, got %q", text)
	case expect.Text != nil && text != *expect.Text:
		return fmt.Errorf("expected text %q, got %q", *expect.Text, text)
	}
	if !strings.Contains(string(result), expect.ResultContains) {
		return fmt.Errorf("expected result to contain %q, got %s", expect.ResultContains, result)
	}
	return nil
}

