// Package discovery runs MCP servers as single-use stdio sessions and
// exposes their tools through a namespaced gateway.
package discovery

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/domain/protocol"
	"github.com/mcp-scooter/toolbridge/internal/logger"
	"github.com/mcp-scooter/toolbridge/internal/telemetry"
)

const (
	DefaultInitTimeout   = 10 * time.Second
	DefaultCallTimeout   = 30 * time.Second
	DefaultShutdownGrace = 2 * time.Second
	DefaultMaxLineBytes  = 16 * 1024 * 1024

	// maxListPages caps tools/list pagination against a server that keeps
	// returning a cursor.
	maxListPages = 50
)

// SecretLookup resolves a secret identifier. Absent secrets return false.
type SecretLookup func(id string) (string, bool)

// ManagerOptions configures a Manager. Zero values take the defaults.
type ManagerOptions struct {
	SecretLookup  SecretLookup
	InitTimeout   time.Duration
	CallTimeout   time.Duration
	ShutdownGrace time.Duration
	MaxLineBytes  int
	ClientName    string
	ClientVersion string
	Metrics       *telemetry.Metrics

	// Launcher overrides process creation; nil spawns real processes and
	// runs .wasm commands in-process.
	Launcher Launcher
	// OnSpawn is called with every started session.
	OnSpawn func(*Session)
}

// OptionsFromSettings maps persisted settings onto manager options.
func OptionsFromSettings(s profile.Settings) ManagerOptions {
	return ManagerOptions{
		InitTimeout:   s.InitTimeout.Std(),
		CallTimeout:   s.CallTimeout.Std(),
		ShutdownGrace: s.ShutdownGrace.Std(),
		MaxLineBytes:  s.MaxLineBytes,
	}
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.InitTimeout <= 0 {
		o.InitTimeout = DefaultInitTimeout
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = DefaultShutdownGrace
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = DefaultMaxLineBytes
	}
	if o.ClientName == "" {
		o.ClientName = "toolbridge"
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "0.1.0"
	}
	if o.SecretLookup == nil {
		o.SecretLookup = func(string) (string, bool) { return "", false }
	}
	return o
}

// Manager spawns MCP servers and runs one exchange per session. It keeps
// no pool; every request gets a fresh process.
type Manager struct {
	opts ManagerOptions
	exec Launcher
	wasm Launcher

	mu     sync.Mutex
	active map[string]*Session
}

func NewManager(opts ManagerOptions) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		opts:   opts,
		exec:   execLauncher{},
		wasm:   newWasmLauncher(),
		active: make(map[string]*Session),
	}
	if opts.Launcher != nil {
		m.exec = opts.Launcher
		m.wasm = opts.Launcher
	}
	return m
}

// CallTimeout is the default timeout for a dispatched request.
func (m *Manager) CallTimeout() time.Duration { return m.opts.CallTimeout }

// Request runs spawn, initialize, one dispatched method and teardown. A
// timeout of zero uses the manager's call timeout.
func (m *Manager) Request(ctx context.Context, cfg profile.ServerConfig, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	start := time.Now()
	result, err := m.request(ctx, cfg, method, params, timeout)
	m.opts.Metrics.ObserveRequest(cfg.ID, method, err, time.Since(start))
	if err != nil {
		logger.Warnf("[%s] %s failed: %v", cfg.ID, method, err)
		return nil, apperr.TagServer(err, cfg.ID)
	}
	return result, nil
}

func (m *Manager) request(ctx context.Context, cfg profile.ServerConfig, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	s, err := m.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Call(ctx, method, params, m.callTimeout(timeout))
}

// ListTools fetches every tool a server offers, following nextCursor
// within one session.
func (m *Manager) ListTools(ctx context.Context, cfg profile.ServerConfig) ([]protocol.Tool, error) {
	start := time.Now()
	tools, err := m.listTools(ctx, cfg)
	m.opts.Metrics.ObserveRequest(cfg.ID, protocol.MethodToolsList, err, time.Since(start))
	if err != nil {
		return nil, apperr.TagServer(err, cfg.ID)
	}
	return tools, nil
}

func (m *Manager) listTools(ctx context.Context, cfg profile.ServerConfig) ([]protocol.Tool, error) {
	s, err := m.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var tools []protocol.Tool
	cursor := ""
	for page := 0; page < maxListPages; page++ {
		var params any
		if cursor != "" {
			params = map[string]string{"cursor": cursor}
		}
		raw, err := s.Call(ctx, protocol.MethodToolsList, params, m.opts.CallTimeout)
		if err != nil {
			return nil, err
		}
		var res protocol.ListToolsResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, apperr.Wrap(apperr.KindProtocol, err, "decode tools/list result")
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}
	return tools, nil
}

// Open spawns the server and completes the MCP handshake. The caller
// must Close the session.
func (m *Manager) Open(ctx context.Context, cfg profile.ServerConfig) (*Session, error) {
	cfg = cfg.Normalize()
	if cfg.Command == "" {
		return nil, apperr.New(apperr.KindConfig, "server has no command").WithServer(cfg.ID)
	}

	spec := LaunchSpec{
		ServerID:  cfg.ID,
		Command:   cfg.Command,
		Args:      cfg.Args,
		Env:       m.environment(cfg),
		StopDelay: m.opts.ShutdownGrace,
	}
	launcher := m.exec
	if IsWasmCommand(cfg.Command) {
		launcher = m.wasm
	}
	proc, err := launcher.Launch(ctx, spec)
	if err != nil {
		return nil, (&apperr.Error{
			Kind: apperr.KindSpawnFailed,
			Msg:  "failed to spawn server " + cfg.ID,
			Err:  err,
		}).WithServer(cfg.ID)
	}

	s := newSession(uuid.NewString(), cfg.ID, proc, m.opts.MaxLineBytes, m.opts.ShutdownGrace)
	m.track(s)
	logger.Debugf("[%s] session %s started (pid %d)", cfg.ID, shortID(s.ID()), s.PID())
	if m.opts.OnSpawn != nil {
		m.opts.OnSpawn(s)
	}

	client := protocol.ClientInfo{Name: m.opts.ClientName, Version: m.opts.ClientVersion}
	if err := s.initialize(ctx, client, m.opts.InitTimeout); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// environment merges the server's env with its resolved secrets. Only
// variable names are ever logged.
func (m *Manager) environment(cfg profile.ServerConfig) map[string]string {
	env := make(map[string]string, len(cfg.Env)+len(cfg.SecretsEnv))
	for k, v := range cfg.Env {
		env[k] = v
	}
	for _, name := range sortedKeys(cfg.SecretsEnv) {
		value, ok := m.opts.SecretLookup(cfg.SecretsEnv[name])
		if !ok {
			logger.Warnf("[%s] secret for %s not found, leaving it unset", cfg.ID, name)
			continue
		}
		logger.RegisterSecret(value)
		env[name] = value
	}
	return env
}

func (m *Manager) callTimeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return m.opts.CallTimeout
}

func (m *Manager) track(s *Session) {
	m.mu.Lock()
	m.active[s.ID()] = s
	m.mu.Unlock()
	m.opts.Metrics.SessionStarted()
	s.onClose = func() {
		m.mu.Lock()
		delete(m.active, s.ID())
		m.mu.Unlock()
		m.opts.Metrics.SessionEnded()
		logger.Debugf("[%s] session %s closed", s.Server(), shortID(s.ID()))
	}
}

// Active lists live sessions, oldest first.
func (m *Manager) Active() []SessionInfo {
	m.mu.Lock()
	out := make([]SessionInfo, 0, len(m.active))
	for _, s := range m.active {
		out = append(out, s.Info())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Shutdown kills every live session. Used when the daemon exits.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.active))
	for _, s := range m.active {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.kill()
	}
}
