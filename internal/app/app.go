// Package app wires the detection registry, MCP manager and gateway from
// settings. The daemon and the CLI's direct mode share it.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/domain/detection"
	"github.com/mcp-scooter/toolbridge/internal/domain/discovery"
	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
	"github.com/mcp-scooter/toolbridge/internal/envutil"
	"github.com/mcp-scooter/toolbridge/internal/logger"
	"github.com/mcp-scooter/toolbridge/internal/telemetry"
)

// DirEnv overrides the application directory.
const DirEnv = "TOOLBRIDGE_CONFIG_DIR"

// SettingsFile is the settings file name inside the application directory.
const SettingsFile = "settings.yaml"

// Dir returns the application directory, creating it if needed.
func Dir() (string, error) {
	dir := os.Getenv(DirEnv)
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = "."
		}
		dir = filepath.Join(configDir, "toolbridge")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app dir: %w", err)
	}
	return dir, nil
}

// Options tune New.
type Options struct {
	// Registerer receives the metrics; nil disables them.
	Registerer prometheus.Registerer
	// Detection overrides the detector collaborators, mostly for tests.
	Detection *detection.Options
	// Launcher overrides process launching for MCP servers.
	Launcher discovery.Launcher
}

// Services is the wired set of subsystems.
type Services struct {
	Dir         string
	Store       *profile.Store
	Registry    *detection.Registry
	Manager     *discovery.Manager
	Gateway     *discovery.Gateway
	Scripts     *discovery.ScriptRunner
	Credentials *integration.CredentialManager
	Fixer       *envutil.Repairer
	Metrics     *telemetry.Metrics

	detectionOpts detection.Options

	mu       sync.RWMutex
	settings profile.Settings
	custom   []string
}

// New builds services for the application directory dir. The store path
// may be overridden with configPath.
func New(dir, configPath string, opts Options) (*Services, error) {
	if configPath == "" {
		configPath = filepath.Join(dir, SettingsFile)
	}
	store := profile.NewStore(configPath)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &Services{
		Dir:         dir,
		Store:       store,
		Credentials: integration.NewCredentialManager(dir),
		Fixer:       envutil.NewRepairer(),
		settings:    settings,
	}
	if opts.Registerer != nil {
		s.Metrics = telemetry.New(opts.Registerer)
	}

	if opts.Detection != nil {
		s.detectionOpts = *opts.Detection
	} else {
		s.detectionOpts = detection.DefaultOptions()
		s.detectionOpts.Verifier = detection.NewVerifier(detection.ExecRunner{}, settings.VerifyTimeout.Std())
		s.detectionOpts.LivenessTimeout = settings.LivenessTimeout.Std()
		s.detectionOpts.OllamaPort = settings.OllamaPort
	}
	s.Registry = detection.NewRegistry(settings.DetectionTTL.Std(), detection.Builtins(s.detectionOpts)...)
	s.Registry.SetMetrics(s.Metrics)
	// New PATH entries can turn missing tools into installed ones.
	s.Fixer.OnChange = func(envutil.Result) { s.Registry.ClearAll() }
	s.registerCustom(settings.CustomTools)

	mopts := discovery.OptionsFromSettings(settings)
	mopts.SecretLookup = s.Credentials.Lookup
	mopts.Metrics = s.Metrics
	mopts.Launcher = opts.Launcher
	s.Manager = discovery.NewManager(mopts)
	s.Gateway = discovery.NewGateway(s.Manager, s.servers)
	s.Scripts = discovery.NewScriptRunner(s.Gateway, discovery.DefaultScriptTimeout)

	return s, nil
}

// Settings returns the current settings snapshot.
func (s *Services) Settings() profile.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Services) servers() []profile.ServerConfig {
	return s.Settings().McpServers
}

// Apply swaps in new settings. The gateway sees the new server list on
// its next call and custom detectors are re-registered. Timeouts of the
// manager are fixed at construction.
func (s *Services) Apply(settings profile.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.registerCustom(settings.CustomTools)
	logger.Infof("Settings applied: %d MCP servers, %d custom tools", len(settings.McpServers), len(settings.CustomTools))
}

func (s *Services) registerCustom(tools []profile.CustomTool) {
	detectors, errs := detection.CustomDetectors(tools, s.detectionOpts)
	for _, err := range errs {
		logger.Warnf("Skipping custom tool: %v", err)
	}

	s.mu.Lock()
	previous := s.custom
	s.custom = nil
	for _, d := range detectors {
		s.custom = append(s.custom, d.Name())
	}
	current := slices.Clone(s.custom)
	s.mu.Unlock()

	for _, name := range previous {
		if !slices.Contains(current, name) {
			s.Registry.Unregister(name)
		}
	}
	for _, d := range detectors {
		s.Registry.Register(d)
	}
}

// Save validates, persists and applies settings.
func (s *Services) Save(settings profile.Settings) error {
	if res := profile.Validate(settings, detection.BuiltinNames()...); !res.Valid {
		return apperr.Wrap(apperr.KindConfig, res.Err(), "invalid settings")
	}
	if err := s.Store.Save(settings); err != nil {
		return err
	}
	s.Apply(settings)
	return nil
}

// ImportServers merges MCP servers from the named AI clients (all when
// names is empty) into the settings and saves them.
func (s *Services) ImportServers(names []string, loc integration.Locator) (integration.ImportResult, error) {
	var clients []integration.Client
	for _, c := range integration.Clients(loc) {
		if len(names) == 0 || slices.Contains(names, c.Name()) {
			clients = append(clients, c)
		}
	}
	settings := s.Settings()
	res := integration.ImportServers(clients, settings.McpServers)
	if len(res.Servers) == 0 {
		return res, nil
	}
	settings.McpServers = append(slices.Clone(settings.McpServers), res.Servers...)
	if err := s.Save(settings); err != nil {
		return integration.ImportResult{}, err
	}
	logger.Infof("Imported %d MCP servers from client configs", len(res.Servers))
	return res, nil
}
