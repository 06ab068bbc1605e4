package profile

import (
	"time"
)

// Settings represents global application configuration.
type Settings struct {
	ControlPort     int      `yaml:"control_port" json:"control_port"`
	DetectionTTL    Duration `yaml:"detection_ttl" json:"detection_ttl"`
	VerifyTimeout   Duration `yaml:"verify_timeout" json:"verify_timeout"`
	LivenessTimeout Duration `yaml:"liveness_timeout" json:"liveness_timeout"`
	InitTimeout     Duration `yaml:"init_timeout" json:"init_timeout"`
	CallTimeout     Duration `yaml:"call_timeout" json:"call_timeout"`
	ShutdownGrace   Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
	MaxLineBytes    int      `yaml:"max_line_bytes" json:"max_line_bytes"`
	OllamaPort      int      `yaml:"ollama_port" json:"ollama_port"`

	// AllowedOrigins lists browser origins the control API answers.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`

	McpServers  []ServerConfig `yaml:"mcp_servers" json:"mcp_servers"`
	CustomTools []CustomTool   `yaml:"custom_tools,omitempty" json:"custom_tools,omitempty"`
}

// DefaultSettings returns the standard configuration.
func DefaultSettings() Settings {
	return Settings{
		ControlPort:     6210,
		DetectionTTL:    Duration(60 * time.Second),
		VerifyTimeout:   Duration(5 * time.Second),
		LivenessTimeout: Duration(2 * time.Second),
		InitTimeout:     Duration(10 * time.Second),
		CallTimeout:     Duration(30 * time.Second),
		ShutdownGrace:   Duration(2 * time.Second),
		MaxLineBytes:    16 * 1024 * 1024,
		OllamaPort:      11434,
		McpServers:      []ServerConfig{},
	}
}

// withDefaults fills zero values from DefaultSettings.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ControlPort == 0 {
		s.ControlPort = d.ControlPort
	}
	if s.DetectionTTL == 0 {
		s.DetectionTTL = d.DetectionTTL
	}
	if s.VerifyTimeout == 0 {
		s.VerifyTimeout = d.VerifyTimeout
	}
	if s.LivenessTimeout == 0 {
		s.LivenessTimeout = d.LivenessTimeout
	}
	if s.InitTimeout == 0 {
		s.InitTimeout = d.InitTimeout
	}
	if s.CallTimeout == 0 {
		s.CallTimeout = d.CallTimeout
	}
	if s.ShutdownGrace == 0 {
		s.ShutdownGrace = d.ShutdownGrace
	}
	if s.MaxLineBytes == 0 {
		s.MaxLineBytes = d.MaxLineBytes
	}
	if s.OllamaPort == 0 {
		s.OllamaPort = d.OllamaPort
	}
	if s.McpServers == nil {
		s.McpServers = []ServerConfig{}
	}
	for i := range s.McpServers {
		s.McpServers[i] = s.McpServers[i].Normalize()
	}
	return s
}

// WithDefaults fills zero values from DefaultSettings and normalizes
// server commands.
func (s Settings) WithDefaults() Settings { return s.withDefaults() }

// EnabledServers returns the enabled servers in configuration order.
func (s Settings) EnabledServers() []ServerConfig {
	out := make([]ServerConfig, 0, len(s.McpServers))
	for _, srv := range s.McpServers {
		if srv.IsEnabled() {
			out = append(out, srv)
		}
	}
	return out
}

// Duration is a time.Duration that reads and writes as "30s" in YAML and JSON.
type Duration time.Duration

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
