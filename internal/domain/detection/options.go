package detection

import (
	"net/http"
	"time"
)

// DefaultLivenessTimeout bounds service reachability probes.
const DefaultLivenessTimeout = 2 * time.Second

// Options carries the collaborators shared by the built-in detectors.
type Options struct {
	Prober          *Prober
	Verifier        *Verifier
	HTTPClient      *http.Client
	LivenessTimeout time.Duration
	OllamaPort      int
}

// DefaultOptions returns options backed by real processes and the host
// environment.
func DefaultOptions() Options {
	return Options{
		Prober:          NewProber(ExecRunner{}, SystemEnv()),
		Verifier:        NewVerifier(ExecRunner{}, DefaultVerifyTimeout),
		HTTPClient:      http.DefaultClient,
		LivenessTimeout: DefaultLivenessTimeout,
		OllamaPort:      DefaultOllamaPort,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Prober == nil {
		o.Prober = d.Prober
	}
	if o.Verifier == nil {
		o.Verifier = d.Verifier
	}
	if o.HTTPClient == nil {
		o.HTTPClient = d.HTTPClient
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = d.LivenessTimeout
	}
	if o.OllamaPort == 0 {
		o.OllamaPort = d.OllamaPort
	}
	return o
}

func (o Options) base(name, command string) CLIDetector {
	return CLIDetector{
		ToolName: name,
		Command:  command,
		Prober:   o.Prober,
		Verifier: o.Verifier,
	}
}

// Builtins returns the claude-code, ollama and gemini detectors.
func Builtins(opts Options) []Detector {
	return []Detector{
		NewClaudeCodeDetector(opts),
		NewOllamaDetector(opts),
		NewGeminiDetector(opts),
	}
}
