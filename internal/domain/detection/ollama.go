package detection

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// DefaultOllamaPort is the port "ollama serve" listens on.
const DefaultOllamaPort = 11434

// OllamaDetector finds the Ollama CLI and checks whether its local server
// answers.
type OllamaDetector struct {
	CLIDetector
	client  *http.Client
	BaseURL string
}

func NewOllamaDetector(opts Options) *OllamaDetector {
	opts = opts.withDefaults()
	goos := opts.Prober.Env.GOOS

	d := &OllamaDetector{
		CLIDetector: opts.base(ToolOllama, "ollama"),
		client:      opts.HTTPClient,
		BaseURL:     ollamaBaseURL(opts.Prober.Env.getenv("OLLAMA_HOST"), opts.OllamaPort),
	}
	var extras []string
	if goos == "darwin" {
		extras = []string{"/Applications/Ollama.app/Contents/Resources/ollama"}
	}
	d.Paths = CommonPaths("ollama", "Ollama", goos, extras...)
	d.Spec = VerifySpec{
		VersionSignatures: []string{"ollama"},
		HelpSignatures:    []string{"ollama"},
		SemverPattern:     DefaultSemverPattern,
	}
	d.Instructions = ollamaInstructions(goos)

	livenessTimeout := opts.LivenessTimeout
	d.RunningCheck = func(ctx context.Context) *bool {
		ctx, cancel := context.WithTimeout(ctx, livenessTimeout)
		defer cancel()
		return boolPtr(d.ping(ctx))
	}
	return d
}

// ping reports whether GET /api/tags answers 200.
func (d *OllamaDetector) ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ollamaBaseURL follows the OLLAMA_HOST conventions of the ollama CLI:
// scheme and port are optional and a wildcard bind address means loopback.
func ollamaBaseURL(host string, port int) string {
	if port == 0 {
		port = DefaultOllamaPort
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Sprintf("http://localhost:%d", port)
	}

	scheme := "http"
	if i := strings.Index(host, "://"); i >= 0 {
		scheme = host[:i]
		host = host[i+3:]
	}
	host = strings.TrimRight(host, "/")

	h, p, err := net.SplitHostPort(host)
	if err != nil {
		h, p = strings.Trim(host, "[]"), fmt.Sprint(port)
	}
	if h == "" || h == "0.0.0.0" || h == "::" {
		h = "localhost"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(h, p))
}
