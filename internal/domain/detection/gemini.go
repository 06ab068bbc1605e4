package detection

import (
	"context"
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/domain/integration"
)

// GeminiDetector finds the Gemini CLI. Older builds print only "google" in
// their version banner, so both signatures are accepted.
type GeminiDetector struct {
	CLIDetector
}

func NewGeminiDetector(opts Options) *GeminiDetector {
	opts = opts.withDefaults()
	goos := opts.Prober.Env.GOOS

	d := &GeminiDetector{CLIDetector: opts.base(ToolGemini, "gemini")}
	d.Paths = CommonPaths("gemini", "Gemini", goos)
	d.Spec = VerifySpec{
		VersionSignatures: []string{"gemini", "google"},
		HelpSignatures:    []string{"gemini", "google"},
		SemverPattern:     DefaultSemverPattern,
	}
	d.Instructions = geminiInstructions(goos)
	d.AuthCheck = d.checkAuth
	return d
}

// checkAuth accepts an API key in the environment or a cached Google login
// that is still valid or refreshable.
func (d *GeminiDetector) checkAuth(ctx context.Context) *bool {
	env := d.Prober.Env
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if strings.TrimSpace(env.getenv(key)) != "" {
			return boolPtr(true)
		}
	}
	if env.Home == "" {
		return boolPtr(false)
	}
	tok, err := integration.LoadGeminiToken(env.Home)
	if err != nil {
		return boolPtr(false)
	}
	return boolPtr(integration.TokenUsable(tok))
}
