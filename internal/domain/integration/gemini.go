package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/mcp-scooter/toolbridge/internal/domain/profile"
)

// GeminiClient reads servers from the Gemini CLI's settings.json.
type GeminiClient struct {
	loc Locator
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) ConfigPath() string {
	return filepath.Join(g.loc.Home, ".gemini", "settings.json")
}

func (g *GeminiClient) Servers() ([]profile.ServerConfig, error) {
	var config struct {
		McpServers map[string]stdioEntry `json:"mcpServers"`
	}
	if err := readJSON(g.ConfigPath(), &config); err != nil {
		return nil, err
	}
	return toServers(config.McpServers), nil
}

// GeminiOAuthPath is where the Gemini CLI caches its Google login.
func GeminiOAuthPath(home string) string {
	return filepath.Join(home, ".gemini", "oauth_creds.json")
}

// LoadGeminiToken reads the cached Gemini CLI login as an oauth2.Token.
// The file stores the expiry as epoch milliseconds in expiry_date.
func LoadGeminiToken(home string) (*oauth2.Token, error) {
	data, err := os.ReadFile(GeminiOAuthPath(home))
	if err != nil {
		return nil, err
	}
	var creds struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiryDate   int64  `json:"expiry_date"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
	}
	if creds.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(creds.ExpiryDate)
	}
	return tok, nil
}

// TokenUsable reports whether tok is valid now or can be refreshed.
func TokenUsable(tok *oauth2.Token) bool {
	if tok == nil {
		return false
	}
	return tok.Valid() || tok.RefreshToken != ""
}
