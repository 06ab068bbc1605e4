package integration

import (
	"os"
	"strings"

	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// SecretEnvPrefix lets secrets be supplied through the environment, e.g.
// TOOLBRIDGE_SECRET_GITHUB_PAT for the id "github-pat".
const SecretEnvPrefix = "TOOLBRIDGE_SECRET_"

// CredentialManager resolves secret identifiers referenced by secrets_env.
type CredentialManager struct {
	keychain *Keychain
	getenv   func(string) string
}

// NewCredentialManager creates a credential manager backed by the platform
// keychain. dir holds the secrets file on platforms without one.
func NewCredentialManager(dir string) *CredentialManager {
	return &CredentialManager{
		keychain: NewKeychain("toolbridge", dir),
		getenv:   os.Getenv,
	}
}

// Lookup resolves id to a secret value. It never fails; an unknown id is
// reported as absent. Found values are registered with the logger so they
// are redacted from all output.
func (c *CredentialManager) Lookup(id string) (string, bool) {
	if v := c.getenv(SecretEnvName(id)); v != "" {
		logger.RegisterSecret(v)
		return v, true
	}
	v, err := c.keychain.GetSecret(id)
	if err != nil || v == "" {
		return "", false
	}
	logger.RegisterSecret(v)
	return v, true
}

// SetCredential stores a secret in the keychain.
func (c *CredentialManager) SetCredential(id, value string) error {
	logger.RegisterSecret(value)
	return c.keychain.SetSecret(id, value)
}

// DeleteCredential removes a secret from the keychain.
func (c *CredentialManager) DeleteCredential(id string) error {
	return c.keychain.RemoveSecret(id)
}

// SecretEnvName is the environment variable consulted for id.
func SecretEnvName(id string) string {
	var sb strings.Builder
	sb.WriteString(SecretEnvPrefix)
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
