//go:build !windows

package integration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// Keychain stores secrets in the OS keychain: the macOS Keychain or the
// Secret Service on Linux and the BSDs. Entries use prefix as the service
// name and the secret ID as the account.
//
// When no keychain backend is reachable (a headless host without a Secret
// Service daemon) secrets go to a user-only YAML file under dir instead.
type Keychain struct {
	prefix string
	path   string
	mu     sync.Mutex
}

// NewKeychain creates a keychain whose entries are named "<prefix>:<id>".
func NewKeychain(prefix, dir string) *Keychain {
	return &Keychain{prefix: prefix, path: filepath.Join(dir, "secrets.yaml")}
}

func (k *Keychain) SetSecret(id, secret string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyring.Set(k.prefix, id, secret)
	if err == nil {
		// Drop any copy left in the fallback file by an earlier run.
		return k.removeFromFile(id)
	}
	logger.Warnf("OS keychain unavailable (%v); storing %q in %s", err, id, k.path)

	secrets, err := k.load()
	if err != nil {
		return err
	}
	secrets[k.target(id)] = secret
	return k.save(secrets)
}

func (k *Keychain) GetSecret(id string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v, err := keyring.Get(k.prefix, id)
	if err == nil {
		return v, nil
	}

	secrets, loadErr := k.load()
	if loadErr != nil {
		return "", loadErr
	}
	if v, ok := secrets[k.target(id)]; ok {
		return v, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("secret %q not found", id)
	}
	return "", fmt.Errorf("secret %q: %w", id, err)
}

func (k *Keychain) RemoveSecret(id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyring.Delete(k.prefix, id)
	if fileErr := k.removeFromFile(id); fileErr != nil {
		return fileErr
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Debugf("OS keychain delete for %q: %v", id, err)
	}
	return nil
}

func (k *Keychain) target(id string) string {
	return fmt.Sprintf("%s:%s", k.prefix, id)
}

func (k *Keychain) removeFromFile(id string) error {
	secrets, err := k.load()
	if err != nil {
		return err
	}
	if _, ok := secrets[k.target(id)]; !ok {
		return nil
	}
	delete(secrets, k.target(id))
	return k.save(secrets)
}

func (k *Keychain) load() (map[string]string, error) {
	secrets := make(map[string]string)
	data, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return secrets, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse %s", k.path)
	}
	return secrets, nil
}

func (k *Keychain) save(secrets map[string]string) error {
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(k.path, data, 0600)
}
