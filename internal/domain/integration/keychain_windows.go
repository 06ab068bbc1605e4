//go:build windows

package integration

import (
	"fmt"

	"github.com/danieljoos/wincred"
)

// Keychain stores secrets in the Windows Credential Manager.
type Keychain struct {
	prefix string
}

// NewKeychain creates a keychain whose entries are named "<prefix>:<id>".
// dir is unused on Windows.
func NewKeychain(prefix, dir string) *Keychain {
	return &Keychain{prefix: prefix}
}

// SetSecret stores a secret in the Windows Credential Manager.
func (k *Keychain) SetSecret(id, secret string) error {
	cred := wincred.NewGenericCredential(k.target(id))
	cred.CredentialBlob = []byte(secret)
	cred.Persist = wincred.PersistLocalMachine
	return cred.Write()
}

// GetSecret retrieves a secret from the Windows Credential Manager.
func (k *Keychain) GetSecret(id string) (string, error) {
	cred, err := wincred.GetGenericCredential(k.target(id))
	if err != nil {
		return "", err
	}
	return string(cred.CredentialBlob), nil
}

// RemoveSecret deletes a secret from the Windows Credential Manager.
func (k *Keychain) RemoveSecret(id string) error {
	cred, err := wincred.GetGenericCredential(k.target(id))
	if err != nil {
		return err
	}
	return cred.Delete()
}

func (k *Keychain) target(id string) string {
	return fmt.Sprintf("%s:%s", k.prefix, id)
}
