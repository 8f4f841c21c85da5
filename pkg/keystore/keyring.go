package keystore

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "leakix-go"
	keyringUser    = "api_key"
)

// KeyringBackend stores the API key in the OS keychain (Secret Service,
// macOS Keychain, Windows Credential Manager).
type KeyringBackend struct {
	service string
	user    string
}

// NewKeyringBackend creates the keychain backend.
func NewKeyringBackend() *KeyringBackend {
	return &KeyringBackend{service: keyringService, user: keyringUser}
}

// Name implements Backend.
func (b *KeyringBackend) Name() string { return "keyring" }

// Load implements Backend.
func (b *KeyringBackend) Load() (string, error) {
	key, err := keyring.Get(b.service, b.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return key, nil
}

// Store implements Backend.
func (b *KeyringBackend) Store(key string) error {
	return keyring.Set(b.service, b.user, key)
}

// Delete implements Backend.
func (b *KeyringBackend) Delete() error {
	if err := keyring.Delete(b.service, b.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
