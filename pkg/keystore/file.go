package keystore

import (
	"os"
	"path/filepath"
	"strings"
)

// KeyFileName is the API key file under the config directory.
const KeyFileName = "api_key.txt"

// FileBackend stores the API key in a file with owner-only permissions.
// The fallback for hosts without a usable keychain.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend under configDir.
func NewFileBackend(configDir string) *FileBackend {
	return &FileBackend{path: filepath.Join(configDir, KeyFileName)}
}

// Name implements Backend.
func (b *FileBackend) Name() string { return "file" }

// Load implements Backend.
func (b *FileBackend) Load() (string, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// Store implements Backend.
func (b *FileBackend) Store(key string) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(b.path, []byte(key), 0o600)
}

// Delete implements Backend.
func (b *FileBackend) Delete() error {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
