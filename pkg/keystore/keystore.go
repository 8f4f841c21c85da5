// Package keystore stores the LeakIX API key.
//
// Storage is a ranked list of backends tried in order: the OS keychain
// first, a restricted file second. The first backend that succeeds wins.
// The fallback is an explicit strategy, not a silent workaround; which
// backend held the key is always observable via logging.
package keystore

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leakix-tools/leakix-go/pkg/logging"
)

// KeyLength is the exact length of a valid LeakIX API key. Format check
// only; no cryptographic validation happens client side.
const KeyLength = 48

// ErrNotFound indicates no backend holds a stored API key.
var ErrNotFound = errors.New("no stored API key")

// Backend is one secret-storage strategy.
type Backend interface {
	// Name identifies the backend in diagnostics.
	Name() string

	// Load returns the stored key, or ErrNotFound.
	Load() (string, error)

	// Store persists the key.
	Store(key string) error

	// Delete removes the stored key. Deleting an absent key is not an
	// error.
	Delete() error
}

// IsValid reports whether a key has plausible API-key shape.
func IsValid(key string) bool {
	return len(strings.TrimSpace(key)) == KeyLength
}

// Manager tries a ranked list of backends in order.
type Manager struct {
	backends []Backend
	logger   zerolog.Logger
}

// NewManager creates a manager over the given backends, ranked first to
// last.
func NewManager(backends ...Backend) *Manager {
	return &Manager{
		backends: backends,
		logger:   logging.NewLogger("keystore"),
	}
}

// DefaultManager ranks the OS keychain above a restricted file under the
// config directory.
func DefaultManager(configDir string) *Manager {
	return NewManager(
		NewKeyringBackend(),
		NewFileBackend(configDir),
	)
}

// Load returns the first key any backend holds.
func (m *Manager) Load() (string, error) {
	for _, backend := range m.backends {
		key, err := backend.Load()
		if err == nil && key != "" {
			return strings.TrimSpace(key), nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Debug().Err(err).Str("backend", backend.Name()).Msg("Keystore backend unavailable")
		}
	}
	return "", ErrNotFound
}

// Store persists the key in the highest-ranked backend that accepts it
// and removes stale copies from the backends below, so a later Load
// cannot resurrect an old key from a lower rank.
func (m *Manager) Store(key string) error {
	var lastErr error
	for i, backend := range m.backends {
		if err := backend.Store(key); err != nil {
			m.logger.Debug().Err(err).Str("backend", backend.Name()).Msg("Keystore backend rejected store")
			lastErr = err
			continue
		}
		m.logger.Debug().Str("backend", backend.Name()).Msg("API key stored")
		for _, lower := range m.backends[i+1:] {
			_ = lower.Delete()
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("no keystore backend configured")
}

// Delete removes the key from every backend.
func (m *Manager) Delete() error {
	var lastErr error
	for _, backend := range m.backends {
		if err := backend.Delete(); err != nil && !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	return lastErr
}
