package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss indicates the requested key was not found in the cache, or the
// entry had expired.
var ErrMiss = errors.New("cache miss")

// Store is the caching contract consumed by the transport and the
// pagination engine. Implementations own their entries exclusively;
// callers never retain them.
type Store interface {
	// Get returns the cached payload for a key, or ErrMiss if absent or
	// expired. An expired entry is purged as a side effect.
	Get(ctx context.Context, key Key) (json.RawMessage, error)

	// Set stores a payload with the given TTL. A non-positive ttl selects
	// the store's default. Empty payloads are silently dropped.
	Set(ctx context.Context, key Key, data json.RawMessage, ttl time.Duration) error

	// Invalidate removes one entry if present.
	Invalidate(ctx context.Context, key Key) error

	// Clear removes all entries and best-effort deletes backing storage.
	Clear(ctx context.Context) error
}
