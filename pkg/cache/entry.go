package cache

import (
	"encoding/json"
	"time"
)

// DefaultTTL is the fallback validity window for cached responses.
const DefaultTTL = 5 * time.Minute

// Entry represents one cached API response.
type Entry struct {
	// StoredAt is when the response was cached, as a Unix timestamp.
	StoredAt int64 `json:"timestamp"`

	// TTLSeconds is the entry validity window in seconds.
	TTLSeconds int64 `json:"ttl"`

	// Data is the raw response payload.
	Data json.RawMessage `json:"data"`
}

// Valid reports whether the entry is still within its TTL at the given
// time.
func (e Entry) Valid(now time.Time) bool {
	return now.Unix()-e.StoredAt <= e.TTLSeconds
}

// emptyPayload reports whether a payload carries no cacheable data.
// Negative results must not poison the cache.
func emptyPayload(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
