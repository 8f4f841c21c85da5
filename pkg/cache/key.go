package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key identifies a cached API response by endpoint and request parameters.
type Key struct {
	// Endpoint is the API path, e.g. "/search" or "/api/plugins".
	Endpoint string

	// Params are the query parameters of the request. May be nil.
	Params map[string]string
}

// Digest returns the SHA-256 hex digest of the canonical key
// serialization. Parameter insertion order does not matter: the params map
// is serialized with sorted keys (encoding/json sorts map keys), so
// logically identical parameter sets hash identically.
func (k Key) Digest() string {
	params := k.Params
	if params == nil {
		params = map[string]string{}
	}

	// Marshal of map[string]string cannot fail.
	encoded, _ := json.Marshal(params)

	h := sha256.New()
	h.Write([]byte(k.Endpoint))
	h.Write([]byte{':'})
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil))
}
