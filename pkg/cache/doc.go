// Package cache implements response caching for idempotent LeakIX API
// calls.
//
// Keys are derived from the endpoint and the request parameters serialized
// with sorted keys, hashed with SHA-256, so two logically identical
// parameter sets always address the same entry regardless of construction
// order.
//
// Two backends implement the Store contract: FileStore persists entries to
// a single JSON file and degrades to an empty in-memory cache on any I/O
// or decode failure (caching problems must never be fatal to a query), and
// RedisStore keeps entries in Redis with native TTL expiry for deployments
// that share a cache between hosts.
package cache
