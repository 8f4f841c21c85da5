package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leakix-tools/leakix-go/pkg/logging"
)

// CacheFileName is the backing file name under the config directory.
const CacheFileName = "api_cache.json"

// FileStore is a file-backed Store. The whole cache is one JSON object
// mapping hex digests to entries. Writes overwrite the whole file
// (last-write-wins between concurrent processes); a corrupt or unreadable
// file degrades to an empty in-memory cache.
type FileStore struct {
	path       string
	defaultTTL time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	entries map[string]Entry
}

// NewFileStore creates a file-backed store at path. A non-positive
// defaultTTL falls back to DefaultTTL.
func NewFileStore(path string, defaultTTL time.Duration) *FileStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	s := &FileStore{
		path:       path,
		defaultTTL: defaultTTL,
		logger:     logging.NewLogger("cache"),
		entries:    map[string]Entry{},
	}
	s.load()
	return s
}

// DefaultTTL returns the store's fallback TTL.
func (s *FileStore) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the cached payload for key, or ErrMiss. Expired entries are
// purged on read; there is no proactive sweep.
func (s *FileStore) Get(_ context.Context, key Key) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := key.Digest()
	entry, ok := s.entries[digest]
	if !ok {
		cacheMisses.WithLabelValues("file").Inc()
		return nil, ErrMiss
	}

	if !entry.Valid(time.Now()) {
		delete(s.entries, digest)
		s.save()
		cacheMisses.WithLabelValues("file").Inc()
		return nil, ErrMiss
	}

	cacheHits.WithLabelValues("file").Inc()
	return entry.Data, nil
}

// Set stores a payload. Empty payloads are dropped so that negative
// results never shadow a later real response.
func (s *FileStore) Set(_ context.Context, key Key, data json.RawMessage, ttl time.Duration) error {
	if emptyPayload(data) {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key.Digest()] = Entry{
		StoredAt:   time.Now().Unix(),
		TTLSeconds: int64(ttl / time.Second),
		Data:       data,
	}
	s.save()
	return nil
}

// Invalidate removes one entry if present.
func (s *FileStore) Invalidate(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := key.Digest()
	if _, ok := s.entries[digest]; !ok {
		return nil
	}
	delete(s.entries, digest)
	s.save()
	return nil
}

// Clear drops all entries and deletes the backing file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = map[string]Entry{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to delete cache file")
	}
	return nil
}

// Len returns the number of entries currently held, valid or not.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// load reads the backing file. Any failure leaves the store empty.
func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Cache file unreadable, starting empty")
			cacheErrors.WithLabelValues("load").Inc()
		}
		return
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Cache file corrupt, starting empty")
		cacheErrors.WithLabelValues("load").Inc()
		return
	}
	s.entries = entries
}

// save writes the whole cache back to disk. Failures are logged, never
// surfaced: losing the cache only costs performance.
func (s *FileStore) save() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to create cache directory")
		cacheErrors.WithLabelValues("save").Inc()
		return
	}

	data, err := json.Marshal(s.entries)
	if err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to write cache file")
		cacheErrors.WithLabelValues("save").Inc()
	}
}
