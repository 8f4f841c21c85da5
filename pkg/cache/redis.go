package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces leakix-go entries in a shared Redis.
const redisKeyPrefix = "leakix:cache:"

// RedisStore is a Redis-backed Store for deployments where several hosts
// share a response cache. Expiry is delegated to Redis key TTLs, so Get
// never sees a stale entry and no purge-on-read is needed.
type RedisStore struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisStore creates a Redis-backed store. A non-positive defaultTTL
// falls back to DefaultTTL.
func NewRedisStore(client *redis.Client, defaultTTL time.Duration) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RedisStore{client: client, defaultTTL: defaultTTL}
}

// Get returns the cached payload for key, or ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key.Digest()).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.WithLabelValues("redis").Inc()
			return nil, ErrMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	cacheHits.WithLabelValues("redis").Inc()
	return json.RawMessage(data), nil
}

// Set stores a payload with the given TTL. Empty payloads are dropped.
func (s *RedisStore) Set(ctx context.Context, key Key, data json.RawMessage, ttl time.Duration) error {
	if emptyPayload(data) {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	if err := s.client.Set(ctx, redisKeyPrefix+key.Digest(), []byte(data), ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate removes one entry if present.
func (s *RedisStore) Invalidate(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key.Digest()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes all leakix-go entries. Other keys in the same Redis are
// left alone.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			cacheErrors.WithLabelValues("clear").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}
