package integration

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/leakix-tools/leakix-go/internal/testutil"
	"github.com/leakix-tools/leakix-go/pkg/cache"
	"github.com/leakix-tools/leakix-go/pkg/client"
	"github.com/leakix-tools/leakix-go/pkg/keystore"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start Redis container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisStoreRoundTrip(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	store := cache.NewRedisStore(rdb, time.Minute)
	key := cache.Key{Endpoint: "/search", Params: map[string]string{"page": "0", "q": "apache"}}
	payload := json.RawMessage(`[{"ip":"1.2.3.4","port":"80","protocol":"http"}]`)

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, store.Set(ctx, key, payload, 0))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))

	require.NoError(t, store.Invalidate(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestRedisStoreExpiry(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	store := cache.NewRedisStore(rdb, time.Minute)
	key := cache.Key{Endpoint: "/api/plugins"}

	require.NoError(t, store.Set(ctx, key, json.RawMessage(`[{"name":"X"}]`), time.Second))

	_, err := store.Get(ctx, key)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrMiss, "entry must expire via native Redis TTL")
}

func TestRedisStoreClear(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	// Foreign keys must survive a cache clear.
	require.NoError(t, rdb.Set(ctx, "unrelated", "keep", 0).Err())

	store := cache.NewRedisStore(rdb, time.Minute)
	for _, q := range []string{"a", "b", "c"} {
		key := cache.Key{Endpoint: "/search", Params: map[string]string{"q": q}}
		require.NoError(t, store.Set(ctx, key, json.RawMessage(`[{"ip":"1.1.1.1"}]`), 0))
	}

	require.NoError(t, store.Clear(ctx))

	_, err := store.Get(ctx, cache.Key{Endpoint: "/search", Params: map[string]string{"q": "a"}})
	assert.ErrorIs(t, err, cache.ErrMiss)
	assert.Equal(t, "keep", rdb.Get(ctx, "unrelated").Val())
}

// TestClientWithRedisCache runs the facade against the mock API with a
// Redis-backed cache: the second identical call must not touch the network.
func TestClientWithRedisCache(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockLeakIX()
	defer mock.Close()
	mock.SetPlugins("GitConfigHttpPlugin", "WpUserEnumHttp")

	c, err := client.New(client.Config{
		BaseURL:   mock.URL(),
		APIKey:    strings.Repeat("a", keystore.KeyLength),
		ConfigDir: t.TempDir(),
		Store:     cache.NewRedisStore(rdb, time.Minute),
	})
	require.NoError(t, err)

	names, err := c.PluginNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GitConfigHttpPlugin", "WpUserEnumHttp"}, names)

	_, err = c.PluginNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Requests(), "second call served from Redis")

	require.NoError(t, c.ClearCache(ctx))
	_, err = c.PluginNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Requests())
}
