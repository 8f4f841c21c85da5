// Package client is the high-level facade over the LeakIX transport, cache
// and search engines. It owns credential resolution, plugin validation and
// the cached lookup endpoints.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/leakix-tools/leakix-go/pkg/cache"
	"github.com/leakix-tools/leakix-go/pkg/config"
	"github.com/leakix-tools/leakix-go/pkg/keystore"
	"github.com/leakix-tools/leakix-go/pkg/logging"
	"github.com/leakix-tools/leakix-go/pkg/record"
	"github.com/leakix-tools/leakix-go/pkg/search"
	"github.com/leakix-tools/leakix-go/pkg/transport"
)

// Endpoints served by the facade beyond search.
const (
	PluginsEndpoint    = "/api/plugins"
	HostEndpoint       = "/host"
	DomainEndpoint     = "/domain"
	SubdomainsEndpoint = "/api/subdomains"
)

// proProbePlugin is a pro-tier-only plugin; querying it with a free key
// yields an empty response body.
const proProbePlugin = "WpUserEnumHttp"

// UserAgent identifies this library to the upstream service.
const UserAgent = "leakix-go/1.0"

// Config holds the facade configuration. Zero values fall back to library
// defaults; APIKey falls back to the stored credential.
type Config struct {
	// BaseURL of the API. Defaults to the production origin.
	BaseURL string

	// APIKey overrides the keystore-resolved credential when set.
	APIKey string

	// ConfigDir holds the cache and key files. Defaults to the per-user
	// configuration directory.
	ConfigDir string

	// CacheTTL for stored responses. Defaults to cache.DefaultTTL.
	CacheTTL time.Duration

	// PageDelay between page fetches. Zero selects the default pause,
	// negative disables it.
	PageDelay time.Duration

	// Store overrides the cache backend. When nil, Redis selects a Redis
	// store and otherwise a file store under ConfigDir is used.
	Store cache.Store

	// Redis backs the cache with Redis when Store is nil.
	Redis *redis.Client
}

// Client is the facade over transport, cache, keystore and search.
type Client struct {
	transport *transport.Client
	store     cache.Store
	sequencer *search.Sequencer
	cfg       Config
	logger    zerolog.Logger
}

// New creates a client. The API key is taken from cfg, falling back to the
// keystore (OS keyring, then key file); a missing or malformed key is an
// error so callers never issue doomed requests.
func New(cfg Config) (*Client, error) {
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = config.DefaultDir()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	if cfg.APIKey == "" {
		key, err := keystore.DefaultManager(cfg.ConfigDir).Load()
		if err != nil {
			return nil, fmt.Errorf("resolve API key: %w", err)
		}
		cfg.APIKey = key
	}
	if !keystore.IsValid(cfg.APIKey) {
		return nil, ErrInvalidAPIKey
	}

	store := cfg.Store
	if store == nil {
		if cfg.Redis != nil {
			store = cache.NewRedisStore(cfg.Redis, cfg.CacheTTL)
		} else {
			store = cache.NewFileStore(filepath.Join(cfg.ConfigDir, cache.CacheFileName), cfg.CacheTTL)
		}
	}

	tr := transport.New(transport.Config{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		UserAgent: UserAgent,
	})

	return &Client{
		transport: tr,
		store:     store,
		sequencer: search.NewSequencer(tr, store, cfg.PageDelay),
		cfg:       cfg,
		logger:    logging.NewLogger("client"),
	}, nil
}

// NewFromConfig builds a client from the merged runtime configuration,
// wiring a Redis cache when an address is configured.
func NewFromConfig(cfg config.Config) (*Client, error) {
	ttl, err := config.CacheTTLFor(cfg.ConfigDir, cfg.CacheTTL)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	return New(Config{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		ConfigDir: cfg.ConfigDir,
		CacheTTL:  ttl,
		PageDelay: cfg.PageDelay,
		Redis:     rdb,
	})
}

// Search returns the lazy record sequence for q. Plugin names are validated
// eagerly against the live plugin list, so a typo fails here rather than
// after pages have been fetched.
func (c *Client) Search(ctx context.Context, q search.Query) (iter.Seq2[record.Record, error], error) {
	if len(q.Plugins) > 0 {
		if err := c.validatePlugins(ctx, q.Plugins); err != nil {
			return nil, err
		}
	}
	return c.sequencer.Results(ctx, q)
}

// Plugin describes one entry of the upstream plugin list.
type Plugin struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Access      string `json:"access,omitempty"`
}

// Plugins returns the available query plugins, cached like any other
// response.
func (c *Client) Plugins(ctx context.Context) ([]Plugin, error) {
	raw, err := c.cachedFetch(ctx, PluginsEndpoint, nil)
	if err != nil {
		return nil, err
	}

	var plugins []Plugin
	if err := json.Unmarshal(raw, &plugins); err != nil {
		return nil, fmt.Errorf("parse plugin list: %w", err)
	}

	out := plugins[:0]
	for _, p := range plugins {
		if p.Name != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// PluginNames returns just the plugin names.
func (c *Client) PluginNames(ctx context.Context) ([]string, error) {
	plugins, err := c.Plugins(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(plugins))
	for _, p := range plugins {
		names = append(names, p.Name)
	}
	return names, nil
}

func (c *Client) validatePlugins(ctx context.Context, requested []string) error {
	names, err := c.PluginNames(ctx)
	if err != nil {
		return fmt.Errorf("load plugin list: %w", err)
	}

	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}

	var unknown []string
	for _, p := range requested {
		if _, ok := known[p]; !ok {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		return &UnknownPluginError{Names: unknown, Known: names}
	}
	return nil
}

// Host returns the service and leak details for an IP address.
func (c *Client) Host(ctx context.Context, ip string) (record.Record, error) {
	return c.lookup(ctx, HostEndpoint+"/"+ip)
}

// Domain returns the service and leak details for a domain name.
func (c *Client) Domain(ctx context.Context, name string) (record.Record, error) {
	return c.lookup(ctx, DomainEndpoint+"/"+name)
}

func (c *Client) lookup(ctx context.Context, endpoint string) (record.Record, error) {
	raw, err := c.cachedFetch(ctx, endpoint, nil)
	if err != nil {
		return record.Record{}, err
	}
	return record.New(raw), nil
}

// Subdomains returns the known subdomains of a domain, one record per entry.
func (c *Client) Subdomains(ctx context.Context, name string) ([]record.Record, error) {
	raw, err := c.cachedFetch(ctx, SubdomainsEndpoint+"/"+name, nil)
	if err != nil {
		return nil, err
	}

	entries, err := transport.SplitRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("parse subdomain list: %w", err)
	}

	records := make([]record.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, record.New(e))
	}
	return records, nil
}

// CheckPro probes the account tier by searching a pro-only plugin. Free
// keys get an empty response; a populated page means pro access. The probe
// is never cached, it must reflect the key in use.
func (c *Client) CheckPro(ctx context.Context) (bool, error) {
	outcome := c.transport.Fetch(ctx, search.SearchEndpoint, map[string]string{
		"page":  "1",
		"q":     proProbePlugin,
		"scope": string(search.ScopeLeak),
	})

	switch outcome.Kind {
	case transport.KindPage, transport.KindPageLimit:
		return true, nil
	case transport.KindEndOfResults:
		return false, nil
	case transport.KindRateLimited:
		return false, &search.RateLimitError{RetryAfter: outcome.RetryAfter}
	default:
		return false, fmt.Errorf("pro probe failed: %w", outcome.Err)
	}
}

// ClearCache drops every cached response.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// InvalidateCache drops the cached response for one endpoint and parameter
// set.
func (c *Client) InvalidateCache(ctx context.Context, endpoint string, params map[string]string) error {
	return c.store.Invalidate(ctx, cache.Key{Endpoint: endpoint, Params: params})
}

// cachedFetch serves endpoint from the cache when fresh, fetching and
// caching otherwise. Lookup endpoints share the search engine's outcome
// classification.
func (c *Client) cachedFetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	key := cache.Key{Endpoint: endpoint, Params: params}

	if raw, err := c.store.Get(ctx, key); err == nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("Cache hit")
		return raw, nil
	}

	outcome := c.transport.Fetch(ctx, endpoint, params)
	switch outcome.Kind {
	case transport.KindPage:
		if err := c.store.Set(ctx, key, outcome.Raw, outcome.CacheTTL); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache store failed")
		}
		return outcome.Raw, nil
	case transport.KindEndOfResults:
		return nil, fmt.Errorf("%s: empty response", endpoint)
	case transport.KindRateLimited:
		return nil, &search.RateLimitError{RetryAfter: outcome.RetryAfter}
	case transport.KindMalformed:
		return nil, fmt.Errorf("%s: %w", endpoint, outcome.Err)
	default:
		return nil, fmt.Errorf("%s: %w", endpoint, outcome.Err)
	}
}
