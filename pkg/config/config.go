// Package config provides layered configuration loading for leakix-go.
// It merges Defaults -> Environment Variables, with validation, and manages
// the small settings file that persists the cache TTL across runs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/leakix-tools/leakix-go/pkg/cache"
	"github.com/leakix-tools/leakix-go/pkg/search"
	"github.com/leakix-tools/leakix-go/pkg/transport"
)

// envPrefix namespaces all environment overrides, e.g. LEAKIX_BASE_URL.
const envPrefix = "LEAKIX_"

// SettingsFileName is the per-user file that persists the cache TTL.
const SettingsFileName = "cache_config.json"

// Config holds the merged runtime configuration.
// Order of precedence (lowest → highest): Defaults → Environment.
type Config struct {
	// BaseURL is the API origin, without a trailing slash.
	BaseURL string `koanf:"base_url" validate:"required,url"`
	// APIKey overrides the stored credential when set.
	APIKey string `koanf:"api_key" validate:"omitempty,len=48"`
	// Timeout bounds non-streaming HTTP requests.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// CacheTTL is how long cached responses stay fresh.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	// PageDelay is the pause between consecutive page fetches.
	// A negative value disables the pause entirely.
	PageDelay time.Duration `koanf:"page_delay"`
	// ConfigDir holds the cache file, key file and settings file.
	ConfigDir string `koanf:"config_dir" validate:"required"`
	// LogLevel selects the zerolog level for all components.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error silent"`
	// RedisAddr switches the cache to Redis when non-empty.
	RedisAddr string `koanf:"redis_addr" validate:"omitempty,hostname_port"`
}

// Defaults returns a Config populated with the library defaults.
func Defaults() Config {
	return Config{
		BaseURL:   transport.DefaultBaseURL,
		Timeout:   transport.DefaultTimeout,
		CacheTTL:  cache.DefaultTTL,
		PageDelay: search.DefaultPageDelay,
		ConfigDir: DefaultDir(),
		LogLevel:  "info",
	}
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".leakix"
	}
	return filepath.Join(base, "leakix")
}

// Loader hooks are variables so tests can inject failures.
var (
	defaultLoader      = loadDefaults
	envLoader          = loadEnv
	registerValidators = func(v *validator.Validate) error { return nil }
)

// Load builds the effective configuration: defaults overlaid with
// LEAKIX_-prefixed environment variables, then validated.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidators(v); err != nil {
		return Config{}, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	return k.Load(structs.Provider(Defaults(), "koanf"), nil)
}

func loadEnv(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
}

// cacheSettings mirrors the on-disk settings file. TTL is stored in whole
// minutes to keep the file human-editable.
type cacheSettings struct {
	TTLMinutes int64 `json:"ttl_minutes"`
}

// CacheTTLFor reads the persisted cache TTL from dir. A missing settings
// file yields the fallback TTL; a corrupt one is an error so the caller
// can report it instead of silently resetting.
func CacheTTLFor(dir string, fallback time.Duration) (time.Duration, error) {
	raw, err := os.ReadFile(filepath.Join(dir, SettingsFileName))
	if errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache settings: %w", err)
	}
	var s cacheSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("parse cache settings: %w", err)
	}
	if s.TTLMinutes <= 0 {
		return fallback, nil
	}
	return time.Duration(s.TTLMinutes) * time.Minute, nil
}

// SetCacheTTL persists ttl (rounded down to whole minutes, minimum one)
// into dir's settings file, creating the directory if needed.
func SetCacheTTL(dir string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	minutes := int64(ttl / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw, err := json.Marshal(cacheSettings{TTLMinutes: minutes})
	if err != nil {
		return fmt.Errorf("encode cache settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SettingsFileName), raw, 0o600); err != nil {
		return fmt.Errorf("write cache settings: %w", err)
	}
	return nil
}
