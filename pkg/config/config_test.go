package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakix-tools/leakix-go/pkg/cache"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://leakix.net", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1200*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.RedisAddr)
	assert.NotEmpty(t, cfg.ConfigDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEAKIX_BASE_URL", "https://leakix.example.com/")
	t.Setenv("LEAKIX_CACHE_TTL", "10m")
	t.Setenv("LEAKIX_PAGE_DELAY", "-1ms")
	t.Setenv("LEAKIX_LOG_LEVEL", "debug")
	t.Setenv("LEAKIX_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://leakix.example.com", cfg.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, -1*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"bad log level", "LEAKIX_LOG_LEVEL", "trace"},
		{"bad base url", "LEAKIX_BASE_URL", "not a url"},
		{"short api key", "LEAKIX_API_KEY", "too-short"},
		{"bad redis addr", "LEAKIX_REDIS_ADDR", "nohost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDefaultError(t *testing.T) {
	orig := defaultLoader
	t.Cleanup(func() { defaultLoader = orig })
	defaultLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, assert.AnError))
}

func TestLoadEnvError(t *testing.T) {
	orig := envLoader
	t.Cleanup(func() { envLoader = orig })
	envLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, assert.AnError))
}

func TestRegisterValidatorsError(t *testing.T) {
	orig := registerValidators
	t.Cleanup(func() { registerValidators = orig })
	registerValidators = func(v *validator.Validate) error {
		assert.NotNil(t, v)
		return assert.AnError
	}
	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, assert.AnError))
}

func TestCacheTTLRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	ttl, err := CacheTTLFor(dir, cache.DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultTTL, ttl, "missing file falls back to default")

	require.NoError(t, SetCacheTTL(dir, 42*time.Minute))

	ttl, err = CacheTTLFor(dir, cache.DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, 42*time.Minute, ttl)
}

func TestSetCacheTTLRoundsDown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SetCacheTTL(dir, 90*time.Second))

	ttl, err := CacheTTLFor(dir, cache.DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
}

func TestSetCacheTTLRejectsNonPositive(t *testing.T) {
	assert.Error(t, SetCacheTTL(t.TempDir(), 0))
	assert.Error(t, SetCacheTTL(t.TempDir(), -time.Minute))
}

func TestCacheTTLForCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFileName), []byte("{not json"), 0o600))

	_, err := CacheTTLFor(dir, cache.DefaultTTL)
	assert.Error(t, err)
}
