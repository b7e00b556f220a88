// ABOUTME: Tests for configuration loading and logger construction
// ABOUTME: Covers defaults, file overrides, environment overrides, and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api": {"base_url": "https://crm.example.com/api", "max_retries": 1},
		"scope": {"company_id": "from-file"},
		"cache": {"backend": "badger"}
	}`), 0600))

	t.Setenv("SALESDESK_SCOPE_COMPANY_ID", "from-env")
	t.Setenv("SALESDESK_API_TIMEOUT", "3s")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://crm.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 1, cfg.API.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "from-env", cfg.Scope.CompanyID)
	assert.Equal(t, CacheBadger, cfg.Cache.Backend)
	assert.Equal(t, 20, cfg.PageSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SALESDESK_CACHE_BACKEND", "redis")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Scope.CompanyID = "c42"
	cfg.PageSize = 50

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "c42", loaded.Scope.CompanyID)
	assert.Equal(t, 50, loaded.PageSize)
}

func TestCachePath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "cache.db", filepath.Base(cfg.CachePath()))

	cfg.Cache.Backend = CacheBadger
	assert.Equal(t, "badger", filepath.Base(cfg.CachePath()))

	cfg.Cache.Path = "/tmp/custom"
	assert.Equal(t, "/tmp/custom", cfg.CachePath())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
