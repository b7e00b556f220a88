// ABOUTME: Application configuration loaded from defaults, a JSON file, .env, and the environment
// ABOUTME: Resolves XDG paths for the config file and the local page cache
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// AppName names the XDG directories and the environment prefix.
	AppName = "salesdesk"

	// ConfigFileName is where we store local config.
	ConfigFileName = "config.json"

	EnvPrefix = "SALESDESK"
)

// Cache backends.
const (
	CacheSQLite = "sqlite"
	CacheBadger = "badger"
	CacheNone   = "none"
)

type Config struct {
	API      APIConfig   `json:"api"`
	Scope    ScopeConfig `json:"scope"`
	Cache    CacheConfig `json:"cache"`
	Log      LogConfig   `json:"log"`
	PageSize int         `json:"page_size" split_words:"true" validate:"gte=1,lte=500"`
}

type APIConfig struct {
	BaseURL    string        `json:"base_url" split_words:"true" validate:"required,url"`
	Timeout    time.Duration `json:"timeout" split_words:"true" validate:"gte=0"`
	MaxRetries int           `json:"max_retries" split_words:"true" validate:"gte=0,lte=10"`
}

// ScopeConfig holds the default tenant used when a command does not name one.
type ScopeConfig struct {
	CompanyID string `json:"company_id,omitempty" split_words:"true"`
	LeadID    string `json:"lead_id,omitempty" split_words:"true"`
}

type CacheConfig struct {
	Backend string `json:"backend" split_words:"true" validate:"oneof=sqlite badger none"`
	// Path overrides the default location under $XDG_CACHE_HOME.
	Path string `json:"path,omitempty" split_words:"true"`
}

type LogConfig struct {
	Level       string `json:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Development bool   `json:"development" split_words:"true"`
}

// DefaultConfig returns a new config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8080/api",
			Timeout:    15 * time.Second,
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			Backend: CacheSQLite,
		},
		Log: LogConfig{
			Level: "info",
		},
		PageSize: 20,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/salesdesk/config.json.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, ConfigFileName)
}

// Load reads the config at DefaultPath, then applies .env and environment
// overrides.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom is Load with an explicit file path. A missing file is not an
// error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config as JSON to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// CachePath returns where the configured cache backend keeps its data: a
// file for sqlite, a directory for badger.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	switch c.Cache.Backend {
	case CacheBadger:
		return filepath.Join(xdg.CacheHome, AppName, "badger")
	default:
		return filepath.Join(xdg.CacheHome, AppName, "cache.db")
	}
}
