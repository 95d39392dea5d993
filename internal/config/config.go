// Package config loads the quantassist service configuration from a YAML
// file with environment variable overrides.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the quantassist service.
type Config struct {
	Server    Server    `yaml:"server"`
	Providers Providers `yaml:"providers"`
	Cache     Cache     `yaml:"cache"`
	Storage   Storage   `yaml:"storage"`
	Refresh   Refresh   `yaml:"refresh"`
	Logging   Logging   `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Providers holds upstream market-data credentials. When no keys are set the
// service runs against the deterministic mock provider.
type Providers struct {
	MockMode        bool   `yaml:"mock_mode"`
	AlphaVantageKey string `yaml:"alphavantage_key"`
	TradierToken    string `yaml:"tradier_token"`
	AlpacaKey       string `yaml:"alpaca_key"`
	AlpacaSecret    string `yaml:"alpaca_secret"`
	AlpacaDataURL   string `yaml:"alpaca_data_url"`
}

// Cache controls the in-memory response cache.
type Cache struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Refresh configures the background snapshot recorder and the dashboard
// push scheduler.
type Refresh struct {
	SnapshotCron string `yaml:"snapshot_cron"` // robfig/cron spec
	PushEnabled  bool   `yaml:"push_enabled"`
	PushInterval int    `yaml:"push_interval_ms"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
// A missing file is not an error: the service can run entirely from env vars.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	if v := os.Getenv("MOCK_MODE"); v != "" {
		cfg.Providers.MockMode = v == "1" || v == "true"
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.Providers.AlphaVantageKey = v
	}
	if v := os.Getenv("TRADIER_TOKEN"); v != "" {
		cfg.Providers.TradierToken = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Providers.AlpacaDataURL = v
	}

	// Canonical Alpaca env vars used by the SDK take priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Providers.AlpacaKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Providers.AlpacaSecret = v
	}

	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLSeconds = n
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyDefaults fills unset fields with the values the service assumes.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 120
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Refresh.SnapshotCron == "" {
		cfg.Refresh.SnapshotCron = "@every 2m"
	}
	if cfg.Refresh.PushInterval == 0 {
		cfg.Refresh.PushInterval = 15000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// MockOnly reports whether the service should serve mock data: either the
// mock flag is set explicitly or no upstream credentials are configured.
func (c *Config) MockOnly() bool {
	if c.Providers.MockMode {
		return true
	}
	return c.Providers.AlphaVantageKey == "" &&
		c.Providers.AlpacaKey == "" &&
		c.Providers.TradierToken == ""
}
