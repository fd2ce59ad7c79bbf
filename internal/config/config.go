package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Store drivers accepted in STORE_DRIVER
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverPebble   = "pebble"
)

type Config struct {
	Port        string
	Environment string
	// Storage
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	PebblePath  string
	TablePrefix string
	// HTTP boundary
	CORSOrigins    string
	JWKSURL        string // Empty disables bearer tokens
	APIKeys        string // key:client-uuid[:trusted], comma separated
	RateLimitRPS   float64
	RateLimitBurst int
	// Engine
	DeleteCascade    string
	PathSafetyMargin int
	// Logging
	LogLevel    string
	LogDir      string // Empty logs to stdout only
	LogMaxFiles int
}

// Load reads configuration from the environment and, when CONFIG_FILE is set, from that file.
// Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("environment", "dev")
	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "msgtree.db")
	v.SetDefault("pebble_path", "msgtree-pebble")
	v.SetDefault("table_prefix", "")
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("jwks_url", "")
	v.SetDefault("api_keys", "")
	v.SetDefault("rate_limit_rps", 20.0)
	v.SetDefault("rate_limit_burst", 40)
	v.SetDefault("delete_cascade", "none")
	v.SetDefault("path_safety_margin", DefaultPathSafetyMargin)
	v.SetDefault("log_level", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("log_max_files", 5)

	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	env := v.GetString("environment")
	cfg := &Config{
		Port:             v.GetString("port"),
		Environment:      env,
		StoreDriver:      strings.ToLower(v.GetString("store_driver")),
		DatabaseURL:      v.GetString("database_url"),
		SQLitePath:       v.GetString("sqlite_path"),
		PebblePath:       v.GetString("pebble_path"),
		TablePrefix:      getTablePrefix(env, v.GetString("table_prefix")),
		CORSOrigins:      v.GetString("cors_origins"),
		JWKSURL:          v.GetString("jwks_url"),
		APIKeys:          v.GetString("api_keys"),
		RateLimitRPS:     v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:   v.GetInt("rate_limit_burst"),
		DeleteCascade:    v.GetString("delete_cascade"),
		PathSafetyMargin: v.GetInt("path_safety_margin"),
		LogLevel:         v.GetString("log_level"),
		LogDir:           v.GetString("log_dir"),
		LogMaxFiles:      v.GetInt("log_max_files"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite, DriverPebble:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or pebble)", c.StoreDriver)
	}
	if c.PathSafetyMargin < 1 {
		return fmt.Errorf("PATH_SAFETY_MARGIN must be positive, got %d", c.PathSafetyMargin)
	}
	return nil
}

// SlogLevel returns the configured log level; debug in dev unless overridden
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if c.Environment == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env, override string) string {
	// Allow manual override via TABLE_PREFIX
	if override != "" {
		return override
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}
