// Package config provides configuration management for kaizen.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultPort      = 8745
	DefaultDBDriver  = "postgres"
	DefaultCacheMode = "file"
	DefaultJWTExpiry = 72 * time.Hour
)

// Config holds the full service configuration. Values come from the YAML
// settings file and may be overridden with environment variables.
type Config struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	DBDriver string `yaml:"db_driver"` // postgres or sqlite
	DBDSN    string `yaml:"db_dsn"`
	MaxConns int    `yaml:"max_conns"`

	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`

	// CacheMode selects the timer session cache backend:
	// "memory", "file" or "redis".
	CacheMode string `yaml:"cache_mode"`
	RedisAddr string `yaml:"redis_addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:      DefaultPort,
		LogLevel:  "info",
		DBDriver:  DefaultDBDriver,
		DBDSN:     "",
		MaxConns:  8,
		JWTSecret: "",
		JWTExpiry: DefaultJWTExpiry,
		CacheMode: DefaultCacheMode,
		RedisAddr: "localhost:6379",
	}
}

// DataDir returns the kaizen data directory (~/.kaizen).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".kaizen")
}

// SessionCacheDir returns the directory holding per-user timer session files.
func SessionCacheDir() string {
	return filepath.Join(DataDir(), "sessions")
}

// SettingsPath returns the YAML settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data and session cache directories.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(SessionCacheDir(), 0o700); err != nil {
		return fmt.Errorf("create session cache dir: %w", err)
	}
	return nil
}

// Load reads the settings file (if present) and applies environment
// overrides on top of defaults. A missing settings file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", SettingsPath(), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg.applyEnv()

	if cfg.DBDSN == "" && cfg.DBDriver == "sqlite" {
		cfg.DBDSN = filepath.Join(DataDir(), "kaizen.db")
	}
	return cfg, nil
}

// applyEnv overrides config fields from KAIZEN_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("KAIZEN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Port = p
		}
	}
	if v := os.Getenv("KAIZEN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("KAIZEN_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv("KAIZEN_DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := os.Getenv("KAIZEN_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("KAIZEN_JWT_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.JWTExpiry = d
		}
	}
	if v := os.Getenv("KAIZEN_CACHE_MODE"); v != "" {
		c.CacheMode = v
	}
	if v := os.Getenv("KAIZEN_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("unknown db_driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db_dsn is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	switch c.CacheMode {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown cache_mode %q", c.CacheMode)
	}
	return nil
}
