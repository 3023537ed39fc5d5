// Package config loads the TOML configuration of the rarity service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// appDirName is the per-user directory holding config, database and backups.
const appDirName = ".nft-rarity"

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Metadata MetadataConfig `toml:"metadata"`
	Watcher  WatcherConfig  `toml:"watcher"`
	App      AppConfig      `toml:"app"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"` // CORS origins
	RequestTimeout string   `toml:"request_timeout"` // e.g. "30s"
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path        string `toml:"path"`
	AutoMigrate bool   `toml:"auto_migrate"`
	BackupDir   string `toml:"backup_dir"` // empty = "backups" beside the database

	// BackupInterval enables scheduled backups in the daemon, e.g. "24h".
	// Empty disables them.
	BackupInterval string `toml:"backup_interval"`
	BackupKeep     int    `toml:"backup_keep"` // newest backups kept after a scheduled run, 0 = all
}

// MetadataConfig contains settings for fetching token metadata.
type MetadataConfig struct {
	BaseURL    string `toml:"base_url"`   // default metadata endpoint, optional
	RateLimit  string `toml:"rate_limit"` // minimum gap between requests, e.g. "100ms"
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
	Workers    int    `toml:"workers"`
	UserAgent  string `toml:"user_agent"`
}

// WatcherConfig contains drop-directory import settings.
type WatcherConfig struct {
	Enabled      bool   `toml:"enabled"`
	Dir          string `toml:"dir"`
	PollInterval string `toml:"poll_interval"`
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dir := appDir()
	return &Config{
		Server: ServerConfig{
			Port:           8090,
			AllowedOrigins: []string{"http://localhost:3000"},
			RequestTimeout: "30s",
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dir, "rarity.db"),
			AutoMigrate: true,
		},
		Metadata: MetadataConfig{
			RateLimit:  "100ms",
			Timeout:    "30s",
			MaxRetries: 3,
			Workers:    8,
			UserAgent:  "nft-rarity/1.0",
		},
		Watcher: WatcherConfig{
			Enabled:      false,
			Dir:          filepath.Join(dir, "imports"),
			PollInterval: "30s",
		},
	}
}

func appDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appDirName
	}
	return filepath.Join(home, appDirName)
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(appDir(), "config.toml")
}

// Load loads the configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads the configuration at path. A missing file yields the
// defaults; keys absent from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the configuration to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Metadata.MaxRetries < 0 {
		return fmt.Errorf("metadata max retries cannot be negative: %d", c.Metadata.MaxRetries)
	}
	if c.Metadata.Workers < 1 {
		return fmt.Errorf("metadata workers must be at least 1, got %d", c.Metadata.Workers)
	}
	if c.Watcher.Enabled && c.Watcher.Dir == "" {
		return fmt.Errorf("watcher directory is required when the watcher is enabled")
	}

	durations := []struct {
		name, value string
	}{
		{"server request timeout", c.Server.RequestTimeout},
		{"metadata rate limit", c.Metadata.RateLimit},
		{"metadata timeout", c.Metadata.Timeout},
		{"watcher poll interval", c.Watcher.PollInterval},
	}
	if c.Database.BackupInterval != "" {
		durations = append(durations, struct{ name, value string }{"backup interval", c.Database.BackupInterval})
	}
	if c.Database.BackupKeep < 0 {
		return fmt.Errorf("backup keep cannot be negative: %d", c.Database.BackupKeep)
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		if v < 0 {
			return fmt.Errorf("%s cannot be negative: %s", d.name, d.value)
		}
	}
	return nil
}

// RequestTimeout returns the server request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return mustDuration(c.Server.RequestTimeout)
}

// MetadataRateInterval returns the minimum gap between metadata requests.
func (c *Config) MetadataRateInterval() time.Duration {
	return mustDuration(c.Metadata.RateLimit)
}

// MetadataTimeout returns the per-request metadata timeout.
func (c *Config) MetadataTimeout() time.Duration {
	return mustDuration(c.Metadata.Timeout)
}

// WatcherPollInterval returns the watcher's polling interval.
func (c *Config) WatcherPollInterval() time.Duration {
	return mustDuration(c.Watcher.PollInterval)
}

// BackupInterval returns the scheduled backup interval, or 0 when scheduled
// backups are disabled.
func (c *Config) BackupInterval() time.Duration {
	if c.Database.BackupInterval == "" {
		return 0
	}
	return mustDuration(c.Database.BackupInterval)
}

// mustDuration parses a duration already checked by Validate. Invalid values
// yield 0 so callers fall back to their own defaults.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
