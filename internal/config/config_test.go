package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 100*time.Millisecond, cfg.MetadataRateInterval())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 30*time.Second, cfg.WatcherPollInterval())
}

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9000

[watcher]
enabled = true
dir = "/tmp/drop"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, "/tmp/drop", cfg.Watcher.Dir)
	assert.Equal(t, "30s", cfg.Server.RequestTimeout)
	assert.Equal(t, 8, cfg.Metadata.Workers)
}

func TestLoadFrom_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport = "), 0o644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Server.Port = 7000
	cfg.Metadata.BaseURL = "https://meta.example.com/{id}"
	cfg.App.DebugMode = true
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"negative retries", func(c *Config) { c.Metadata.MaxRetries = -1 }},
		{"no workers", func(c *Config) { c.Metadata.Workers = 0 }},
		{"bad rate limit", func(c *Config) { c.Metadata.RateLimit = "fast" }},
		{"bad timeout", func(c *Config) { c.Server.RequestTimeout = "" }},
		{"negative poll", func(c *Config) { c.Watcher.PollInterval = "-1s" }},
		{"watcher without dir", func(c *Config) { c.Watcher.Enabled = true; c.Watcher.Dir = "" }},
		{"bad backup interval", func(c *Config) { c.Database.BackupInterval = "daily" }},
		{"negative backup keep", func(c *Config) { c.Database.BackupKeep = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBackupInterval(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Duration(0), cfg.BackupInterval())

	cfg.Database.BackupInterval = "12h"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 12*time.Hour, cfg.BackupInterval())
}
