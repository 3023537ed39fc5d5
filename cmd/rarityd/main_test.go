package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kardianos/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0o644))

	f, err := parseFlags([]string{"-config", path, "-db-path", filepath.Join(dir, "r.db"), "-watch-dir", filepath.Join(dir, "in")})
	require.NoError(t, err)

	cfg, err := loadConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "r.db"), cfg.Database.Path)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, filepath.Join(dir, "in"), cfg.Watcher.Dir)

	f.port = 9100
	cfg, err = loadConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 70000\n"), 0o644))

	_, err := loadConfig(&flags{configPath: path})
	assert.Error(t, err)
}

func TestNewDaemon_WiresComponents(t *testing.T) {
	dir := t.TempDir()
	f := &flags{configPath: filepath.Join(dir, "missing.toml"), dbPath: filepath.Join(dir, "rarity.db"), watchDir: filepath.Join(dir, "in")}
	cfg, err := loadConfig(f)
	require.NoError(t, err)

	d, err := newDaemon(cfg)
	require.NoError(t, err)
	assert.NotNil(t, d.watcher)
	assert.Nil(t, d.backups, "scheduled backups are off by default")
	assert.Equal(t, cfg.Server.Port, d.server.Port())
	d.stop()
}

func TestNewDaemon_BackupScheduler(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(&flags{configPath: filepath.Join(dir, "missing.toml"), dbPath: filepath.Join(dir, "rarity.db")})
	require.NoError(t, err)
	cfg.Database.BackupInterval = "6h"
	cfg.Database.BackupKeep = 3

	d, err := newDaemon(cfg)
	require.NoError(t, err)
	defer d.stop()

	require.NotNil(t, d.backups)
	assert.Equal(t, 6*time.Hour, d.backups.Status().Interval)
}

func TestServiceConfig(t *testing.T) {
	assert.Empty(t, serviceConfig("").Arguments)
	assert.Equal(t, []string{"-config", "/etc/rarity.toml"}, serviceConfig("/etc/rarity.toml").Arguments)
	assert.Equal(t, "running", statusText(service.StatusRunning))
	assert.Equal(t, "unknown", statusText(service.StatusUnknown))
}
