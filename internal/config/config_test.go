package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, time.Minute, cfg.Sync.QueueInterval)
	assert.Equal(t, 1000, cfg.Sync.QueueMaxSize)
	assert.Equal(t, 3, cfg.Sync.QueueRetries)
	assert.Empty(t, cfg.Remote.BaseURL)
	assert.Empty(t, cfg.Remote.WSURL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
data_dir: /var/lib/chronicle
log_level: debug
remote:
  base_url: https://store.example.com
  access_key: AKTEST
  secret_key: shhh
  ws_url: wss://store.example.com/changes
sync:
  interval: 5m
  queue_interval: 30s
  queue_max_size: 200
  queue_max_retries: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/chronicle", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://store.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "AKTEST", cfg.Remote.AccessKey)
	assert.Equal(t, "shhh", cfg.Remote.SecretKey)
	assert.Equal(t, "wss://store.example.com/changes", cfg.Remote.WSURL)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Sync.QueueInterval)
	assert.Equal(t, 200, cfg.Sync.QueueMaxSize)
	assert.Equal(t, 5, cfg.Sync.QueueRetries)
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	dir := t.TempDir()
	yaml := "sync:\n  interval: 0s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.interval")
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
