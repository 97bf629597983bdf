package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 2*time.Second, cfg.Polling.RefreshDelay)
	assert.Equal(t, 50, cfg.Polling.ListLimit)
	assert.Equal(t, 0, cfg.Polling.MaxRetries)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "database", cfg.Credential.Backend)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  base_url: "https://devpulse.example.com/api/v1"
  timeout: 5s
polling:
  interval: 1500ms
  max_retries: 2
redis:
  enabled: true
  host: "redis.local"
  port: 6380
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://devpulse.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Polling.Interval)
	assert.Equal(t, 2, cfg.Polling.MaxRetries)
	// 未配置的字段保留默认值
	assert.Equal(t, 2*time.Second, cfg.Polling.RefreshDelay)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.local:6380", cfg.Redis.Addr())
}

func TestLoad_PrefersLocalConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api:\n  base_url: \"http://public\"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yaml"), []byte("api:\n  base_url: \"http://local\"\n"), 0644))

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://local", cfg.API.BaseURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEVPULSE_API_BASE_URL", "http://from-env/api/v1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://from-env/api/v1", cfg.API.BaseURL)
}
