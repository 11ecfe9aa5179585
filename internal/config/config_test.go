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
	t.Setenv("KEYGATE_SERVICE_APP_ID", "test-app")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.keycrate.dev", cfg.Service.BaseURL)
	assert.Equal(t, "test-app", cfg.Service.AppID)
	assert.Equal(t, 30*time.Second, cfg.Service.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, float64(10), cfg.Limits.AttemptsPerMinute)
	assert.Equal(t, 3, cfg.Limits.Burst)
}

func TestLoadMissingAppID(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keygate.yaml")
	content := `
service:
  base_url: http://localhost:9090
  app_id: file-app
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9090", cfg.Service.BaseURL)
	assert.Equal(t, "file-app", cfg.Service.AppID)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  app_id: file-app\n"), 0o644))

	t.Setenv("KEYGATE_SERVICE_APP_ID", "env-app")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-app", cfg.Service.AppID)
}

func TestLoadMissingFileIgnored(t *testing.T) {
	t.Setenv("KEYGATE_SERVICE_APP_ID", "test-app")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test-app", cfg.Service.AppID)
}

func TestLoadInvalidLevel(t *testing.T) {
	t.Setenv("KEYGATE_SERVICE_APP_ID", "test-app")
	t.Setenv("KEYGATE_LOGGING_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
}
