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
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "auto", cfg.Engine.DefaultProfile)
	assert.Equal(t, 5*time.Minute, cfg.Engine.AttemptTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xstaged.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
engine:
  workers: 8
  default_profile: karma
cache:
  enabled: true
  addr: redis:6379
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, "karma", cfg.Engine.DefaultProfile)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 64, cfg.Engine.QueueSize)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/xstaged.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xstaged.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  workers: 8\n"), 0o644))

	t.Setenv("XSTAGE_ENGINE_WORKERS", "16")
	t.Setenv("XSTAGE_ENGINE_ATTEMPT_TIMEOUT", "90s")
	t.Setenv("XSTAGE_LOG_OUTPUT_PATHS", "stdout, /var/log/xstaged.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Engine.Workers)
	assert.Equal(t, 90*time.Second, cfg.Engine.AttemptTimeout)
	assert.Equal(t, []string{"stdout", "/var/log/xstaged.log"}, cfg.Log.OutputPaths)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("XSTAGE_ENGINE_DEFAULT_PROFILE", "renderman")

	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadRejectsOutOfRangePort(t *testing.T) {
	t.Setenv("XSTAGE_SERVER_HTTP_PORT", "70000")

	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "validation failed")
}

func TestCustomValidator(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		if c.Engine.Workers < 100 {
			return assert.AnError
		}
		return nil
	}).Load()
	assert.ErrorContains(t, err, "validation failed")
}
