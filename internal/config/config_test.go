package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "stockbackup.db", cfg.Database.Path)
	assert.Equal(t, "v2", cfg.Workflow.Blueprint)
	assert.False(t, cfg.Workflow.EnforcePermissions)
	assert.True(t, cfg.Workflow.LazyProvisioning)
	assert.Equal(t, "stockbackup", cfg.Telemetry.ServiceName)
	assert.Equal(t, "stdout", cfg.Telemetry.Exporter)
	assert.InDelta(t, 1.0, cfg.Telemetry.SampleRatio, 1e-9)
	assert.Equal(t, time.Minute, cfg.Telemetry.MetricInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Queue.Enabled)
	assert.Equal(t, 2, cfg.Queue.MaxWorkers)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
database:
  path: /var/lib/stockbackup/data.db
workflow:
  blueprint: v1
  enforce_permissions: true
log:
  level: debug
  format: console
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/var/lib/stockbackup/data.db", cfg.Database.Path)
	assert.Equal(t, "v1", cfg.Workflow.Blueprint)
	assert.True(t, cfg.Workflow.EnforcePermissions)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, "stockbackup", cfg.Telemetry.ServiceName)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("STOCKBACKUP_SERVER_PORT", "7070")
	t.Setenv("STOCKBACKUP_TELEMETRY_EXPORTER", "none")
	t.Setenv("STOCKBACKUP_QUEUE_ENABLED", "false")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
	assert.False(t, cfg.Queue.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
workflow:
  blueprint: v9
log:
  level: loud
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `workflow.blueprint "v9" unknown`)
	assert.Contains(t, err.Error(), `log.level "loud"`)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"port zero", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"empty database path", func(c *config.Config) { c.Database.Path = "" }, "database.path"},
		{"unknown exporter", func(c *config.Config) { c.Telemetry.Exporter = "zipkin" }, "telemetry.exporter"},
		{"sample ratio above one", func(c *config.Config) { c.Telemetry.SampleRatio = 1.5 }, "telemetry.sample_ratio"},
		{"unknown log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"queue without workers", func(c *config.Config) { c.Queue.MaxWorkers = 0 }, "queue.max_workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("queue disabled needs no workers", func(t *testing.T) {
		cfg := valid()
		cfg.Queue.Enabled = false
		cfg.Queue.MaxWorkers = 0
		assert.NoError(t, cfg.Validate())
	})
}
