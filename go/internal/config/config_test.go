package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 300*time.Millisecond, cfg.Claims.PollInterval)
	assert.Equal(t, 4500*time.Millisecond, cfg.Environment.ProbeInterval)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "scoutctl.yaml", `
backend:
  url: http://scouting.local:8000
  ping_timeout: 2s
claims:
  poll_interval: 500ms
environment:
  hints:
    online: true
    type: wifi
    downlink_mbps: 12.5
log_level: debug
nats:
  url: nats://bus.local:4222
  stream_name: SCOUTING
`)

	cfg, err := Load(path, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "http://scouting.local:8000", cfg.Backend.URL)
	assert.Equal(t, 2*time.Second, cfg.Backend.PingTimeout)
	assert.Equal(t, 30*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Claims.PollInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Claims.Debounce)
	assert.Equal(t, "nats://bus.local:4222", cfg.NATS.URL)
	assert.Equal(t, "SCOUTING", cfg.NATS.StreamName)
	assert.Equal(t, "scouting", cfg.NATS.SubjectPrefix)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	require.NotNil(t, cfg.Environment.Hints)
	assert.Equal(t, "wifi", cfg.Environment.Hints.Type)
	require.NotNil(t, cfg.Environment.Hints.DownlinkMbps)
	assert.Equal(t, 12.5, *cfg.Environment.Hints.DownlinkMbps)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "scoutctl.yaml", "backend:\n  url: http://from-file:8000\n")
	t.Setenv("SCOUT_BACKEND_URL", "http://from-env:8000")
	t.Setenv("SCOUT_DATA_DIR", "/var/lib/scoutsync")
	t.Setenv("SCOUT_MONITOR_ADDR", ":9999")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8000", cfg.Backend.URL)
	assert.Equal(t, "/var/lib/scoutsync", cfg.DataDir)
	assert.Equal(t, ":9999", cfg.Monitor.Addr)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("SCOUT_LOG_LEVEL", "")
	os.Unsetenv("SCOUT_LOG_LEVEL")
	envFile := writeFile(t, ".env", "SCOUT_LOG_LEVEL=warn\n")
	t.Cleanup(func() { os.Unsetenv("SCOUT_LOG_LEVEL") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)

	assert.Equal(t, zerolog.WarnLevel, cfg.Level())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "backend: [url"},
		{name: "bad log level", content: "log_level: loud\n"},
		{name: "zero poll interval", content: "claims:\n  poll_interval: 0s\n"},
		{name: "empty backend url", content: "backend:\n  url: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "scoutctl.yaml", tt.content)
			_, err := Load(path, filepath.Join(t.TempDir(), "absent.env"))
			assert.Error(t, err)
		})
	}
}
