package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		envValue string
		want     string
	}{
		{"flag takes precedence", "/path/from/flag", "/path/from/env", "/path/from/flag"},
		{"env when no flag", "", "/path/from/env", "/path/from/env"},
		{"empty when neither", "", "", ""},
		{"whitespace flag", "  ", "/path/from/env", "/path/from/env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RINGNODE_CONFIG", tt.envValue)
			got := ResolveConfigPath(tt.flag)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "500ms", cfg.Timing.Poll)
	assert.Equal(t, "5s", cfg.Timing.KeepAliveInterval)
	assert.Equal(t, "3s", cfg.Timing.BootstrapTimeout)
	assert.Equal(t, 5, cfg.Timing.BootstrapRetries)
	assert.Equal(t, 1024, cfg.BufferSize)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestLoadEachCallGetsAFreshInstanceID(t *testing.T) {
	a, err := Load("")
	require.NoError(t, err)
	b, err := Load("")
	require.NoError(t, err)
	assert.NotEqual(t, a.InstanceID, b.InstanceID)
}

func TestLoadFromFile(t *testing.T) {
	content := `
tracker:
  host: "tracker.example.com"
  port: 9000

timing:
  poll: "250ms"
  keep_alive_interval: "10s"

logging:
  level: "DEBUG"
  structured: true
  structured_format: "text"

buffer_size: 2048
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tracker.example.com", cfg.Tracker.Host)
	assert.Equal(t, 9000, cfg.Tracker.Port)
	assert.Equal(t, "250ms", cfg.Timing.Poll)
	assert.Equal(t, "10s", cfg.Timing.KeepAliveInterval)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Structured)
	assert.Equal(t, "text", cfg.Logging.StructuredFormat)
	assert.Equal(t, 2048, cfg.BufferSize)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  port: [invalid"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidBufferSize(t *testing.T) {
	content := "buffer_size: 0\n"
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidDuration(t *testing.T) {
	content := "timing:\n  poll: \"not-a-duration\"\n"
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
