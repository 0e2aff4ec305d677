package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rly/ndx-pose/internal/pose"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Log.File)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Equal(t, 3, cfg.Log.MaxBackups)
	assert.Equal(t, pose.StrictnessWarn, cfg.Policy.CountMismatch)
	assert.Equal(t, 5*time.Second, cfg.Store.BusyTimeout)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
  file: /tmp/ndx-pose.log
policy:
  count_mismatch: error
store:
  busy_timeout_ms: 250
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/ndx-pose.log", cfg.Log.File)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB, "unset keys keep defaults")
	assert.Equal(t, pose.StrictnessError, cfg.Policy.CountMismatch)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.BusyTimeout)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "policy:\n  count_mismatch: error\n")
	t.Setenv("NDXPOSE_POLICY_COUNT_MISMATCH", "off")
	t.Setenv("NDXPOSE_LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pose.StrictnessOff, cfg.Policy.CountMismatch)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_SearchPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".yaml"), []byte("log:\n  level: error\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.NotEmpty(t, cfg.File)
}

func TestLoad_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"strictness", "policy:\n  count_mismatch: sometimes\n"},
		{"format", "log:\n  format: xml\n"},
		{"busy timeout", "store:\n  busy_timeout_ms: -1\n"},
		{"yaml", "log: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConstruction(t *testing.T) {
	cfg := Default()
	cfg.Policy.CountMismatch = pose.StrictnessError
	rec := &pose.Recorder{}

	c := cfg.Construction(rec)
	assert.Equal(t, pose.UserConstructed, c.Source)
	assert.Equal(t, pose.StrictnessError, c.Strictness)
	assert.Same(t, rec, c.Notifier)
}
