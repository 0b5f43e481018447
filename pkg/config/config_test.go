package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, ""))

	cfg := m.Get()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "data", cfg.Storage.Path)
	assert.Equal(t, 4096, cfg.Cache.LocalCapacity)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, uint64(10), cfg.Learner.PromotionThreshold)
	assert.InDelta(t, 0.8, cfg.Learner.MinStability, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.Learner.Window)
	assert.Equal(t, 10000, cfg.Learner.MaxObservations)
}

func TestLoadYAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `log:
  level: debug
storage:
  path: /var/lib/traceprint
cache:
  redis:
    enabled: true
    addr: localhost:6379
learner:
  promotion_threshold: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(nil, path))

	cfg := m.Get()
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/traceprint", cfg.Storage.Path)
	assert.True(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, uint64(25), cfg.Learner.PromotionThreshold)
	// Untouched keys keep their defaults.
	assert.Equal(t, 4096, cfg.Cache.LocalCapacity)
}

func TestLoadFlagsHavePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log.level=error", "--storage.path=/tmp/tp"}))

	m := NewManager()
	require.NoError(t, m.Load(flags, path))

	cfg := m.Get()
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "/tmp/tp", cfg.Storage.Path)
}

func TestDebugFlagForcesDebugLevel(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--debug"}))

	m := NewManager()
	require.NoError(t, m.Load(flags, ""))
	assert.Equal(t, "debug", m.Get().Log.Level)
}

func TestLoadMissingFileFails(t *testing.T) {
	m := NewManager()
	assert.Error(t, m.Load(nil, "no-such-file.yaml"))
}
