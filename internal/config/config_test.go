package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/internal/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kdebug.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	sc, err := cfg.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, session.DefaultConfig(), sc)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
channel_capacity: 8
pause_scope: instance
overflow:
  policy: backlog
  backlog_limit: 16
  wait_timeout: 20ms
engine:
  ksmps_period: 2ms
  pin_cpu: 0
log:
  level: debug
  mode: structured
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ChannelCapacity)
	assert.Equal(t, Default().EventCapacity, cfg.EventCapacity, "unset keys keep defaults")
	assert.Equal(t, 20*time.Millisecond, cfg.Overflow.WaitTimeout)
	assert.Equal(t, 2*time.Millisecond, cfg.Engine.KsmpsPeriod)
	assert.Equal(t, 0, cfg.Engine.PinCPU)

	sc, err := cfg.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, api.PauseInstance, sc.PauseScope)
	assert.Equal(t, session.OverflowBacklog, sc.Overflow)
	assert.Equal(t, 16, sc.BacklogLimit)

	ec := cfg.EngineConfig()
	assert.Equal(t, 2*time.Millisecond, ec.Period)
	assert.Equal(t, 0, ec.PinCPU)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KDEBUG_OVERFLOW_POLICY", "wait")
	t.Setenv("KDEBUG_REGISTRY_CAPACITY", "4")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "wait", cfg.Overflow.Policy)
	assert.Equal(t, 4, cfg.RegistryCapacity)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"scope":    "pause_scope: everything\n",
		"policy":   "overflow:\n  policy: block\n",
		"capacity": "channel_capacity: 0\n",
		"mode":     "log:\n  mode: xml\n",
		"period":   "engine:\n  ksmps_period: -1ms\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, api.ErrInvalidArgument)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMarshalLoadsBack(t *testing.T) {
	cfg := Default()
	cfg.PauseScope = "instance"
	cfg.Overflow.WaitTimeout = 750 * time.Microsecond
	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "750µs")

	got, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSnapshotKeys(t *testing.T) {
	snap := Default().Snapshot()
	assert.Equal(t, "drop", snap["overflow.policy"])
	assert.Equal(t, "global", snap["pause_scope"])
	assert.Equal(t, 64, snap["channel_capacity"])
}
