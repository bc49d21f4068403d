package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/claimline/go/internal/game/lifecycle"
	"github.com/mcdev12/claimline/go/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "NATS_URL", "LOG_DIR", "LOG_LEVEL", "SINGLE_ACTIVE_MATCH", "DEFAULT_TOTAL_ROUNDS"} {
		t.Setenv(key, "")
	}
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, models.DefaultRoomSettings(), cfg.Game.RoomDefaults())
	assert.Equal(t, lifecycle.DefaultTiming(), cfg.Timing)
	assert.True(t, cfg.Game.SingleActiveMatch)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claimline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8088"
game:
  cost_per_point: 0.1
  total_rounds: 5
timing:
  countdown_start: 5
  submit_tolerance: 750ms
log:
  level: debug
nats:
  memory: true
`), 0o644))

	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEFAULT_TOTAL_ROUNDS", "")
	t.Setenv("SINGLE_ACTIVE_MATCH", "false")
	t.Setenv("NATS_URL", "nats://nats:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8088", cfg.Server.Port)
	assert.Equal(t, 0.1, cfg.Game.CostPerPoint)
	assert.Equal(t, 10.0, cfg.Game.DurationSec, "unset keys keep their defaults")
	assert.Equal(t, 5, cfg.Game.TotalRounds)
	assert.Equal(t, 5, cfg.Timing.CountdownStart)
	assert.Equal(t, 750*time.Millisecond, cfg.Timing.SubmitTolerance)
	assert.Equal(t, time.Second, cfg.Timing.CountdownInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Game.SingleActiveMatch)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.True(t, cfg.NATS.Memory)
	assert.Equal(t, "claimline.rooms", cfg.NATS.SubjectPrefix)

	t.Setenv("PORT", "9999")
	t.Setenv("DEFAULT_TOTAL_ROUNDS", "not-a-number")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Game.TotalRounds)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}
