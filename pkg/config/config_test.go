package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, 10, cfg.ConnectTimeoutSeconds)
	assert.Equal(t, 30, cfg.CommandTimeoutSeconds)
	assert.Equal(t, 10, cfg.FleetConcurrency)
	assert.Equal(t, 120, cfg.PassDeadlineSeconds)
	assert.Equal(t, []string{"show version"}, cfg.FleetCommands)
	assert.Equal(t, 60, cfg.SchedulerIntervalSecond)
	assert.Equal(t, 64, cfg.BroadcastBufferSize)
	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.True(t, cfg.AlertOnCommandFailure)
	assert.Equal(t, 100, cfg.ResultsDefaultLimit)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("FLEET_CONCURRENCY", "25")
	t.Setenv("SERVER_ADDRESS", ":9090")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.FleetConcurrency)
	assert.Equal(t, ":9090", cfg.ServerAddress)
}
