package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CALLGATE_DATABASE_URL", "postgres://localhost:5432/callgate_test")
	t.Setenv("CALLGATE_REDIS_ADDR", "localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromFile("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Ledger.ReservationGrace)
	assert.Equal(t, time.Minute, cfg.Ledger.SweepInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Reporting.Window)
	assert.Equal(t, 2*time.Second, cfg.Gate.LockTimeout)
	assert.Equal(t, 0.1, cfg.Telemetry.TraceSampling)
	assert.Equal(t, "postgres://localhost:5432/callgate_test", cfg.Database.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CALLGATE_SERVER_PORT", "9090")
	t.Setenv("CALLGATE_ENVIRONMENT", "production")

	cfg, err := LoadFromFile("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\nversion: v2\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "v2", cfg.Version)

	t.Setenv("CALLGATE_SERVER_PORT", "7071")
	cfg, err = LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7071, cfg.Server.Port)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("CALLGATE_REDIS_ADDR", "localhost:6379")
		_, err := LoadFromFile("does-not-exist.yaml")
		require.Error(t, err)
	})

	t.Run("bad environment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CALLGATE_ENVIRONMENT", "underwater")
		_, err := LoadFromFile("does-not-exist.yaml")
		require.Error(t, err)
	})
}
