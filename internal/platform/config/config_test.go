package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	guardconfig "aegis/internal/guard/config"
	"aegis/internal/guard/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.CSRFMaxAge)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 1000, cfg.ThrottlePerSecond)
	assert.NotEmpty(t, cfg.JWTSigningKey, "dev fallback key must be generated")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AEGIS_ADDR", ":9090")
	t.Setenv("AEGIS_LOG_LEVEL", "debug")
	t.Setenv("AEGIS_JWT_SIGNING_KEY", "test-key")
	t.Setenv("AEGIS_CSRF_MAX_AGE", "15m")
	t.Setenv("AEGIS_THROTTLE_PER_SECOND", "50")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "test-key", cfg.JWTSigningKey)
	assert.Equal(t, 15*time.Minute, cfg.CSRFMaxAge)
	assert.Equal(t, 50, cfg.ThrottlePerSecond)
}

func TestLoad_DotenvFileThenEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AEGIS_ADDR=:7070\nAEGIS_SWEEP_INTERVAL=1m\n"), 0o600))
	t.Setenv("AEGIS_ADDR", ":6060")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.Addr, "environment overrides the file")
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("AEGIS_SWEEP_INTERVAL", "not-a-duration")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_LimitDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, guardconfig.Default().Limits, cfg.Limits)
}

func TestLoad_LimitOverrides(t *testing.T) {
	t.Setenv("AEGIS_LIMIT_PROFILE_UPDATE_MAX_ATTEMPTS", "20")
	t.Setenv("AEGIS_LIMIT_PROFILE_UPDATE_WINDOW", "30m")
	t.Setenv("AEGIS_LIMIT_DATA_EXPORT_BLOCK", "4h")

	cfg, err := Load("")
	require.NoError(t, err)

	upd := cfg.Limits[models.OpProfileUpdate]
	assert.Equal(t, 20, upd.MaxAttempts)
	assert.Equal(t, 30*time.Minute, upd.Window)
	assert.Equal(t, guardconfig.Default().Limits[models.OpProfileUpdate].BlockDuration, upd.BlockDuration,
		"untouched fields keep their defaults")

	exp := cfg.Limits[models.OpDataExport]
	assert.Equal(t, 4*time.Hour, exp.BlockDuration)

	assert.Equal(t, guardconfig.Default().Limits[models.OpProfileRead], cfg.Limits[models.OpProfileRead],
		"untouched operations keep their defaults")
}

func TestLoad_BadLimitDuration(t *testing.T) {
	t.Setenv("AEGIS_LIMIT_AVATAR_UPLOAD_WINDOW", "soon")

	_, err := Load("")
	assert.Error(t, err)
}
