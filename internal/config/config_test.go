package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "JWT_SECRET", "JWT_EXPIRES_IN", "DEVICE_HMAC_SECRET"} {
		os.Unsetenv(k)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 5, cfg.AlertEvalIntervalMinutes)
	assert.Equal(t, 30, cfg.NoTelemetryThresholdMinutes)
	assert.Equal(t, 85.0, cfg.OverTempThresholdC)
	assert.Equal(t, 3, cfg.SensorOutOfRangeRepeatCount)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("PORT", "8080")
	os.Setenv("JWT_EXPIRES_IN", "1h")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("JWT_EXPIRES_IN")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Hour, cfg.JWTExpiresIn)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	os.Setenv("JWT_EXPIRES_IN", "not-a-duration")
	defer os.Unsetenv("JWT_EXPIRES_IN")

	_, err := Load()
	assert.Error(t, err)
}
