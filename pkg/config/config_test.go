package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, "0.18", cfg.TaxRate.String())
	assert.Equal(t, "500", cfg.FreeShippingThreshold.String())
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TAX_RATE", "0.05")
	t.Setenv("RESERVATION_TTL", "90s")
	t.Setenv("KAFKA_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.05", cfg.TaxRate.String())
	assert.Equal(t, 90*time.Second, cfg.ReservationTTL)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	_, err := Load()
	assert.Error(t, err)
}
