package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillcore/internal/domain/heldsale"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tillcore")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.SaleNumberRetries)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, heldsale.ExpiryTTL, cfg.HoldExpiry.Mode)
	assert.Equal(t, heldsale.DefaultTTL, cfg.HoldExpiry.TTL)
	assert.True(t, cfg.IdempotencyEnabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("HOLD_EXPIRY_MODE", "never")
	t.Setenv("SALE_NUMBER_RETRIES", "8")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("IDEMPOTENCY_ENABLED", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, heldsale.ExpiryNever, cfg.HoldExpiry.Mode)
	assert.Equal(t, 8, cfg.SaleNumberRetries)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.False(t, cfg.IdempotencyEnabled)
}

func TestFromEnv_ReportsAllProblems(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SWEEP_BATCH", "lots")
	t.Setenv("HOLD_TTL", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "SWEEP_BATCH", "HOLD_TTL"} {
		assert.Contains(t, err.Error(), want)
	}
}
