package heldsale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusHeld, StatusCompleted))
	assert.True(t, CanTransition(StatusHeld, StatusExpired))
	assert.False(t, CanTransition(StatusCompleted, StatusHeld))
	assert.False(t, CanTransition(StatusExpired, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusExpired))

	assert.False(t, StatusHeld.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
}

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.True(t, (&HeldSale{Status: StatusHeld}).IsActive(now))
	assert.True(t, (&HeldSale{Status: StatusHeld, ExpiresAt: &future}).IsActive(now))
	assert.False(t, (&HeldSale{Status: StatusHeld, ExpiresAt: &now}).IsActive(now))
	assert.False(t, (&HeldSale{Status: StatusHeld, ExpiresAt: &past}).IsActive(now))
	assert.False(t, (&HeldSale{Status: StatusCompleted}).IsActive(now))
}

func TestExpiryPolicy_Shift(t *testing.T) {
	p, err := ParseExpiryPolicy("shift", 0, "22:00")
	require.NoError(t, err)

	morning := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 4, 22, 0, 0, 0, time.UTC), *p.ExpiresAt(morning))

	late := time.Date(2026, 5, 4, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 5, 22, 0, 0, 0, time.UTC), *p.ExpiresAt(late))
}

func TestParseExpiryPolicy(t *testing.T) {
	p, err := ParseExpiryPolicy("", 0, "")
	require.NoError(t, err)
	assert.Equal(t, ExpiryTTL, p.Mode)
	created := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, created.Add(DefaultTTL), *p.ExpiresAt(created))

	p, err = ParseExpiryPolicy("NEVER", time.Hour, "")
	require.NoError(t, err)
	assert.Nil(t, p.ExpiresAt(created))

	_, err = ParseExpiryPolicy("shift", 0, "25:99")
	assert.Error(t, err)

	_, err = ParseExpiryPolicy("weekly", 0, "")
	assert.Error(t, err)
}
