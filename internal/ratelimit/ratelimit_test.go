package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFixedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)
	m := NewMemory(3, time.Minute)
	m.now = func() time.Time { return now }

	key := LoginKey("10.0.0.1", "A@X.com")
	for i := 1; i <= 3; i++ {
		res, err := m.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
		assert.Equal(t, int64(3-i), res.Remaining)
	}
	res, err := m.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 55*time.Second, res.RetryAfter)

	other, err := m.Allow(ctx, LoginKey("10.0.0.2", "a@x.com"))
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	now = now.Add(time.Minute)
	res, err = m.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a new window starts fresh")
}

func TestMemoryReset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1, time.Hour)
	key := LoginKey("::1", "a@x.com")

	res, err := m.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = m.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	require.NoError(t, m.Reset(ctx, key))
	res, err = m.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLoginKeyNormalizesEmail(t *testing.T) {
	assert.Equal(t, LoginKey("1.2.3.4", " A@X.COM "), LoginKey("1.2.3.4", "a@x.com"))
}

func TestNop(t *testing.T) {
	res, err := Nop{}.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
