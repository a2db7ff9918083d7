package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPlanCacheKey(t *testing.T) {
	a, err := planCacheKey("plan", map[string]any{"extra": 100, "strategy": "snowball"})
	require.NoError(t, err)
	b, err := planCacheKey("plan", map[string]any{"strategy": "snowball", "extra": 100})
	require.NoError(t, err)
	c, err := planCacheKey("plan", map[string]any{"extra": 101, "strategy": "snowball"})
	require.NoError(t, err)
	d, err := planCacheKey("compare", map[string]any{"extra": 100, "strategy": "snowball"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Regexp(t, `^plan:plan:[0-9a-f]{16}$`, a)

	_, err = planCacheKey("plan", func() {})
	assert.Error(t, err)
}

func TestMemoryPlanCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryPlanCache(time.Minute)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"a":1}`)))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(val))

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, c.data)
	assert.NoError(t, c.Close())
}

func TestNewPlanCacheFromConfig(t *testing.T) {
	t.Run("memory when redis unset", func(t *testing.T) {
		c := newPlanCacheFromConfig(context.Background(), Config{PlanCacheTTL: time.Minute}, zap.NewNop())
		assert.IsType(t, &MemoryPlanCache{}, c)
	})

	t.Run("memory when redis unreachable", func(t *testing.T) {
		cfg := Config{RedisAddr: "127.0.0.1:1", PlanCacheTTL: time.Minute}
		c := newPlanCacheFromConfig(context.Background(), cfg, zap.NewNop())
		assert.IsType(t, &MemoryPlanCache{}, c)
	})
}
