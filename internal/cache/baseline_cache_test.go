package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisBaselineCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisBaselineCache(client, ttl), mr
}

func testBaseline() *models.Baseline {
	return &models.Baseline{
		SystemID:    "sys-1",
		WindowDays:  30,
		SampleCount: 480,
		Statistics: models.BaselineStatistics{
			Mean: 0.81, Median: 0.82, StdDev: 0.05,
			Min: 0.41, Max: 0.93, P25: 0.78, P75: 0.86, P95: 0.90, P99: 0.92,
		},
		ComputedAt: time.Now(),
	}
}

func TestBaselineCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	_, ok := c.Get(ctx, "sys-1")
	assert.False(t, ok)

	c.Set(ctx, "sys-1", testBaseline())

	got, ok := c.Get(ctx, "sys-1")
	require.True(t, ok)
	assert.Equal(t, "sys-1", got.SystemID)
	assert.Equal(t, 480, got.SampleCount)
	assert.InDelta(t, 0.81, got.Statistics.Mean, 1e-9)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestBaselineCache_ExpiredEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "sys-1", testBaseline())
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "sys-1")
	assert.False(t, ok)
}

func TestBaselineCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "sys-1", testBaseline())
	require.NoError(t, c.Invalidate(ctx, "sys-1"))

	_, ok := c.Get(ctx, "sys-1")
	assert.False(t, ok)
}

func TestBaselineCache_Clear(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "sys-1", testBaseline())
	b2 := testBaseline()
	b2.SystemID = "sys-2"
	c.Set(ctx, "sys-2", b2)

	require.NoError(t, c.Clear(ctx))

	_, ok := c.Get(ctx, "sys-1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "sys-2")
	assert.False(t, ok)
}
