package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// BaselineCacheEntry wraps a cached baseline with cache metadata.
type BaselineCacheEntry struct {
	Baseline  *models.Baseline `json:"baseline"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// BaselineCacheStats tracks cache performance metrics.
type BaselineCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisBaselineCache caches per-system baselines in Redis so concurrent
// detection runs do not recompute rolling statistics.
type RedisBaselineCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *BaselineCacheStats
	prefix string
}

// NewRedisBaselineCache creates a new Redis-backed baseline cache.
func NewRedisBaselineCache(redisClient *redis.Client, ttl time.Duration) *RedisBaselineCache {
	return &RedisBaselineCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &BaselineCacheStats{},
		prefix: "baseline_cache:",
	}
}

// Get retrieves the cached baseline for a system. A stale entry counts as a
// miss so the caller rebuilds it.
func (c *RedisBaselineCache) Get(ctx context.Context, systemID string) (*models.Baseline, bool) {
	cacheKey := c.prefix + systemID

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		c.recordMiss()
		return nil, false
	}
	if err != nil {
		log.Printf("Redis error getting baseline for %s: %v", systemID, err)
		c.recordMiss()
		return nil, false
	}

	var entry BaselineCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		log.Printf("Error deserializing cached baseline for %s: %v", systemID, err)
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.recordMiss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()

	return entry.Baseline, true
}

// Set stores a freshly built baseline.
func (c *RedisBaselineCache) Set(ctx context.Context, systemID string, baseline *models.Baseline) {
	cacheKey := c.prefix + systemID

	now := time.Now()
	entry := BaselineCacheEntry{
		Baseline:  baseline,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error serializing baseline for %s: %v", systemID, err)
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		log.Printf("Redis error setting baseline for %s: %v", systemID, err)
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// Invalidate drops the cached baseline for a system, forcing a rebuild on
// the next detection run.
func (c *RedisBaselineCache) Invalidate(ctx context.Context, systemID string) error {
	if err := c.redis.Del(ctx, c.prefix+systemID).Err(); err != nil {
		return fmt.Errorf("error invalidating baseline for %s: %w", systemID, err)
	}
	return nil
}

// GetStats returns current cache statistics.
func (c *RedisBaselineCache) GetStats() BaselineCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return BaselineCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// Clear removes all cached baselines.
func (c *RedisBaselineCache) Clear(ctx context.Context) error {
	pattern := c.prefix + "*"

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning baseline cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing baseline cache: %w", err)
	}

	return nil
}

func (c *RedisBaselineCache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
