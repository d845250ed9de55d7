package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/helios/backend/pkg/redis"
)

// Cache stores computed real-time results per index. Injected so tests
// control staleness without wall-clock dependence.
// ⭐ SSOT: 실시간 지수 캐시 추상화는 여기서만
type Cache interface {
	Get(ctx context.Context, indexID int64) (*Result, bool)
	Set(ctx context.Context, indexID int64, result *Result, ttl time.Duration)
}

// RedisCache is the production cache implementation.
type RedisCache struct {
	cache *redis.Cache
}

// NewRedisCache creates a Redis-backed result cache
func NewRedisCache(cache *redis.Cache) *RedisCache {
	return &RedisCache{cache: cache}
}

func (c *RedisCache) Get(ctx context.Context, indexID int64) (*Result, bool) {
	var result Result
	hit, err := c.cache.Get(ctx, redis.RealtimeKey(indexID), &result)
	if err != nil || !hit {
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, indexID int64, result *Result, ttl time.Duration) {
	// 캐시는 source of truth가 아님, 쓰기 실패는 무시
	_ = c.cache.Set(ctx, redis.RealtimeKey(indexID), result, ttl)
}

// MemoryCache is an in-process cache with an injectable clock, used
// when Redis is disabled and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	result    *Result
	expiresAt time.Time
}

// NewMemoryCache creates an in-process result cache
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: make(map[int64]memoryEntry),
		now:     now,
	}
}

func (c *MemoryCache) Get(_ context.Context, indexID int64) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[indexID]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func (c *MemoryCache) Set(_ context.Context, indexID int64, result *Result, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[indexID] = memoryEntry{
		result:    result,
		expiresAt: c.now().Add(ttl),
	}
}
