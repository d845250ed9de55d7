package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if err != nil {
		// Key not found is not an error
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// Predefined TTLs
const (
	TTLRealtime = 1 * time.Minute  // 장중 실시간 지수
	TTLDaily    = 24 * time.Hour   // 확정 종가 이후
	TTLBars     = 12 * time.Hour   // 일봉 데이터
	TTLDividend = 6 * time.Hour    // 배당 일정
)

// Common cache key generators

// RealtimeKey keys the cached real-time level of an index
func RealtimeKey(indexID int64) string {
	return fmt.Sprintf("realtime:%d", indexID)
}

// BarsKey keys a ticker's daily bars for one requested range
func BarsKey(ticker, from, to string) string {
	return fmt.Sprintf("bars:%s:%s:%s", ticker, from, to)
}

// DividendKey keys a ticker's dividend calendar
func DividendKey(ticker string) string {
	return fmt.Sprintf("dividends:%s", ticker)
}
