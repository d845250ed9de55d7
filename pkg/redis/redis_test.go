package redis

import (
	"context"
	"testing"

	"github.com/wonny/helios/backend/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestNewDisabled(t *testing.T) {
	client := NewDisabled()
	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(NewDisabled(), "test")

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), KISRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != KISRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", KISRateLimit.Limit, remaining)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(NewDisabled(), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	var result string
	hit, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if hit {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Set(ctx, "key", "value", TTLRealtime); err != nil {
		t.Errorf("Set() error = %v", err)
	}

	if err := cache.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := RealtimeKey(42); got != "realtime:42" {
		t.Errorf("RealtimeKey(42) = %q", got)
	}

	if got := BarsKey("005930", "2026-08-01", "2026-08-28"); got != "bars:005930:2026-08-01:2026-08-28" {
		t.Errorf("BarsKey() = %q", got)
	}

	if got := DividendKey("005930"); got != "dividends:005930" {
		t.Errorf("DividendKey() = %q", got)
	}
}
