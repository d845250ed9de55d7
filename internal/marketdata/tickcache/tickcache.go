// Package tickcache holds the latest live quote per ticker in memory.
// The websocket feed writes into it; the quote source reads from it
// before falling back to REST.
package tickcache

import (
	"sync"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/pkg/logger"
)

// Cache is an in-memory TTL cache for live quotes
// ⭐ SSOT: 실시간 틱 캐싱은 이 구조체에서만
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]*contracts.Quote
	ttl    time.Duration
	logger *logger.Logger
}

// New creates a quote cache with the given freshness TTL
func New(ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		quotes: make(map[string]*contracts.Quote),
		ttl:    ttl,
		logger: log,
	}
}

// Update stores a quote. Older-than-cached ticks are rejected,
// 순서가 뒤바뀐 틱으로 최신가를 덮어쓰지 않음.
func (c *Cache) Update(quote *contracts.Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.quotes[quote.Ticker]
	if exists && quote.Timestamp.Before(existing.Timestamp) {
		return false
	}

	// PrevClose는 REST 조회에서만 오므로 틱에 없으면 유지
	if quote.PrevClose == 0 && exists {
		quote.PrevClose = existing.PrevClose
	}

	c.quotes[quote.Ticker] = quote
	return true
}

// Get retrieves a fresh quote. Stale entries (older than TTL) return
// (nil, false).
func (c *Cache) Get(ticker string) (*contracts.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quote, exists := c.quotes[ticker]
	if !exists {
		return nil, false
	}
	if time.Since(quote.Timestamp) > c.ttl {
		return nil, false
	}
	return quote, true
}

// Len reports the number of cached entries (stale included)
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}

// Cleanup drops entries older than the TTL and returns the count removed
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for ticker, quote := range c.quotes {
		if time.Since(quote.Timestamp) > c.ttl {
			delete(c.quotes, ticker)
			removed++
		}
	}

	if removed > 0 {
		c.logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"remaining": len(c.quotes),
		}).Debug("Cleaned up stale ticks")
	}
	return removed
}
