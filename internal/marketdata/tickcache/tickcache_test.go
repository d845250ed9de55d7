package tickcache

import (
	"testing"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/pkg/logger"
)

func TestCache_UpdateAndGet(t *testing.T) {
	c := New(time.Minute, logger.NewNop())

	now := time.Now()
	if ok := c.Update(&contracts.Quote{Ticker: "005930", Price: 72000, PrevClose: 71000, Timestamp: now}); !ok {
		t.Fatal("Update() rejected a fresh quote")
	}

	quote, ok := c.Get("005930")
	if !ok {
		t.Fatal("Get() miss for cached ticker")
	}
	if quote.Price != 72000 {
		t.Errorf("Price = %v, want 72000", quote.Price)
	}

	if _, ok := c.Get("000660"); ok {
		t.Error("Get() hit for unknown ticker")
	}
}

func TestCache_RejectsOutOfOrderTick(t *testing.T) {
	c := New(time.Minute, logger.NewNop())
	now := time.Now()

	c.Update(&contracts.Quote{Ticker: "005930", Price: 72000, Timestamp: now})

	if ok := c.Update(&contracts.Quote{Ticker: "005930", Price: 71000, Timestamp: now.Add(-time.Second)}); ok {
		t.Error("Update() accepted an older tick")
	}

	quote, _ := c.Get("005930")
	if quote.Price != 72000 {
		t.Errorf("Price = %v, want the newer 72000", quote.Price)
	}
}

func TestCache_PreservesPrevClose(t *testing.T) {
	c := New(time.Minute, logger.NewNop())
	now := time.Now()

	// REST seed carries PrevClose; websocket ticks do not.
	c.Update(&contracts.Quote{Ticker: "005930", Price: 72000, PrevClose: 71000, Timestamp: now})
	c.Update(&contracts.Quote{Ticker: "005930", Price: 72500, Timestamp: now.Add(time.Second)})

	quote, ok := c.Get("005930")
	if !ok {
		t.Fatal("Get() miss")
	}
	if quote.Price != 72500 {
		t.Errorf("Price = %v, want 72500", quote.Price)
	}
	if quote.PrevClose != 71000 {
		t.Errorf("PrevClose = %v, want the preserved 71000", quote.PrevClose)
	}
}

func TestCache_StaleEntries(t *testing.T) {
	c := New(time.Minute, logger.NewNop())

	c.Update(&contracts.Quote{Ticker: "005930", Price: 72000, Timestamp: time.Now().Add(-2 * time.Minute)})
	c.Update(&contracts.Quote{Ticker: "000660", Price: 180000, Timestamp: time.Now()})

	if _, ok := c.Get("005930"); ok {
		t.Error("Get() returned a stale quote")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (stale included)", c.Len())
	}

	if removed := c.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() after cleanup = %d, want 1", c.Len())
	}
	if _, ok := c.Get("000660"); !ok {
		t.Error("Cleanup() evicted a fresh quote")
	}
}
