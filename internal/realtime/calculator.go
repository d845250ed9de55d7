// Package realtime extrapolates the current index level between
// official closes from live constituent quotes, with market-hours-aware
// caching.
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/internal/engine"
	"github.com/wonny/helios/backend/pkg/logger"
	"github.com/wonny/helios/backend/pkg/redis"
)

// Result is one real-time index estimate.
type Result struct {
	RealTimePoints     float64   `json:"real_time_points"`
	RealTimeReturn     float64   `json:"real_time_return"` // percent vs last official
	DailyChange        float64   `json:"daily_change"`     // percent, today's estimate
	LastOfficialPoints float64   `json:"last_official_points"`
	LastOfficialDate   time.Time `json:"last_official_date"`
	IsMarketOpen       bool      `json:"is_market_open"`
	HasClosingPrice    bool      `json:"has_closing_price"`
	// LastAvailableDailyChange is the last official day's change,
	// for display when the live estimate is unavailable.
	LastAvailableDailyChange float64 `json:"last_available_daily_change"`
	ComputedAt               time.Time `json:"computed_at"`
}

// Calculator computes real-time index levels
// ⭐ SSOT: 실시간 지수 추정은 여기서만
type Calculator struct {
	history      contracts.HistoryRepository
	compositions contracts.CompositionRepository
	source       contracts.QuoteSource
	cache        Cache
	calendar     *engine.Calendar
	logger       *logger.Logger
	now          func() time.Time
}

// NewCalculator creates a real-time calculator
func NewCalculator(
	history contracts.HistoryRepository,
	compositions contracts.CompositionRepository,
	source contracts.QuoteSource,
	cache Cache,
	calendar *engine.Calendar,
	log *logger.Logger,
) *Calculator {
	return &Calculator{
		history:      history,
		compositions: compositions,
		source:       source,
		cache:        cache,
		calendar:     calendar,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock overrides the wall clock (테스트용)
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// CalculateRealTimeReturn estimates the current index level.
//
// Cache policy:
//   - 장중: 캐시 사용, TTL 60초
//   - 장마감 + 당일 종가 확정: 캐시 사용, TTL 24시간
//   - 장마감 + 당일 종가 미확정: 캐시 우회, 항상 재계산
//     (마감 작업 전의 추정치를 확정치처럼 굳히지 않기 위해)
func (c *Calculator) CalculateRealTimeReturn(ctx context.Context, indexID int64) (*Result, error) {
	now := c.now()
	isOpen := c.calendar.IsMarketOpen(now)
	today := c.calendar.Normalize(now)

	todayPoint, err := c.history.GetByDate(ctx, indexID, today)
	if err != nil {
		return nil, fmt.Errorf("check today's point: %w", err)
	}
	hasClose := todayPoint != nil

	useCache := isOpen || hasClose
	if useCache {
		if cached, ok := c.cache.Get(ctx, indexID); ok {
			return cached, nil
		}
	}

	var result *Result
	if hasClose {
		// 종가가 이미 확정된 날은 라이브 추정을 얹지 않는다. 시세의
		// 전일종가는 어제 종가라서 확정 포인트 위에 다시 곱하면 당일
		// 변동이 이중 반영된다.
		result = c.officialResult(todayPoint, isOpen)
	} else {
		result, err = c.compute(ctx, indexID, isOpen)
		if err != nil {
			return nil, err
		}
	}

	if useCache {
		ttl := redis.TTLRealtime
		if !isOpen && hasClose {
			ttl = redis.TTLDaily
		}
		c.cache.Set(ctx, indexID, result, ttl)
	}

	return result, nil
}

// officialResult wraps a posted close as the real-time answer.
func (c *Calculator) officialResult(today *contracts.HistoryPoint, isOpen bool) *Result {
	return &Result{
		RealTimePoints:           today.Point,
		RealTimeReturn:           0,
		DailyChange:              today.DailyChange,
		LastOfficialPoints:       today.Point,
		LastOfficialDate:         today.Date,
		IsMarketOpen:             isOpen,
		HasClosingPrice:          true,
		LastAvailableDailyChange: today.DailyChange,
		ComputedAt:               c.now(),
	}
}

func (c *Calculator) compute(ctx context.Context, indexID int64, isOpen bool) (*Result, error) {
	latest, err := c.history.GetLatest(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load latest point: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("index %d has no history", indexID)
	}

	comps, err := c.compositions.GetActive(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load composition: %w", err)
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("index %d has no active composition", indexID)
	}

	var (
		weightedReturn float64
		coveredWeight  float64
		quoteCount     int
	)

	tickers := make([]string, 0, len(comps))
	for _, comp := range comps {
		tickers = append(tickers, comp.Ticker)
	}
	quotes, failures := c.source.FetchQuotesBatch(ctx, tickers)
	for ticker, err := range failures {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Live quote unavailable")
	}

	for _, comp := range comps {
		quote, ok := quotes[comp.Ticker]
		if !ok {
			continue
		}
		if quote.PrevClose <= 0 {
			c.logger.WithField("ticker", comp.Ticker).Warn("Quote missing reference close")
			continue
		}

		liveReturn := quote.Price/quote.PrevClose - 1
		weightedReturn += comp.Weight * liveReturn
		coveredWeight += comp.Weight
		quoteCount++
	}

	// 시세가 하나도 없으면 추정 불가. stale 데이터를 돌려주지 않는다
	if quoteCount == 0 {
		return nil, fmt.Errorf("cannot compute real-time return for index %d: no live quotes", indexID)
	}

	if coveredWeight < 1.0 && coveredWeight > 0 {
		// 일부 종목 시세 누락 시 확보된 가중치로 정규화
		weightedReturn /= coveredWeight
	}

	result := &Result{
		RealTimePoints:           latest.Point * (1 + weightedReturn),
		RealTimeReturn:           weightedReturn * 100,
		DailyChange:              weightedReturn * 100,
		LastOfficialPoints:       latest.Point,
		LastOfficialDate:         latest.Date,
		IsMarketOpen:             isOpen,
		HasClosingPrice:          false,
		LastAvailableDailyChange: latest.DailyChange,
		ComputedAt:               c.now(),
	}

	c.logger.WithFields(map[string]interface{}{
		"index_id":    indexID,
		"points":      result.RealTimePoints,
		"return_pct":  result.RealTimeReturn,
		"quotes_used": quoteCount,
	}).Debug("Computed real-time index level")

	return result, nil
}
