// Package performance reconstructs per-constituent lifecycle results
// from composition spans and history point attributions.
package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/internal/engine"
	"github.com/wonny/helios/backend/pkg/logger"
)

// Status of a constituent span.
const (
	StatusActive = "ACTIVE"
	StatusExited = "EXITED"
)

// AssetPerformance is one constituent span's lifecycle summary.
type AssetPerformance struct {
	Ticker    string     `json:"ticker"`
	Status    string     `json:"status"`
	EntryDate time.Time  `json:"entry_date"`
	ExitDate  *time.Time `json:"exit_date,omitempty"`

	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"` // 편입 중이면 최신가

	DaysInIndex   int     `json:"days_in_index"`
	TotalReturn   float64 `json:"total_return"` // percent, price-based
	AverageWeight float64 `json:"average_weight"`
	// ContributionToIndex sums the ticker's daily contributions
	// (percent points) over every history point in the span.
	ContributionToIndex float64 `json:"contribution_to_index"`

	FirstSnapshotDate *time.Time `json:"first_snapshot_date,omitempty"`
	LastSnapshotDate  *time.Time `json:"last_snapshot_date,omitempty"`
}

// Aggregator computes asset performance
// ⭐ SSOT: 종목별 성과 집계는 여기서만
type Aggregator struct {
	compositions contracts.CompositionRepository
	history      contracts.HistoryRepository
	source       contracts.QuoteSource
	calendar     *engine.Calendar
	logger       *logger.Logger
	now          func() time.Time
}

// NewAggregator creates a performance aggregator
func NewAggregator(
	compositions contracts.CompositionRepository,
	history contracts.HistoryRepository,
	source contracts.QuoteSource,
	calendar *engine.Calendar,
	log *logger.Logger,
) *Aggregator {
	return &Aggregator{
		compositions: compositions,
		history:      history,
		source:       source,
		calendar:     calendar,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock overrides the wall clock (테스트용)
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// CalculateAssetPerformance summarizes every span of one ticker in the
// index. An unknown ticker yields an empty slice, not an error.
func (a *Aggregator) CalculateAssetPerformance(ctx context.Context, indexID int64, ticker string) ([]*AssetPerformance, error) {
	entries, err := a.compositions.ListByIndex(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load composition history: %w", err)
	}

	var spans []*contracts.CompositionEntry
	for _, e := range entries {
		if e.Ticker == ticker {
			spans = append(spans, e)
		}
	}
	if len(spans) == 0 {
		return []*AssetPerformance{}, nil
	}

	points, err := a.history.ListAll(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	results := make([]*AssetPerformance, 0, len(spans))
	for _, span := range spans {
		perf, err := a.summarizeSpan(ctx, span, points)
		if err != nil {
			return nil, err
		}
		results = append(results, perf)
	}
	return results, nil
}

// ListAllAssetsPerformance summarizes every span of every ticker that
// was ever part of the index.
func (a *Aggregator) ListAllAssetsPerformance(ctx context.Context, indexID int64) ([]*AssetPerformance, error) {
	entries, err := a.compositions.ListByIndex(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load composition history: %w", err)
	}
	if len(entries) == 0 {
		return []*AssetPerformance{}, nil
	}

	points, err := a.history.ListAll(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	results := make([]*AssetPerformance, 0, len(entries))
	for _, span := range entries {
		perf, err := a.summarizeSpan(ctx, span, points)
		if err != nil {
			// 한 종목 실패로 전체 목록을 포기하지 않는다
			a.logger.WithError(err).WithField("ticker", span.Ticker).Warn("Span summary failed")
			continue
		}
		results = append(results, perf)
	}
	return results, nil
}

func (a *Aggregator) summarizeSpan(ctx context.Context, span *contracts.CompositionEntry, points []*contracts.HistoryPoint) (*AssetPerformance, error) {
	perf := &AssetPerformance{
		Ticker:    span.Ticker,
		EntryDate: span.EntryDate,
		ExitDate:  span.ExitDate,
		Status:    StatusActive,
	}
	if span.ExitDate != nil {
		perf.Status = StatusExited
	}

	spanEnd := a.calendar.Normalize(a.now())
	if span.ExitDate != nil {
		spanEnd = a.calendar.Normalize(*span.ExitDate)
	}
	perf.DaysInIndex = int(spanEnd.Sub(a.calendar.Normalize(span.EntryDate)).Hours() / 24)

	// 히스토리 포인트에서 기여도/가중치 집계
	var weightSum float64
	var weightCount int
	for _, p := range points {
		if !span.ActiveOn(a.calendar.Normalize(p.Date)) {
			continue
		}
		if contrib, ok := p.Contributions[span.Ticker]; ok {
			perf.ContributionToIndex += contrib
		}
		if w, ok := p.Snapshot[span.Ticker]; ok {
			weightSum += w
			weightCount++

			d := p.Date
			if perf.FirstSnapshotDate == nil || d.Before(*perf.FirstSnapshotDate) {
				perf.FirstSnapshotDate = &d
			}
			if perf.LastSnapshotDate == nil || d.After(*perf.LastSnapshotDate) {
				perf.LastSnapshotDate = &d
			}
		}
	}
	if weightCount > 0 {
		perf.AverageWeight = weightSum / float64(weightCount)
	}

	entryPrice, exitPrice, err := a.spanPrices(ctx, span, spanEnd)
	if err != nil {
		return nil, err
	}
	perf.EntryPrice = entryPrice
	perf.ExitPrice = exitPrice
	if entryPrice > 0 && exitPrice > 0 {
		perf.TotalReturn = (exitPrice/entryPrice - 1) * 100
	}

	return perf, nil
}

// spanPrices fetches the close at entry and at exit (or the latest
// close for active spans).
func (a *Aggregator) spanPrices(ctx context.Context, span *contracts.CompositionEntry, spanEnd time.Time) (entry, exit float64, err error) {
	entryDate := a.calendar.Normalize(span.EntryDate)
	from := entryDate.AddDate(0, 0, -10)

	bars, err := a.source.FetchHistoricalPrices(ctx, span.Ticker, from, spanEnd, contracts.FetchOptions{Interval: contracts.IntervalDay})
	if err != nil {
		return 0, 0, fmt.Errorf("fetch prices for %s: %w", span.Ticker, err)
	}
	if len(bars) == 0 {
		return 0, 0, fmt.Errorf("no price data for %s", span.Ticker)
	}

	for _, bar := range bars {
		barDate := a.calendar.Normalize(bar.Date)
		// 편입일 종가: 편입일 이전 마지막 종가가 기준
		if entry == 0 && !barDate.Before(entryDate) {
			entry = bar.Close
		}
		if !barDate.After(spanEnd) {
			exit = bar.Close
		}
	}
	return entry, exit, nil
}
