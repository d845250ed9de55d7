// Package engine implements the daily mark-to-market computation: it
// derives each business day's index point from the prior point, the
// active composition, constituent price returns, and dividend events.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/pkg/logger"
)

// DefaultAttributionTolerance bounds the allowed gap between summed
// per-ticker contributions and the daily change, in percent points.
// 지수 크기나 종목 수에 비례시키지 않는다. 고정 상수.
const DefaultAttributionTolerance = 0.01

// priceLookbackDays pads the fetch window so the prior close survives
// holidays and short suspensions.
const priceLookbackDays = 10

// Screener produces ranked candidates for an index methodology.
type Screener interface {
	RunScreening(ctx context.Context, methodology contracts.Methodology) ([]contracts.Candidate, error)
}

// Rebalancer applies a candidate list to an index's composition.
type Rebalancer interface {
	UpdateComposition(ctx context.Context, index *contracts.IndexDefinition, candidates []contracts.Candidate, date time.Time, descriptions map[string]string) (*contracts.RebalanceDiff, error)
}

// Calculator is the mark-to-market engine
// ⭐ SSOT: 지수 포인트 계산은 여기서만
type Calculator struct {
	indexes      contracts.IndexRepository
	compositions contracts.CompositionRepository
	history      contracts.HistoryRepository
	source       contracts.QuoteSource
	screener     Screener
	rebalancer   Rebalancer
	calendar     *Calendar
	logger       *logger.Logger

	tolerance float64
	now       func() time.Time
}

// NewCalculator creates a mark-to-market calculator
func NewCalculator(
	indexes contracts.IndexRepository,
	compositions contracts.CompositionRepository,
	history contracts.HistoryRepository,
	source contracts.QuoteSource,
	screener Screener,
	rebalancer Rebalancer,
	calendar *Calendar,
	log *logger.Logger,
	tolerance float64,
) *Calculator {
	if tolerance <= 0 {
		tolerance = DefaultAttributionTolerance
	}
	return &Calculator{
		indexes:      indexes,
		compositions: compositions,
		history:      history,
		source:       source,
		screener:     screener,
		rebalancer:   rebalancer,
		calendar:     calendar,
		logger:       log,
		tolerance:    tolerance,
		now:          time.Now,
	}
}

// WithClock overrides the wall clock (테스트용)
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Calendar exposes the engine's trading calendar
func (c *Calculator) Calendar() *Calendar {
	return c.calendar
}

// UpdateIndexPoints computes and persists the index point for one
// business day. Returns whether a point was written: an existing point
// is skipped unless force is set. skipCache forces fresh source data.
func (c *Calculator) UpdateIndexPoints(ctx context.Context, indexID int64, date time.Time, force, skipCache bool) (bool, error) {
	date = c.calendar.Normalize(date)
	if !c.calendar.IsBusinessDay(date) {
		return false, fmt.Errorf("%s is not a business day", c.calendar.FormatDate(date))
	}

	existing, err := c.history.GetByDate(ctx, indexID, date)
	if err != nil {
		return false, fmt.Errorf("check existing point: %w", err)
	}
	if existing != nil && !force {
		c.logger.WithFields(map[string]interface{}{
			"index_id": indexID,
			"date":     c.calendar.FormatDate(date),
		}).Debug("Point already exists, skipping")
		return false, nil
	}

	point, itemErrs, err := c.computeDay(ctx, indexID, date, skipCache)
	for _, msg := range itemErrs {
		c.logger.WithFields(map[string]interface{}{
			"index_id": indexID,
			"date":     c.calendar.FormatDate(date),
		}).Warn(msg)
	}
	if err != nil {
		return false, err
	}

	if err := c.history.Upsert(ctx, point); err != nil {
		return false, fmt.Errorf("persist point: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"index_id":     indexID,
		"date":         c.calendar.FormatDate(date),
		"point":        point.Point,
		"daily_change": point.DailyChange,
	}).Info("Index point updated")

	return true, nil
}

// computeDay runs the core mark-to-market steps for one date. Per-ticker
// data gaps are skipped and reported in itemErrs; the date errors only
// when no ticker at all yields a usable return.
func (c *Calculator) computeDay(ctx context.Context, indexID int64, date time.Time, skipCache bool) (*contracts.HistoryPoint, []string, error) {
	prior, err := c.history.GetPriorTo(ctx, indexID, date)
	if err != nil {
		return nil, nil, fmt.Errorf("load prior point: %w", err)
	}

	priorPoint := contracts.BaseValue
	priorDividends := 0.0
	priorDate := c.calendar.PrevBusinessDay(date)
	if prior != nil {
		priorPoint = prior.Point
		priorDividends = prior.DividendsReceived
		priorDate = c.calendar.Normalize(prior.Date)
	}

	comps, err := c.compositions.GetActiveOn(ctx, indexID, date)
	if err != nil {
		return nil, nil, fmt.Errorf("load composition: %w", err)
	}
	if len(comps) == 0 {
		return nil, nil, fmt.Errorf("no active composition for index %d on %s", indexID, c.calendar.FormatDate(date))
	}

	var (
		dailyChange   float64
		dayDividends  float64
		itemErrs      []string
		contributions = make(map[string]float64, len(comps))
		dividends     = make(map[string]float64)
		snapshot      = make(map[string]float64, len(comps))
	)

	opts := contracts.FetchOptions{Interval: contracts.IntervalDay, SkipCache: skipCache}
	from := priorDate.AddDate(0, 0, -priceLookbackDays)

	for _, comp := range comps {
		snapshot[comp.Ticker] = comp.Weight

		bars, err := c.source.FetchHistoricalPrices(ctx, comp.Ticker, from, date, opts)
		if err != nil {
			itemErrs = append(itemErrs, fmt.Sprintf("%s: fetch prices: %v", comp.Ticker, err))
			continue
		}

		closeToday, closePrior, ok := closesFor(bars, date, priorDate, c.calendar)
		if !ok {
			itemErrs = append(itemErrs, fmt.Sprintf("%s: no close for %s", comp.Ticker, c.calendar.FormatDate(date)))
			continue
		}

		priceReturn := closeToday/closePrior - 1

		divYield := 0.0
		calendar, err := c.source.FetchDividendCalendar(ctx, comp.Ticker)
		if err != nil {
			itemErrs = append(itemErrs, fmt.Sprintf("%s: fetch dividends: %v", comp.Ticker, err))
		} else {
			for _, div := range calendar {
				if c.calendar.SameDate(div.ExDate, date) {
					divYield += div.Amount / closePrior
					dividends[comp.Ticker] += div.Amount
					dayDividends += div.Amount
				}
			}
		}

		contribution := comp.Weight * (priceReturn + divYield) * 100
		contributions[comp.Ticker] = contribution
		dailyChange += contribution
	}

	// 전 종목 데이터 실패면 그 날은 합성하지 않는다. 변동 0의 가짜
	// 포인트를 쓰면 이후 날짜가 그 위에 쌓이고 재시도 대상에서도 빠진다.
	if len(contributions) == 0 {
		return nil, itemErrs, fmt.Errorf("no usable price data for index %d on %s", indexID, c.calendar.FormatDate(date))
	}

	point := &contracts.HistoryPoint{
		IndexID:           indexID,
		Date:              date,
		Point:             priorPoint * (1 + dailyChange/100),
		DailyChange:       dailyChange,
		DividendsReceived: priorDividends + dayDividends,
		DividendsByTicker: dividends,
		Contributions:     contributions,
		Snapshot:          snapshot,
	}

	if diag := point.CheckAttribution(c.tolerance); !diag.IsValid {
		c.logger.WithFields(map[string]interface{}{
			"index_id":   indexID,
			"date":       c.calendar.FormatDate(date),
			"difference": diag.Difference,
		}).Warn("Contribution sum deviates from daily change")
	}

	return point, itemErrs, nil
}

// closesFor extracts today's close and the prior reference close from
// a fetched bar window. The prior close is the latest bar dated at or
// before priorDate; today's close must exist exactly on date.
func closesFor(bars []contracts.PriceBar, date, priorDate time.Time, cal *Calendar) (closeToday, closePrior float64, ok bool) {
	for _, bar := range bars {
		barDate := cal.Normalize(bar.Date)
		if cal.SameDate(barDate, date) {
			closeToday = bar.Close
		}
		if !barDate.After(priorDate) && bar.Close > 0 {
			closePrior = bar.Close // bars ascending이므로 마지막 값이 최신
		}
	}
	ok = closeToday > 0 && closePrior > 0
	return closeToday, closePrior, ok
}

// FixIndexStartingPoint inserts a synthetic base-value point one
// business day before the earliest history point when the series does
// not start at the base value. Reports whether a fix was applied.
func (c *Calculator) FixIndexStartingPoint(ctx context.Context, indexID int64) (bool, error) {
	earliest, err := c.history.GetEarliest(ctx, indexID)
	if err != nil {
		return false, fmt.Errorf("load earliest point: %w", err)
	}
	if earliest == nil {
		return false, nil // 히스토리 없음, 고칠 것도 없음
	}
	if earliest.Point == contracts.BaseValue {
		return false, nil
	}

	virtual := &contracts.HistoryPoint{
		IndexID:           indexID,
		Date:              c.calendar.PrevBusinessDay(earliest.Date),
		Point:             contracts.BaseValue,
		DailyChange:       0,
		DividendsByTicker: map[string]float64{},
		Contributions:     map[string]float64{},
		Snapshot:          earliest.Snapshot,
	}

	if err := c.history.Upsert(ctx, virtual); err != nil {
		return false, fmt.Errorf("insert virtual base point: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"index_id": indexID,
		"date":     c.calendar.FormatDate(virtual.Date),
	}).Info("Inserted virtual base point")

	return true, nil
}

// RecalculateResult reports a dividend-aware recomputation run.
type RecalculateResult struct {
	Success        bool     `json:"success"`
	Recalculated   int      `json:"recalculated"`
	DividendsFound int      `json:"dividends_found"`
	NewPoints      int      `json:"new_points"`
	Errors         []string `json:"errors"`
}

// RecalculateIndexWithDividends re-runs the daily computation forward
// from startDate (default: index inception) to today. dryRun reports
// the work without writing.
func (c *Calculator) RecalculateIndexWithDividends(ctx context.Context, indexID int64, startDate *time.Time, dryRun bool) (*RecalculateResult, error) {
	result := &RecalculateResult{Errors: []string{}}

	start := time.Time{}
	if startDate != nil {
		start = c.calendar.Normalize(*startDate)
	} else {
		earliest, err := c.history.GetEarliest(ctx, indexID)
		if err != nil {
			return nil, fmt.Errorf("load earliest point: %w", err)
		}
		if earliest == nil {
			result.Success = true
			return result, nil // 히스토리 없음
		}
		start = c.calendar.Normalize(earliest.Date)
	}

	today := c.calendar.Normalize(c.now())
	days := c.calendar.BusinessDaysBetween(start, today)

	if dryRun {
		result.Success = true
		result.Recalculated = len(days)
		result.DividendsFound = c.countDividendsInRange(ctx, indexID, start, today)
		return result, nil
	}

	for _, day := range days {
		point, itemErrs, err := c.computeDay(ctx, indexID, day, true)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.calendar.FormatDate(day), err))
			continue
		}
		result.Errors = append(result.Errors, itemErrs...)

		if err := c.history.Upsert(ctx, point); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: persist: %v", c.calendar.FormatDate(day), err))
			continue
		}

		result.Recalculated++
		result.NewPoints++
		result.DividendsFound += len(point.DividendsByTicker)
	}

	result.Success = len(result.Errors) == 0

	c.logger.WithFields(map[string]interface{}{
		"index_id":     indexID,
		"recalculated": result.Recalculated,
		"dividends":    result.DividendsFound,
		"errors":       len(result.Errors),
	}).Info("Recalculation complete")

	return result, nil
}

// countDividendsInRange counts dividend ex-dates falling within the
// range for tickers ever active during it (dry-run 통계용).
func (c *Calculator) countDividendsInRange(ctx context.Context, indexID int64, from, to time.Time) int {
	entries, err := c.compositions.ListByIndex(ctx, indexID)
	if err != nil {
		return 0
	}

	seen := make(map[string]bool)
	count := 0
	for _, e := range entries {
		if seen[e.Ticker] {
			continue
		}
		seen[e.Ticker] = true

		calendar, err := c.source.FetchDividendCalendar(ctx, e.Ticker)
		if err != nil {
			continue
		}
		for _, div := range calendar {
			exDate := c.calendar.Normalize(div.ExDate)
			if !exDate.Before(from) && !exDate.After(to) && e.ActiveOn(exDate) {
				count++
			}
		}
	}
	return count
}

// RegenerateResult reports a single-date patch run.
type RegenerateResult struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	RecalculatedDays int      `json:"recalculated_days"`
	Errors           []string `json:"errors"`
}

// RegenerateRebalanceForDate recomputes one date's point. With
// skipScreening the stored composition is used as-is: 가격 정정 패치
// 용도로 구성 이력은 건드리지 않는다. Without it, screening and a
// rebalance run first, then the point is recomputed.
func (c *Calculator) RegenerateRebalanceForDate(ctx context.Context, indexID int64, date time.Time, skipScreening bool) (*RegenerateResult, error) {
	result := &RegenerateResult{Errors: []string{}}
	date = c.calendar.Normalize(date)

	if !skipScreening {
		index, err := c.indexes.GetByID(ctx, indexID)
		if err != nil {
			return nil, fmt.Errorf("load index: %w", err)
		}
		if index == nil {
			return nil, fmt.Errorf("index %d not found", indexID)
		}

		candidates, err := c.screener.RunScreening(ctx, index.Methodology)
		if err != nil {
			return nil, fmt.Errorf("screening: %w", err)
		}
		if _, err := c.rebalancer.UpdateComposition(ctx, index, candidates, date, nil); err != nil {
			return nil, fmt.Errorf("rebalance: %w", err)
		}
	}

	written, err := c.UpdateIndexPoints(ctx, indexID, date, true, true)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Message = fmt.Sprintf("failed to recompute %s", c.calendar.FormatDate(date))
		return result, nil
	}

	result.Success = true
	if written {
		result.RecalculatedDays = 1
	}
	result.Message = fmt.Sprintf("recomputed %s", c.calendar.FormatDate(date))
	return result, nil
}

// PendingDividendsResult reports unreflected dividend ex-dates.
type PendingDividendsResult struct {
	HasPending       bool                        `json:"has_pending"`
	PendingDividends []contracts.PendingDividend `json:"pending_dividends"`
}

// CheckPendingDividends scans active constituents' dividend calendars
// for ex-dates after the last processed point (or unreflected on it).
// Read-only diagnostics; 자동 재계산 트리거는 호출자 몫.
func (c *Calculator) CheckPendingDividends(ctx context.Context, indexID int64) (*PendingDividendsResult, error) {
	result := &PendingDividendsResult{PendingDividends: []contracts.PendingDividend{}}

	latest, err := c.history.GetLatest(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load latest point: %w", err)
	}
	if latest == nil {
		return result, nil // 히스토리 없으면 반영 안 된 배당도 없음
	}
	lastDate := c.calendar.Normalize(latest.Date)
	today := c.calendar.Normalize(c.now())

	comps, err := c.compositions.GetActive(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load composition: %w", err)
	}

	for _, comp := range comps {
		calendar, err := c.source.FetchDividendCalendar(ctx, comp.Ticker)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", comp.Ticker).Warn("Dividend calendar fetch failed")
			continue
		}

		for _, div := range calendar {
			exDate := c.calendar.Normalize(div.ExDate)
			if exDate.After(today) || exDate.Before(lastDate) {
				continue
			}

			// 마지막 포인트 날짜의 배당은 반영 여부 확인
			if exDate.Equal(lastDate) {
				if _, reflected := latest.DividendsByTicker[comp.Ticker]; reflected {
					continue
				}
			}

			result.PendingDividends = append(result.PendingDividends, contracts.PendingDividend{
				Ticker: comp.Ticker,
				ExDate: exDate,
				Amount: div.Amount,
			})
		}
	}

	result.HasPending = len(result.PendingDividends) > 0
	return result, nil
}

// SnapshotResult is the most recent composition snapshot.
type SnapshotResult struct {
	Date             time.Time          `json:"date"`
	Snapshot         map[string]float64 `json:"snapshot"`
	ConstituentCount int                `json:"constituent_count"`
}

// GetLastSnapshot returns the weight map of the latest history point.
// (nil, nil) when the index has no history yet.
func (c *Calculator) GetLastSnapshot(ctx context.Context, indexID int64) (*SnapshotResult, error) {
	latest, err := c.history.GetLatest(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load latest point: %w", err)
	}
	if latest == nil {
		return nil, nil
	}

	return &SnapshotResult{
		Date:             latest.Date,
		Snapshot:         latest.Snapshot,
		ConstituentCount: len(latest.Snapshot),
	}, nil
}
