package contracts

import (
	"math"
	"time"
)

// BaseValue is the point level every index starts from at inception.
const BaseValue = 100.0

// HistoryPoint is one business day's official index level, with
// per-constituent attribution. Unique per (IndexID, Date); recomputation
// overwrites the row (idempotent upsert).
// ⭐ SSOT: 지수 히스토리 포인트 타입은 여기서만
type HistoryPoint struct {
	IndexID     int64     `json:"index_id"`
	Date        time.Time `json:"date"`
	Point       float64   `json:"point"`
	DailyChange float64   `json:"daily_change"` // percent

	// DividendsReceived is cumulative currency since inception.
	DividendsReceived float64 `json:"dividends_received"`
	// DividendsByTicker is this day's dividend amounts (currency units).
	DividendsByTicker map[string]float64 `json:"dividends_by_ticker"`
	// Contributions is this day's per-ticker contribution to DailyChange
	// (percent units); sums to DailyChange within tolerance.
	Contributions map[string]float64 `json:"daily_contributions_by_ticker"`
	// Snapshot is the weight map used for this day's computation.
	Snapshot map[string]float64 `json:"composition_snapshot"`
}

// AttributionDiag reports whether summed contributions reconcile with
// the daily change. A failed check is a diagnostic, not an error:
// the point is persisted either way.
type AttributionDiag struct {
	IsValid    bool    `json:"is_valid"`
	Difference float64 `json:"difference"` // percent points
}

// CheckAttribution compares sum(Contributions) against DailyChange
// under the given tolerance (percent units).
func (p *HistoryPoint) CheckAttribution(tolerance float64) AttributionDiag {
	var sum float64
	for _, c := range p.Contributions {
		sum += c
	}

	diff := sum - p.DailyChange
	return AttributionDiag{
		IsValid:    math.Abs(diff) < tolerance,
		Difference: diff,
	}
}

// Dividend is one ex-date/amount pair from the dividend calendar.
type Dividend struct {
	Ticker string    `json:"ticker"`
	ExDate time.Time `json:"ex_date"`
	Amount float64   `json:"amount"` // per share, currency units
}

// PendingDividend is a calendar entry not yet reflected in any
// HistoryPoint. It is the diagnostics output of the pending-dividend scan.
type PendingDividend struct {
	Ticker string    `json:"ticker"`
	ExDate time.Time `json:"ex_date"`
	Amount float64   `json:"amount"`
}
