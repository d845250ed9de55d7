package contracts

import "time"

// ⭐ SSOT: 구성 종목 및 리밸런스 타입은 여기서만

// CompositionEntry is one constituent's membership span in an index.
// Invariant: 한 (indexID, ticker)에 대해 exit_date IS NULL 행은 최대 1개.
type CompositionEntry struct {
	ID        int64      `json:"id"`
	IndexID   int64      `json:"index_id"`
	Ticker    string     `json:"ticker"`
	Weight    float64    `json:"weight"`
	EntryDate time.Time  `json:"entry_date"`
	ExitDate  *time.Time `json:"exit_date,omitempty"` // nil = 현재 편입 중
}

// Active reports whether the entry is currently in the index.
func (e *CompositionEntry) Active() bool {
	return e.ExitDate == nil
}

// ActiveOn reports whether the entry was in the index on the given date.
func (e *CompositionEntry) ActiveOn(date time.Time) bool {
	if date.Before(e.EntryDate) {
		return false
	}
	return e.ExitDate == nil || date.Before(*e.ExitDate)
}

// RebalanceAction is the kind of composition change.
type RebalanceAction string

const (
	ActionEntry RebalanceAction = "ENTRY"
	ActionExit  RebalanceAction = "EXIT"
)

// RebalanceLogEntry is one append-only audit record of a composition
// change. Never mutated after creation.
type RebalanceLogEntry struct {
	ID      int64           `json:"id"`
	IndexID int64           `json:"index_id"`
	Date    time.Time       `json:"date"`
	Action  RebalanceAction `json:"action"`
	Ticker  string          `json:"ticker"`
	Reason  string          `json:"reason"`
}

// RebalanceDiff is the full set of changes of one rebalance, applied
// atomically by the composition repository.
type RebalanceDiff struct {
	IndexID int64
	Date    time.Time

	// Entries to open (weight already normalized).
	Opens []CompositionEntry
	// Tickers whose active entry gets exit_date = Date.
	Closes []string
	// Surviving tickers whose weight is re-normalized in place.
	WeightUpdates map[string]float64
	// One log row per open/close.
	Logs []RebalanceLogEntry
}

// Empty reports whether the diff changes nothing.
func (d *RebalanceDiff) Empty() bool {
	return len(d.Opens) == 0 && len(d.Closes) == 0 && len(d.WeightUpdates) == 0
}
