package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만
//
// Read paths return (nil, nil) when the row does not exist: absence is
// an expected condition, not an error.

// IndexRepository manages index definitions.
type IndexRepository interface {
	GetByID(ctx context.Context, id int64) (*IndexDefinition, error)
	GetBySymbol(ctx context.Context, symbol string) (*IndexDefinition, error)
	List(ctx context.Context) ([]*IndexDefinition, error)
	Create(ctx context.Context, def *IndexDefinition) error
}

// CompositionRepository manages constituent membership spans.
type CompositionRepository interface {
	// GetActive returns entries with exit_date IS NULL.
	GetActive(ctx context.Context, indexID int64) ([]*CompositionEntry, error)
	// GetActiveOn returns entries whose span covers the given date.
	GetActiveOn(ctx context.Context, indexID int64, date time.Time) ([]*CompositionEntry, error)
	// ListByIndex returns all spans, entered first.
	ListByIndex(ctx context.Context, indexID int64) ([]*CompositionEntry, error)
	// ApplyRebalance applies one rebalance diff atomically:
	// opens, closes, weight updates, and log rows commit together or
	// not at all.
	ApplyRebalance(ctx context.Context, diff *RebalanceDiff) error
}

// HistoryRepository manages index history points, keyed by (index, date).
type HistoryRepository interface {
	GetByDate(ctx context.Context, indexID int64, date time.Time) (*HistoryPoint, error)
	// GetPriorTo returns the most recent point strictly before date.
	GetPriorTo(ctx context.Context, indexID int64, date time.Time) (*HistoryPoint, error)
	GetLatest(ctx context.Context, indexID int64) (*HistoryPoint, error)
	GetEarliest(ctx context.Context, indexID int64) (*HistoryPoint, error)
	// ListRange returns points in [from, to], ascending by date.
	ListRange(ctx context.Context, indexID int64, from, to time.Time) ([]*HistoryPoint, error)
	// ListAll returns every point of the index, ascending by date.
	ListAll(ctx context.Context, indexID int64) ([]*HistoryPoint, error)
	// Upsert overwrites by (index_id, date). 재계산은 중복이 아니라 덮어쓰기.
	Upsert(ctx context.Context, point *HistoryPoint) error
}

// RebalanceLogRepository reads the rebalance audit trail. Rows are
// appended inside CompositionRepository.ApplyRebalance so log and
// membership changes commit in one transaction.
type RebalanceLogRepository interface {
	ListByIndex(ctx context.Context, indexID int64) ([]*RebalanceLogEntry, error)
	ListByIndexAndDate(ctx context.Context, indexID int64, date time.Time) ([]*RebalanceLogEntry, error)
}

// CheckpointRepository manages batch progress markers.
type CheckpointRepository interface {
	Get(ctx context.Context, jobType string, indexID *int64) (*CronCheckpoint, error)
	Upsert(ctx context.Context, cp *CronCheckpoint) error
}

// FundamentalsRepository reads the stored fundamentals snapshot.
type FundamentalsRepository interface {
	GetByTicker(ctx context.Context, ticker string) (*Fundamentals, error)
	ListAll(ctx context.Context) ([]*Fundamentals, error)
}
