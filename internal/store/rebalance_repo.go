package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/backend/internal/contracts"
)

// RebalanceLogRepository implements contracts.RebalanceLogRepository.
// Rows are written by CompositionRepository.ApplyRebalance inside the
// rebalance transaction; this repository only reads them.
type RebalanceLogRepository struct {
	pool *pgxpool.Pool
}

// NewRebalanceLogRepository creates a new rebalance log repository
func NewRebalanceLogRepository(pool *pgxpool.Pool) *RebalanceLogRepository {
	return &RebalanceLogRepository{pool: pool}
}

// ListByIndex retrieves the full rebalance history of an index
func (r *RebalanceLogRepository) ListByIndex(ctx context.Context, indexID int64) ([]*contracts.RebalanceLogEntry, error) {
	query := `
		SELECT id, index_id, rebalance_date, ticker, action, reason
		FROM idx.rebalance_log
		WHERE index_id = $1
		ORDER BY rebalance_date ASC, ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, indexID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRebalanceLogs(rows)
}

// ListByIndexAndDate retrieves log entries for one rebalance date
func (r *RebalanceLogRepository) ListByIndexAndDate(ctx context.Context, indexID int64, date time.Time) ([]*contracts.RebalanceLogEntry, error) {
	query := `
		SELECT id, index_id, rebalance_date, ticker, action, reason
		FROM idx.rebalance_log
		WHERE index_id = $1 AND rebalance_date = $2
		ORDER BY ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, indexID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRebalanceLogs(rows)
}

func scanRebalanceLogs(rows pgx.Rows) ([]*contracts.RebalanceLogEntry, error) {
	var entries []*contracts.RebalanceLogEntry
	for rows.Next() {
		var e contracts.RebalanceLogEntry
		if err := rows.Scan(&e.ID, &e.IndexID, &e.Date, &e.Ticker, &e.Action, &e.Reason); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
