package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/backend/internal/contracts"
)

// CompositionRepository implements contracts.CompositionRepository
// ⭐ SSOT: 구성종목 저장소는 여기서만
type CompositionRepository struct {
	pool *pgxpool.Pool
}

// NewCompositionRepository creates a new composition repository
func NewCompositionRepository(pool *pgxpool.Pool) *CompositionRepository {
	return &CompositionRepository{pool: pool}
}

const compositionColumns = `id, index_id, ticker, weight, entry_date, exit_date`

// GetActive retrieves entries with no exit date (current composition)
func (r *CompositionRepository) GetActive(ctx context.Context, indexID int64) ([]*contracts.CompositionEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.composition_entries
		WHERE index_id = $1 AND exit_date IS NULL
		ORDER BY ticker ASC
	`, compositionColumns)

	rows, err := r.pool.Query(ctx, query, indexID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompositions(rows)
}

// GetActiveOn retrieves entries that were part of the index on the given date.
// 과거 날짜 재계산에 필수. 현재 구성이 아니라 당시 구성을 사용해야 함.
func (r *CompositionRepository) GetActiveOn(ctx context.Context, indexID int64, date time.Time) ([]*contracts.CompositionEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.composition_entries
		WHERE index_id = $1
		  AND entry_date <= $2
		  AND (exit_date IS NULL OR exit_date > $2)
		ORDER BY ticker ASC
	`, compositionColumns)

	rows, err := r.pool.Query(ctx, query, indexID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompositions(rows)
}

// ListByIndex retrieves the full membership history for an index
func (r *CompositionRepository) ListByIndex(ctx context.Context, indexID int64) ([]*contracts.CompositionEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.composition_entries
		WHERE index_id = $1
		ORDER BY entry_date ASC, ticker ASC
	`, compositionColumns)

	rows, err := r.pool.Query(ctx, query, indexID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompositions(rows)
}

// ApplyRebalance applies a rebalance diff atomically: closes exiting
// entries, opens entering ones, updates surviving weights, and appends
// the rebalance log, all in one transaction. 부분 적용 금지.
func (r *CompositionRepository) ApplyRebalance(ctx context.Context, diff *contracts.RebalanceDiff) error {
	if diff.Empty() {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rebalance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ticker := range diff.Closes {
		_, err := tx.Exec(ctx, `
			UPDATE idx.composition_entries
			SET exit_date = $3
			WHERE index_id = $1 AND ticker = $2 AND exit_date IS NULL
		`, diff.IndexID, ticker, diff.Date)
		if err != nil {
			return fmt.Errorf("close entry %s: %w", ticker, err)
		}
	}

	for _, open := range diff.Opens {
		_, err := tx.Exec(ctx, `
			INSERT INTO idx.composition_entries (index_id, ticker, weight, entry_date)
			VALUES ($1, $2, $3, $4)
		`, diff.IndexID, open.Ticker, open.Weight, diff.Date)
		if err != nil {
			return fmt.Errorf("open entry %s: %w", open.Ticker, err)
		}
	}

	for ticker, weight := range diff.WeightUpdates {
		_, err := tx.Exec(ctx, `
			UPDATE idx.composition_entries
			SET weight = $3
			WHERE index_id = $1 AND ticker = $2 AND exit_date IS NULL
		`, diff.IndexID, ticker, weight)
		if err != nil {
			return fmt.Errorf("update weight %s: %w", ticker, err)
		}
	}

	for _, log := range diff.Logs {
		_, err := tx.Exec(ctx, `
			INSERT INTO idx.rebalance_log (index_id, rebalance_date, ticker, action, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, log.IndexID, log.Date, log.Ticker, log.Action, log.Reason)
		if err != nil {
			return fmt.Errorf("append rebalance log %s: %w", log.Ticker, err)
		}
	}

	return tx.Commit(ctx)
}

func scanCompositions(rows pgx.Rows) ([]*contracts.CompositionEntry, error) {
	var entries []*contracts.CompositionEntry
	for rows.Next() {
		var e contracts.CompositionEntry
		if err := rows.Scan(&e.ID, &e.IndexID, &e.Ticker, &e.Weight, &e.EntryDate, &e.ExitDate); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
