package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/backend/internal/contracts"
)

// HistoryRepository implements contracts.HistoryRepository
// ⭐ SSOT: 지수 히스토리 저장소는 여기서만
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

const historyColumns = `index_id, point_date, point, daily_change,
	dividends_received, dividends_by_ticker, contributions, snapshot`

// GetByDate retrieves the point for a specific date. (nil, nil) when absent.
func (r *HistoryRepository) GetByDate(ctx context.Context, indexID int64, date time.Time) (*contracts.HistoryPoint, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.history_points
		WHERE index_id = $1 AND point_date = $2
	`, historyColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, indexID, date))
}

// GetPriorTo retrieves the latest point strictly before the given date.
// 전일 포인트 조회. 휴장일/누락일을 건너뛰기 위해 부등호 사용.
func (r *HistoryRepository) GetPriorTo(ctx context.Context, indexID int64, date time.Time) (*contracts.HistoryPoint, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.history_points
		WHERE index_id = $1 AND point_date < $2
		ORDER BY point_date DESC
		LIMIT 1
	`, historyColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, indexID, date))
}

// GetLatest retrieves the most recent point of the index
func (r *HistoryRepository) GetLatest(ctx context.Context, indexID int64) (*contracts.HistoryPoint, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.history_points
		WHERE index_id = $1
		ORDER BY point_date DESC
		LIMIT 1
	`, historyColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, indexID))
}

// GetEarliest retrieves the first (inception) point of the index
func (r *HistoryRepository) GetEarliest(ctx context.Context, indexID int64) (*contracts.HistoryPoint, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.history_points
		WHERE index_id = $1
		ORDER BY point_date ASC
		LIMIT 1
	`, historyColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, indexID))
}

// ListRange retrieves points within [from, to], ascending
func (r *HistoryRepository) ListRange(ctx context.Context, indexID int64, from, to time.Time) ([]*contracts.HistoryPoint, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.history_points
		WHERE index_id = $1 AND point_date BETWEEN $2 AND $3
		ORDER BY point_date ASC
	`, historyColumns)

	rows, err := r.pool.Query(ctx, query, indexID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// ListAll retrieves the full history of the index, ascending
func (r *HistoryRepository) ListAll(ctx context.Context, indexID int64) ([]*contracts.HistoryPoint, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM idx.history_points
		WHERE index_id = $1
		ORDER BY point_date ASC
	`, historyColumns)

	rows, err := r.pool.Query(ctx, query, indexID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// Upsert writes a point, overwriting any existing row for the same
// (index_id, point_date). 재계산 = 덮어쓰기, 중복행 금지.
func (r *HistoryRepository) Upsert(ctx context.Context, point *contracts.HistoryPoint) error {
	divsJSON, err := json.Marshal(point.DividendsByTicker)
	if err != nil {
		return fmt.Errorf("encode dividends_by_ticker: %w", err)
	}
	contribJSON, err := json.Marshal(point.Contributions)
	if err != nil {
		return fmt.Errorf("encode contributions: %w", err)
	}
	snapJSON, err := json.Marshal(point.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	query := `
		INSERT INTO idx.history_points
			(index_id, point_date, point, daily_change,
			 dividends_received, dividends_by_ticker, contributions, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (index_id, point_date) DO UPDATE SET
			point = EXCLUDED.point,
			daily_change = EXCLUDED.daily_change,
			dividends_received = EXCLUDED.dividends_received,
			dividends_by_ticker = EXCLUDED.dividends_by_ticker,
			contributions = EXCLUDED.contributions,
			snapshot = EXCLUDED.snapshot
	`

	_, err = r.pool.Exec(ctx, query,
		point.IndexID, point.Date, point.Point, point.DailyChange,
		point.DividendsReceived, divsJSON, contribJSON, snapJSON,
	)
	return err
}

func (r *HistoryRepository) scanOne(row pgx.Row) (*contracts.HistoryPoint, error) {
	p, err := scanHistoryPoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *HistoryRepository) scanMany(rows pgx.Rows) ([]*contracts.HistoryPoint, error) {
	var points []*contracts.HistoryPoint
	for rows.Next() {
		p, err := scanHistoryPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func scanHistoryPoint(row pgx.Row) (*contracts.HistoryPoint, error) {
	var (
		p                               contracts.HistoryPoint
		divsJSON, contribJSON, snapJSON []byte
	)
	err := row.Scan(
		&p.IndexID, &p.Date, &p.Point, &p.DailyChange,
		&p.DividendsReceived, &divsJSON, &contribJSON, &snapJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(divsJSON, &p.DividendsByTicker); err != nil {
		return nil, fmt.Errorf("decode dividends_by_ticker: %w", err)
	}
	if err := json.Unmarshal(contribJSON, &p.Contributions); err != nil {
		return nil, fmt.Errorf("decode contributions: %w", err)
	}
	if err := json.Unmarshal(snapJSON, &p.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &p, nil
}
