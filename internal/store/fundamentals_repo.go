package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/backend/internal/contracts"
)

// FundamentalsRepository implements contracts.FundamentalsRepository.
// 스크리닝 입력. 별도 수집 파이프라인이 채우는 스냅샷 테이블을 읽는다.
type FundamentalsRepository struct {
	pool *pgxpool.Pool
}

// NewFundamentalsRepository creates a new fundamentals repository
func NewFundamentalsRepository(pool *pgxpool.Pool) *FundamentalsRepository {
	return &FundamentalsRepository{pool: pool}
}

const fundamentalsColumns = `ticker, name, per, pbr, roe, debt_ratio,
	quality_score, avg_traded_value, updated_at`

// GetByTicker retrieves the snapshot for one ticker. (nil, nil) when absent.
func (r *FundamentalsRepository) GetByTicker(ctx context.Context, ticker string) (*contracts.Fundamentals, error) {
	query := `
		SELECT ` + fundamentalsColumns + `
		FROM data.fundamentals
		WHERE ticker = $1
	`

	var f contracts.Fundamentals
	err := r.pool.QueryRow(ctx, query, ticker).Scan(
		&f.Ticker, &f.Name, &f.PER, &f.PBR, &f.ROE, &f.DebtRatio,
		&f.QualityScore, &f.AvgTradedValue, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListAll retrieves the entire screening universe
func (r *FundamentalsRepository) ListAll(ctx context.Context) ([]*contracts.Fundamentals, error) {
	query := `
		SELECT ` + fundamentalsColumns + `
		FROM data.fundamentals
		ORDER BY ticker ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*contracts.Fundamentals
	for rows.Next() {
		var f contracts.Fundamentals
		err := rows.Scan(
			&f.Ticker, &f.Name, &f.PER, &f.PBR, &f.ROE, &f.DebtRatio,
			&f.QualityScore, &f.AvgTradedValue, &f.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		all = append(all, &f)
	}
	return all, rows.Err()
}
