package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/backend/internal/contracts"
)

// IndexRepository implements contracts.IndexRepository
// ⭐ SSOT: 지수 정의 저장소는 여기서만
type IndexRepository struct {
	pool *pgxpool.Pool
}

// NewIndexRepository creates a new index definition repository
func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{pool: pool}
}

// GetByID retrieves an index definition by id. Returns (nil, nil) when absent.
func (r *IndexRepository) GetByID(ctx context.Context, id int64) (*contracts.IndexDefinition, error) {
	query := `
		SELECT id, symbol, name, methodology, created_at
		FROM idx.definitions
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

// GetBySymbol retrieves an index definition by its symbol.
func (r *IndexRepository) GetBySymbol(ctx context.Context, symbol string) (*contracts.IndexDefinition, error) {
	query := `
		SELECT id, symbol, name, methodology, created_at
		FROM idx.definitions
		WHERE symbol = $1
	`
	return r.scanOne(ctx, query, symbol)
}

func (r *IndexRepository) scanOne(ctx context.Context, query string, arg any) (*contracts.IndexDefinition, error) {
	var (
		def        contracts.IndexDefinition
		methodJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&def.ID, &def.Symbol, &def.Name, &methodJSON, &def.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(methodJSON, &def.Methodology); err != nil {
		return nil, fmt.Errorf("decode methodology for index %s: %w", def.Symbol, err)
	}
	return &def, nil
}

// List retrieves all index definitions ordered by id
func (r *IndexRepository) List(ctx context.Context) ([]*contracts.IndexDefinition, error) {
	query := `
		SELECT id, symbol, name, methodology, created_at
		FROM idx.definitions
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*contracts.IndexDefinition
	for rows.Next() {
		var (
			def        contracts.IndexDefinition
			methodJSON []byte
		)
		if err := rows.Scan(&def.ID, &def.Symbol, &def.Name, &methodJSON, &def.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(methodJSON, &def.Methodology); err != nil {
			return nil, fmt.Errorf("decode methodology for index %s: %w", def.Symbol, err)
		}
		defs = append(defs, &def)
	}
	return defs, rows.Err()
}

// Create inserts a new index definition; the assigned id and creation
// time are written back into def. methodology는 JSONB로 저장.
func (r *IndexRepository) Create(ctx context.Context, def *contracts.IndexDefinition) error {
	methodJSON, err := json.Marshal(def.Methodology)
	if err != nil {
		return fmt.Errorf("encode methodology: %w", err)
	}

	query := `
		INSERT INTO idx.definitions (symbol, name, methodology, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`

	return r.pool.QueryRow(ctx, query, def.Symbol, def.Name, methodJSON).Scan(
		&def.ID, &def.CreatedAt,
	)
}
