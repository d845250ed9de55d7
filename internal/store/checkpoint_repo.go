package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/backend/internal/contracts"
)

// CheckpointRepository implements contracts.CheckpointRepository.
// One row per (job_type, index_id); index_id NULL은 전체 작업 진행상황.
type CheckpointRepository struct {
	pool *pgxpool.Pool
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(pool *pgxpool.Pool) *CheckpointRepository {
	return &CheckpointRepository{pool: pool}
}

// Get retrieves the checkpoint for a job. (nil, nil) when no run recorded.
func (r *CheckpointRepository) Get(ctx context.Context, jobType string, indexID *int64) (*contracts.CronCheckpoint, error) {
	// NULL-safe 비교: index_id IS NOT DISTINCT FROM $2
	query := `
		SELECT job_type, index_id, processed_count, total_count, errors, updated_at
		FROM idx.cron_checkpoints
		WHERE job_type = $1 AND index_id IS NOT DISTINCT FROM $2
	`

	var cp contracts.CronCheckpoint
	err := r.pool.QueryRow(ctx, query, jobType, indexID).Scan(
		&cp.JobType, &cp.IndexID, &cp.Processed, &cp.Total, &cp.Errors, &cp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Upsert overwrites the checkpoint for the job
func (r *CheckpointRepository) Upsert(ctx context.Context, cp *contracts.CronCheckpoint) error {
	// Partial unique indexes cover the NULL index_id case, so the
	// conflict target is expressed per-row via two statements.
	if cp.IndexID == nil {
		query := `
			INSERT INTO idx.cron_checkpoints (job_type, index_id, processed_count, total_count, errors, updated_at)
			VALUES ($1, NULL, $2, $3, $4, NOW())
			ON CONFLICT (job_type) WHERE index_id IS NULL DO UPDATE SET
				processed_count = EXCLUDED.processed_count,
				total_count = EXCLUDED.total_count,
				errors = EXCLUDED.errors,
				updated_at = NOW()
		`
		_, err := r.pool.Exec(ctx, query, cp.JobType, cp.Processed, cp.Total, cp.Errors)
		return err
	}

	query := `
		INSERT INTO idx.cron_checkpoints (job_type, index_id, processed_count, total_count, errors, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (job_type, index_id) WHERE index_id IS NOT NULL DO UPDATE SET
			processed_count = EXCLUDED.processed_count,
			total_count = EXCLUDED.total_count,
			errors = EXCLUDED.errors,
			updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, cp.JobType, *cp.IndexID, cp.Processed, cp.Total, cp.Errors)
	return err
}
