package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/internal/engine"
	"github.com/wonny/helios/backend/pkg/logger"
)

// DividendCheckJob scans every index for unreflected dividends after
// the daily update and triggers a recalculation when any are found
// ⭐ SSOT: 배당 반영 점검 스케줄은 이 Job에서만
type DividendCheckJob struct {
	indexes     contracts.IndexRepository
	checkpoints contracts.CheckpointRepository
	calculator  *engine.Calculator
	logger      *logger.Logger
}

// NewDividendCheckJob creates a new dividend check job
func NewDividendCheckJob(
	indexes contracts.IndexRepository,
	checkpoints contracts.CheckpointRepository,
	calculator *engine.Calculator,
	log *logger.Logger,
) *DividendCheckJob {
	return &DividendCheckJob{
		indexes:     indexes,
		checkpoints: checkpoints,
		calculator:  calculator,
		logger:      log,
	}
}

// Name returns the job name
func (j *DividendCheckJob) Name() string {
	return "dividend_check"
}

// Schedule returns the cron schedule (17:00 KST on weekdays, after the
// index update job)
func (j *DividendCheckJob) Schedule() string {
	return "0 0 17 * * 1-5"
}

// Run checks each index and recalculates from the earliest pending
// ex-date. One index's failure never aborts the rest.
func (j *DividendCheckJob) Run(ctx context.Context) error {
	indices, err := j.indexes.List(ctx)
	if err != nil {
		return fmt.Errorf("list indices: %w", err)
	}

	var errs []string
	processed := 0

	for _, index := range indices {
		pending, err := j.calculator.CheckPendingDividends(ctx, index.ID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("index %d: check: %v", index.ID, err))
			continue
		}
		processed++

		if !pending.HasPending {
			continue
		}

		j.logger.WithFields(map[string]interface{}{
			"index_id": index.ID,
			"pending":  len(pending.PendingDividends),
		}).Info("Unreflected dividends found, recalculating")

		// 가장 이른 미반영 ex-date부터 재계산
		start := pending.PendingDividends[0].ExDate
		for _, d := range pending.PendingDividends {
			if d.ExDate.Before(start) {
				start = d.ExDate
			}
		}

		result, err := j.calculator.RecalculateIndexWithDividends(ctx, index.ID, &start, false)
		if err != nil {
			errs = append(errs, fmt.Sprintf("index %d: recalculate: %v", index.ID, err))
			continue
		}
		errs = append(errs, result.Errors...)
	}

	cp := &contracts.CronCheckpoint{
		JobType:   contracts.JobTypeDividendCheck,
		Processed: processed,
		Total:     len(indices),
		Errors:    errs,
	}
	if err := j.checkpoints.Upsert(ctx, cp); err != nil {
		j.logger.WithError(err).Warn("Checkpoint save failed")
	}

	if len(errs) > 0 {
		j.logger.WithField("errors", len(errs)).Warn("Dividend check finished with errors")
	}
	return nil
}
