package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/helios/backend/internal/batch"
	"github.com/wonny/helios/backend/pkg/logger"
)

// IndexUpdateJob advances all indices to today after the market close
// ⭐ SSOT: 일일 지수 갱신 스케줄은 이 Job에서만
type IndexUpdateJob struct {
	tracker *batch.Tracker
	logger  *logger.Logger
}

// NewIndexUpdateJob creates a new index update job
func NewIndexUpdateJob(tracker *batch.Tracker, log *logger.Logger) *IndexUpdateJob {
	return &IndexUpdateJob{
		tracker: tracker,
		logger:  log,
	}
}

// Name returns the job name
func (j *IndexUpdateJob) Name() string {
	return "index_update"
}

// Schedule returns the cron schedule (16:10 KST on weekdays, after the
// 15:30 close settles)
func (j *IndexUpdateJob) Schedule() string {
	return "0 10 16 * * 1-5"
}

// Run executes one batch advancement
func (j *IndexUpdateJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled index update")

	result, err := j.tracker.Run(ctx)
	if err != nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"indices": result.IndicesProcessed,
		"days":    result.DaysProcessed,
		"errors":  len(result.Errors),
	}).Info("Scheduled index update finished")

	// 예산 소진은 실패가 아님, 다음 주기에 이어서 진행
	if result.BudgetExhausted {
		j.logger.Warn("Index update stopped on budget, will resume next run")
	}

	return nil
}
