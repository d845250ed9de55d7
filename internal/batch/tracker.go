// Package batch advances every index to today in short, resumable
// invocations. Progress is checkpointed after each run so a budget
// exhaustion or crash resumes from the next pending day.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/internal/engine"
	"github.com/wonny/helios/backend/pkg/logger"
)

// RunResult summarizes one tracker invocation.
type RunResult struct {
	IndicesTotal     int      `json:"indices_total"`
	IndicesProcessed int      `json:"indices_processed"`
	DaysProcessed    int      `json:"days_processed"`
	DaysTotal        int      `json:"days_total"`
	Errors           []string `json:"errors"`
	BudgetExhausted  bool     `json:"budget_exhausted"`
}

// Tracker orchestrates incremental daily advancement
// ⭐ SSOT: 배치 진행/체크포인트 관리는 여기서만
type Tracker struct {
	indexes      contracts.IndexRepository
	compositions contracts.CompositionRepository
	history      contracts.HistoryRepository
	checkpoints  contracts.CheckpointRepository
	calculator   *engine.Calculator
	screener     engine.Screener
	rebalancer   engine.Rebalancer
	calendar     *engine.Calendar
	logger       *logger.Logger

	budget time.Duration
	now    func() time.Time
}

// NewTracker creates a batch tracker
func NewTracker(
	indexes contracts.IndexRepository,
	compositions contracts.CompositionRepository,
	history contracts.HistoryRepository,
	checkpoints contracts.CheckpointRepository,
	calculator *engine.Calculator,
	screener engine.Screener,
	rebalancer engine.Rebalancer,
	calendar *engine.Calendar,
	log *logger.Logger,
	budget time.Duration,
) *Tracker {
	return &Tracker{
		indexes:      indexes,
		compositions: compositions,
		history:      history,
		checkpoints:  checkpoints,
		calculator:   calculator,
		screener:     screener,
		rebalancer:   rebalancer,
		calendar:     calendar,
		logger:       log,
		budget:       budget,
		now:          time.Now,
	}
}

// WithClock overrides the wall clock (테스트용)
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Run advances all indices toward today within the wall-clock budget.
// Per-day failures are recorded and the loop continues; a mid-run
// budget exhaustion stops gracefully and the next invocation resumes.
func (t *Tracker) Run(ctx context.Context) (*RunResult, error) {
	started := t.now()
	deadline := started.Add(t.budget)
	result := &RunResult{Errors: []string{}}

	indices, err := t.indexes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	result.IndicesTotal = len(indices)

	for _, index := range indices {
		if t.now().After(deadline) {
			result.BudgetExhausted = true
			break
		}

		processed, total, errs := t.advanceIndex(ctx, index, deadline)
		result.DaysProcessed += processed
		result.DaysTotal += total
		result.Errors = append(result.Errors, errs...)
		if processed == total {
			result.IndicesProcessed++
		} else {
			result.BudgetExhausted = true
		}

		t.saveCheckpoint(ctx, &index.ID, processed, total, errs)
	}

	t.saveCheckpoint(ctx, nil, result.DaysProcessed, result.DaysTotal, result.Errors)

	t.logger.WithFields(map[string]interface{}{
		"indices":   result.IndicesProcessed,
		"days":      result.DaysProcessed,
		"errors":    len(result.Errors),
		"exhausted": result.BudgetExhausted,
		"elapsed":   t.now().Sub(started).String(),
	}).Info("Batch run complete")

	return result, nil
}

// advanceIndex processes one index's pending days in strict
// chronological order. 하루의 계산은 전일 포인트에 의존한다.
func (t *Tracker) advanceIndex(ctx context.Context, index *contracts.IndexDefinition, deadline time.Time) (processed, total int, errs []string) {
	if err := t.ensureComposition(ctx, index); err != nil {
		return 0, 0, []string{fmt.Sprintf("index %d: bootstrap composition: %v", index.ID, err)}
	}

	pending, err := t.pendingDays(ctx, index)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("index %d: pending days: %v", index.ID, err)}
	}
	total = len(pending)

	for _, day := range pending {
		if t.now().After(deadline) {
			t.logger.WithFields(map[string]interface{}{
				"index_id":  index.ID,
				"remaining": total - processed,
			}).Warn("Budget exhausted, stopping mid-index")
			return processed, total, errs
		}

		if _, err := t.calculator.UpdateIndexPoints(ctx, index.ID, day, false, false); err != nil {
			errs = append(errs, fmt.Sprintf("index %d %s: %v", index.ID, t.calendar.FormatDate(day), err))
			// 실패한 날도 전진 (head-of-line 블로킹 방지)
		}
		processed++
	}

	return processed, total, errs
}

// pendingDays computes the business days the index still needs, from
// the day after its last point (or its creation date) through today.
func (t *Tracker) pendingDays(ctx context.Context, index *contracts.IndexDefinition) ([]time.Time, error) {
	today := t.calendar.Normalize(t.now())

	latest, err := t.history.GetLatest(ctx, index.ID)
	if err != nil {
		return nil, err
	}

	var from time.Time
	if latest == nil {
		from = t.calendar.Normalize(index.CreatedAt)
	} else {
		from = t.calendar.Normalize(latest.Date).AddDate(0, 0, 1)
	}
	if from.After(today) {
		return nil, nil
	}

	return t.calendar.BusinessDaysBetween(from, today), nil
}

// ensureComposition bootstraps a first screening/rebalance for indices
// that have never been composed yet.
func (t *Tracker) ensureComposition(ctx context.Context, index *contracts.IndexDefinition) error {
	active, err := t.compositions.GetActive(ctx, index.ID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return nil
	}

	candidates, err := t.screener.RunScreening(ctx, index.Methodology)
	if err != nil {
		return fmt.Errorf("screening: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("screening produced no candidates")
	}

	date := t.calendar.Normalize(index.CreatedAt)
	if _, err := t.rebalancer.UpdateComposition(ctx, index, candidates, date, nil); err != nil {
		return fmt.Errorf("initial rebalance: %w", err)
	}

	t.logger.WithFields(map[string]interface{}{
		"index_id":     index.ID,
		"constituents": len(candidates),
	}).Info("Bootstrapped initial composition")

	return nil
}

func (t *Tracker) saveCheckpoint(ctx context.Context, indexID *int64, processed, total int, errs []string) {
	cp := &contracts.CronCheckpoint{
		JobType:   contracts.JobTypeIndexUpdate,
		IndexID:   indexID,
		Processed: processed,
		Total:     total,
		Errors:    errs,
	}
	if err := t.checkpoints.Upsert(ctx, cp); err != nil {
		t.logger.WithError(err).Warn("Checkpoint save failed")
	}
}
