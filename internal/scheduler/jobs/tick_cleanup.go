package jobs

import (
	"context"

	"github.com/wonny/helios/backend/internal/marketdata/tickcache"
	"github.com/wonny/helios/backend/pkg/logger"
)

// TickCleanupJob evicts stale entries from the live tick cache
type TickCleanupJob struct {
	ticks  *tickcache.Cache
	logger *logger.Logger
}

// NewTickCleanupJob creates a new tick cleanup job
func NewTickCleanupJob(ticks *tickcache.Cache, log *logger.Logger) *TickCleanupJob {
	return &TickCleanupJob{
		ticks:  ticks,
		logger: log,
	}
}

// Name returns the job name
func (j *TickCleanupJob) Name() string {
	return "tick_cache_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *TickCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run evicts stale ticks
func (j *TickCleanupJob) Run(ctx context.Context) error {
	removed := j.ticks.Cleanup()
	if removed > 0 {
		j.logger.WithField("removed", removed).Debug("Tick cache cleanup done")
	}
	return nil
}
