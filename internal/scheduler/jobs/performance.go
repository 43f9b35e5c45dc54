package jobs

import (
	"context"
	"fmt"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// PerformanceRefreshJob refreshes the performance projection in case an
// inline refresh after a write was missed
type PerformanceRefreshJob struct {
	store    contracts.PickStore
	schedule string
	logger   *logger.Logger
}

// NewPerformanceRefreshJob creates a new refresh job
func NewPerformanceRefreshJob(store contracts.PickStore, schedule string, log *logger.Logger) *PerformanceRefreshJob {
	if schedule == "" {
		schedule = "0 */15 * * * *"
	}
	return &PerformanceRefreshJob{
		store:    store,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *PerformanceRefreshJob) Name() string {
	return "performance_refresh"
}

// Schedule returns the cron schedule (every 15 minutes by default)
func (j *PerformanceRefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes the projection
func (j *PerformanceRefreshJob) Run(ctx context.Context) error {
	if err := j.store.RefreshPerformance(ctx); err != nil {
		return fmt.Errorf("refresh performance: %w", err)
	}
	j.logger.Debug("Performance projection refreshed")
	return nil
}
