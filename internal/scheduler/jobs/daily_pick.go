package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/internal/engine"
	"github.com/KevinGoltermann/moneyline-sub000/internal/recommender"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// DailyPickJob generates today's pick
// ⭐ SSOT: 일일 pick 생성 스케줄은 이 Job에서만
type DailyPickJob struct {
	engine   *engine.Engine
	schedule string
	timeout  time.Duration
	logger   *logger.Logger
}

// NewDailyPickJob creates the daily pick job. timeout bounds the
// recommender call on this path.
func NewDailyPickJob(eng *engine.Engine, schedule string, timeout time.Duration, log *logger.Logger) *DailyPickJob {
	return &DailyPickJob{
		engine:   eng,
		schedule: schedule,
		timeout:  timeout,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyPickJob) Name() string {
	return "daily_pick"
}

// Schedule returns the cron schedule (default 09:00 operating time)
func (j *DailyPickJob) Schedule() string {
	return j.schedule
}

// Run generates the pick for the current date
func (j *DailyPickJob) Run(ctx context.Context) error {
	today := j.engine.Today()
	if j.timeout > 0 {
		ctx = recommender.WithTimeout(ctx, j.timeout)
	}

	res, err := j.engine.Generate(ctx, today)
	if err != nil {
		j.logger.WithFields(map[string]interface{}{
			"date":  today.String(),
			"error": engine.ErrorLabel(err),
		}).Warn("Daily pick generation failed")
		return fmt.Errorf("daily pick %s: %w", today, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":   today.String(),
		"status": string(res.Status),
	}).Info(res.Message)
	return nil
}
