package scheduler

import (
	"context"
	"time"
)

// Job is one unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Schedule is a six-field cron spec (seconds first), evaluated in the
	// scheduler's timezone: "0 0 9 * * *" is 09:00 local every day.
	Schedule() string

	// Run does the work once. The scheduler re-runs it only when the
	// returned error is retryable (contracts.IsRetryable).
	Run(ctx context.Context) error
}

// JobResult records one run, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

const historyLimit = 100

// JobHistory keeps the most recent historyLimit runs of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a run, dropping the oldest past the limit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - historyLimit; over > 0 {
		h.Results = append(h.Results[:0], h.Results[over:]...)
	}
}

// GetLatestResults copies out the newest n runs
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	n = min(n, len(h.Results))
	if n <= 0 {
		return []JobResult{}
	}
	return append([]JobResult(nil), h.Results[len(h.Results)-n:]...)
}

// FailureCount counts failed runs still in history
func (h *JobHistory) FailureCount() int {
	n := 0
	for _, r := range h.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// GetSuccessRate is successes over kept runs, 0 with no runs
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	return float64(len(h.Results)-h.FailureCount()) / float64(len(h.Results))
}

// Stats summarizes the kept runs of a job
func (h *JobHistory) Stats(name, schedule string) JobStats {
	st := JobStats{
		JobName:      name,
		Schedule:     schedule,
		TotalRuns:    len(h.Results),
		FailureCount: h.FailureCount(),
		SuccessRate:  h.GetSuccessRate(),
	}
	st.SuccessCount = st.TotalRuns - st.FailureCount

	// newest first; each pointer is set by the most recent matching run
	for i := len(h.Results) - 1; i >= 0; i-- {
		r := h.Results[i]
		at := r.StartTime
		if st.LastRun == nil {
			st.LastRun = &at
		}
		switch {
		case r.Success && st.LastSuccess == nil:
			st.LastSuccess = &at
		case !r.Success && st.LastFailure == nil:
			st.LastFailure = &at
			st.LastError = r.Error
		}
	}
	return st
}

// JobStats is the per-job summary printed by `scheduler status`
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}
