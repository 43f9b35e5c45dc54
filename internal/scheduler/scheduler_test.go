package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/metrics"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	errs     []error // returned in order, nil afterwards
	calls    atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := int(j.calls.Add(1))
	if n <= len(j.errs) {
		return j.errs[n-1]
	}
	return nil
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(logger.Nop(), metrics.New(), Options{Location: time.UTC, MaxRetries: 3, RetryDelay: time.Millisecond})
	t.Cleanup(s.Stop)
	return s
}

func transient() error {
	return contracts.E(contracts.KindFeedUnavailable, "test", "odds api down")
}

func TestRunNow_RetriesRetryableFailures(t *testing.T) {
	s := newTestScheduler(t)
	job := &fakeJob{name: "daily_pick", schedule: "0 0 9 * * *", errs: []error{transient(), transient()}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "daily_pick")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.EqualValues(t, 3, job.calls.Load())
}

func TestRunNow_GivesUpAfterMaxRetries(t *testing.T) {
	s := newTestScheduler(t)
	job := &fakeJob{name: "daily_pick", schedule: "0 0 9 * * *",
		errs: []error{transient(), transient(), transient(), transient(), transient()}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "daily_pick")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 4, res.Attempts)
	assert.Contains(t, res.Error, "odds api down")
}

func TestRunNow_FatalFailureNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"selection unmatched", contracts.E(contracts.KindSelectionUnmatched, "test", "no game")},
		{"untyped", errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(t)
			job := &fakeJob{name: "daily_pick", schedule: "0 0 9 * * *", errs: []error{tt.err}}
			require.NoError(t, s.AddJob(job))

			res, err := s.RunNow(context.Background(), "daily_pick")
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, 1, res.Attempts)
		})
	}
}

func TestRunNow_CancelledContextStopsRetries(t *testing.T) {
	s := New(logger.Nop(), nil, Options{MaxRetries: 3, RetryDelay: time.Hour})
	t.Cleanup(s.Stop)
	job := &fakeJob{name: "daily_pick", schedule: "0 0 9 * * *", errs: []error{transient(), transient()}}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.RunNow(ctx, "daily_pick")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.Error, "retry aborted")
}

func TestStop_AbortsRetrySleep(t *testing.T) {
	s := New(logger.Nop(), nil, Options{Location: time.UTC, MaxRetries: 3, RetryDelay: 10 * time.Second})
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = transient()
	}
	job := &fakeJob{name: "daily_pick", schedule: "* * * * * *", errs: errs}
	require.NoError(t, s.AddJob(job))

	s.Start()
	require.Eventually(t, func() bool { return job.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	start := time.Now()
	s.Stop()
	assert.Less(t, time.Since(start), 2*time.Second)

	results, err := s.GetJobHistory("daily_pick")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Contains(t, results[0].Error, "retry aborted")
}

func TestJobStats(t *testing.T) {
	s := newTestScheduler(t)
	job := &fakeJob{name: "performance_refresh", schedule: "0 */15 * * * *",
		errs: []error{contracts.E(contracts.KindInternal, "test", "view missing")}}
	require.NoError(t, s.AddJob(job))

	_, err := s.RunNow(context.Background(), "performance_refresh")
	require.NoError(t, err)
	_, err = s.RunNow(context.Background(), "performance_refresh")
	require.NoError(t, err)

	stats := s.GetJobStats()["performance_refresh"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 0.5, stats.SuccessRate)
	assert.NotNil(t, stats.LastSuccess)
	assert.NotNil(t, stats.LastFailure)
	assert.Contains(t, stats.LastError, "view missing")

	history, err := s.GetJobHistory("performance_refresh")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Success)
	assert.True(t, history[1].Success)
}

func TestAddRemoveJobs(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "@hourly"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "0 0 9 * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "0 0 9 * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "not a schedule"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("b"))
	assert.Error(t, s.RemoveJob("b"))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())

	_, err := s.RunNow(context.Background(), "missing")
	assert.Error(t, err)
}

func TestNextRunUsesLocation(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	s := New(logger.Nop(), nil, DefaultOptions(denver))
	require.NoError(t, s.AddJob(&fakeJob{name: "daily_pick", schedule: "0 0 9 * * *"}))
	s.Start()
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool {
		next, ok := s.NextRun("daily_pick")
		return ok && !next.IsZero()
	}, time.Second, 10*time.Millisecond)

	next, _ := s.NextRun("daily_pick")
	local := next.In(denver)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 0, local.Minute())
}

func TestJobHistoryLimit(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Equal(t, 0.5, h.GetSuccessRate())
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}

func TestJobHistoryStats(t *testing.T) {
	base := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)
	h := &JobHistory{}
	h.AddResult(JobResult{StartTime: base, Success: true})
	h.AddResult(JobResult{StartTime: base.Add(time.Hour), Success: false, Error: "feed down"})
	h.AddResult(JobResult{StartTime: base.Add(2 * time.Hour), Success: true})

	st := h.Stats("daily_pick", "0 0 9 * * *")
	assert.Equal(t, 3, st.TotalRuns)
	assert.Equal(t, 2, st.SuccessCount)
	assert.Equal(t, 1, st.FailureCount)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, base.Add(2*time.Hour), *st.LastRun)
	assert.Equal(t, base.Add(2*time.Hour), *st.LastSuccess)
	assert.Equal(t, base.Add(time.Hour), *st.LastFailure)
	assert.Equal(t, "feed down", st.LastError)
}
