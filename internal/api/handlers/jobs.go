package handlers

import (
	"net/http"
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/engine"
	"github.com/KevinGoltermann/moneyline-sub000/internal/recommender"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// JobsHandler is the external-cron entry point
// ⭐ SSOT: 외부 cron 트리거 API는 이 구조체에서만
type JobsHandler struct {
	engine      *engine.Engine
	environment string
	timeout     time.Duration
	errorWriter
}

// NewJobsHandler creates a new jobs handler. timeout bounds the
// recommender call of a triggered run.
func NewJobsHandler(eng *engine.Engine, environment string, timeout time.Duration, log *logger.Logger, secrets []string) *JobsHandler {
	return &JobsHandler{
		engine:      eng,
		environment: environment,
		timeout:     timeout,
		errorWriter: errorWriter{logger: log, secrets: secrets},
	}
}

// TriggerResponse is the body of a successful trigger
type TriggerResponse struct {
	Success         bool            `json:"success"`
	Status          engine.Status   `json:"status"`
	Message         string          `json:"message"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	PickGenerated   *contracts.Pick `json:"pick_generated,omitempty"`
}

// TriggerDailyPick generates today's pick
// POST /jobs/daily-pick
func (h *JobsHandler) TriggerDailyPick(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	if h.timeout > 0 {
		ctx = recommender.WithTimeout(ctx, h.timeout)
	}

	res, err := h.engine.Generate(ctx, h.engine.Today())
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		h.failWith(w, r, err, map[string]interface{}{
			"execution_time_ms": elapsed,
			"failure":           engine.ErrorLabel(err),
		}, triggerCode)
		return
	}

	out := TriggerResponse{
		Success:         true,
		Status:          res.Status,
		Message:         res.Message,
		ExecutionTimeMS: elapsed,
	}
	if res.Status == engine.StatusGenerated {
		out.PickGenerated = res.Pick
	}
	respondJSON(w, http.StatusOK, out)
}

// GetDailyPickStatus is a health snapshot for the trigger
// GET /jobs/daily-pick
func (h *JobsHandler) GetDailyPickStatus(w http.ResponseWriter, r *http.Request) {
	today := h.engine.Today()
	exists, err := h.engine.Store().PickExists(r.Context(), today)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"today_date":        today.String(),
		"pick_exists_today": exists,
		"timezone":          h.engine.Location().String(),
		"environment":       h.environment,
	})
}
