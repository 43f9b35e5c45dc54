package handlers

import (
	"net/http"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/publicread"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// PublicHandler serves the anonymous read endpoints
type PublicHandler struct {
	svc *publicread.Service
	errorWriter
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(svc *publicread.Service, log *logger.Logger, secrets []string) *PublicHandler {
	return &PublicHandler{
		svc:         svc,
		errorWriter: errorWriter{logger: log, secrets: secrets},
	}
}

// GetToday returns the pick of a date with headline stats
// GET /today?date=YYYY-MM-DD
func (h *PublicHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	var date contracts.Date
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := contracts.ParseDate(raw)
		if err != nil {
			h.fail(w, r, err, nil)
			return
		}
		date = d
	}

	res, err := h.svc.Today(r.Context(), date)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetPerformance returns stats, a history page and optional chart data
// GET /performance?limit=&offset=&include_chart=
func (h *PublicHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	q, err := publicread.ParsePerformanceQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}

	res, err := h.svc.Performance(r.Context(), q)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
