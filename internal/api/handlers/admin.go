package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/engine"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// AdminHandler is the operator surface
// ⭐ SSOT: 운영자 API 핸들러는 이 구조체에서만
type AdminHandler struct {
	engine *engine.Engine
	errorWriter
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(eng *engine.Engine, log *logger.Logger, secrets []string) *AdminHandler {
	return &AdminHandler{
		engine:      eng,
		errorWriter: errorWriter{logger: log, secrets: secrets},
	}
}

// GetUnsettled lists picks without a result, newest first
// GET /admin/unsettled
func (h *AdminHandler) GetUnsettled(w http.ResponseWriter, r *http.Request) {
	picks, err := h.engine.Store().GetUnsettled(r.Context())
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if picks == nil {
		picks = []contracts.Pick{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(picks),
		"picks": picks,
	})
}

// GetPick returns one pick with its result
// GET /admin/picks/{id}
func (h *AdminHandler) GetPick(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}

	pick, result, err := h.engine.Store().GetPickByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, contracts.PickWithResult{Pick: *pick, Result: result})
}

// SettleRequest is the body of POST /admin/settle
type SettleRequest struct {
	PickID string  `json:"pickId"`
	Result string  `json:"result"`
	Notes  *string `json:"notes,omitempty"`
}

// Settle records a pick's outcome
// POST /admin/settle
func (h *AdminHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, nil)
		return
	}

	id, err := parseID(req.PickID)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	outcome, err := contracts.ParseOutcome(req.Result)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}

	result, err := h.engine.Settle(r.Context(), id, outcome, req.Notes)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// RecomputeRequest is the body of POST /admin/recompute
type RecomputeRequest struct {
	Date string `json:"date,omitempty"`
}

// Recompute replaces the pick of a date (today by default)
// POST /admin/recompute
func (h *AdminHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, nil)
		return
	}

	var date contracts.Date
	if req.Date != "" {
		d, err := contracts.ParseDate(req.Date)
		if err != nil {
			h.fail(w, r, err, nil)
			return
		}
		date = d
	}

	res, err := h.engine.Recompute(r.Context(), date)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}

	body := map[string]interface{}{
		"success":  true,
		"status":   res.Status,
		"replaced": res.Replaced,
		"date":     res.Date.String(),
		"message":  res.Message,
	}
	if res.Status == engine.StatusGenerated {
		body["pick"] = res.Pick
	}
	respondJSON(w, http.StatusOK, body)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, contracts.Validation("parse_id", "pickId must be a UUID")
	}
	return id, nil
}
