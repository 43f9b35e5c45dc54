package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// Error codes
const (
	CodeValidation     = "VALIDATION"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeRateLimited    = "RATE_LIMITED"
	CodePickNotFound   = "PICK_NOT_FOUND"
	CodeAlreadySettled = "ALREADY_SETTLED"
	CodeDuplicateDate  = "DUPLICATE_DATE"
	CodeConfig         = "CONFIG_ERROR"
	CodeDatabase       = "DATABASE_ERROR"
	CodeExternalAPI    = "EXTERNAL_API_ERROR"
	CodeRecommender    = "RECOMMENDER_ERROR"
	CodeGameNotFound   = "GAME_NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// StatusFor maps an error kind to an HTTP status and error code
// ⭐ SSOT: 에러 → HTTP 매핑은 여기서만
func StatusFor(kind contracts.Kind) (int, string) {
	switch kind {
	case contracts.KindValidation:
		return http.StatusBadRequest, CodeValidation
	case contracts.KindUnauthorized:
		return http.StatusUnauthorized, CodeUnauthorized
	case contracts.KindForbidden:
		return http.StatusForbidden, CodeForbidden
	case contracts.KindRateLimited:
		return http.StatusTooManyRequests, CodeRateLimited
	case contracts.KindNotFound:
		return http.StatusNotFound, CodePickNotFound
	case contracts.KindAlreadySettled:
		return http.StatusConflict, CodeAlreadySettled
	case contracts.KindDuplicateDate:
		return http.StatusConflict, CodeDuplicateDate
	case contracts.KindFeedUnavailable:
		return http.StatusInternalServerError, CodeExternalAPI
	case contracts.KindRecommenderUnavailable, contracts.KindInvalidRecommendation:
		return http.StatusInternalServerError, CodeRecommender
	case contracts.KindSelectionUnmatched:
		return http.StatusInternalServerError, CodeGameNotFound
	case contracts.KindStoreTransient:
		return http.StatusInternalServerError, CodeDatabase
	case contracts.KindConfig:
		return http.StatusInternalServerError, CodeConfig
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// triggerCodes is the closed set of codes the daily-pick trigger reports.
// The feed and recommender adapters always return typed errors, so any
// other server-side code on that route comes out of the store.
var triggerCodes = map[string]bool{
	CodeConfig:       true,
	CodeDatabase:     true,
	CodeExternalAPI:  true,
	CodeRecommender:  true,
	CodeGameNotFound: true,
}

func triggerCode(status int, code string) string {
	if status >= http.StatusInternalServerError && !triggerCodes[code] {
		return CodeDatabase
	}
	return code
}

// errorWriter turns errors into scrubbed JSON responses
type errorWriter struct {
	logger  *logger.Logger
	secrets []string
}

// fail writes err with its mapped status. Internal errors never leak their
// message; everything else is redacted.
func (e errorWriter) fail(w http.ResponseWriter, r *http.Request, err error, extra map[string]interface{}) {
	e.failWith(w, r, err, extra, nil)
}

// failWith is fail with the code passed through remap
func (e errorWriter) failWith(w http.ResponseWriter, r *http.Request, err error, extra map[string]interface{}, remap func(int, string) string) {
	kind := contracts.KindOf(err)
	status, code := StatusFor(kind)
	if remap != nil {
		code = remap(status, code)
	}

	msg := "Internal server error"
	if kind != contracts.KindInternal {
		msg = logger.Redact(err.Error(), e.secrets)
	}

	log := e.logger.WithFields(map[string]interface{}{
		"path": r.URL.Path,
		"kind": string(kind),
		"code": code,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Debug("Request rejected")
	}

	body := map[string]interface{}{
		"success": false,
		"error":   msg,
		"code":    code,
	}
	if contracts.IsRetryable(err) {
		body["retryable"] = true
	}
	for k, v := range extra {
		body[k] = v
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes a bare error body; middleware uses it before a
// handler runs
func RespondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// decodeJSON reads a JSON body. An empty body leaves dest untouched.
func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(dest)
	if err != nil && !errors.Is(err, io.EOF) {
		return contracts.Validation("decode_body", "invalid JSON body")
	}
	return nil
}
