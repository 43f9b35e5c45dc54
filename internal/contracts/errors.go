package contracts

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so each layer can decide how to surface it.
// ⭐ SSOT: 에러 분류는 여기서만 정의
type Kind string

const (
	KindValidation             Kind = "validation"
	KindUnauthorized           Kind = "unauthorized"
	KindForbidden              Kind = "forbidden"
	KindRateLimited            Kind = "rate_limited"
	KindDuplicateDate          Kind = "duplicate_date"
	KindNotFound               Kind = "not_found"
	KindAlreadySettled         Kind = "already_settled"
	KindFeedUnavailable        Kind = "feed_unavailable"
	KindRecommenderUnavailable Kind = "recommender_unavailable"
	KindInvalidRecommendation  Kind = "invalid_recommendation"
	KindNoViablePick           Kind = "no_viable_pick"
	KindSelectionUnmatched     Kind = "selection_unmatched"
	KindStoreTransient         Kind = "store_transient"
	KindConfig                 Kind = "config"
	KindInternal               Kind = "internal"
)

// Error is the typed error passed between layers
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "store.insert_pick"
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a later attempt may succeed
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindFeedUnavailable, KindRecommenderUnavailable, KindStoreTransient:
		return true
	}
	return false
}

// E builds an Error without a cause
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap attaches a kind and operation to err
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation is shorthand for a validation failure
func Validation(op, msg string) *Error {
	return E(KindValidation, op, msg)
}

// NotFound is shorthand for a missing entity
func NotFound(op, msg string) *Error {
	return E(KindNotFound, op, msg)
}

// KindOf extracts the Kind of err. Untyped errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
