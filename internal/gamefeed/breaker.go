package gamefeed

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/KevinGoltermann/moneyline-sub000/internal/metrics"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// Breaker thresholds shared by every upstream
const (
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// newBreaker builds the circuit breaker guarding one upstream
func newBreaker[T any](name string, log *logger.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one half-open probe
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"upstream": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("Circuit breaker state changed")
			m.BreakerOpen(name, to != gobreaker.StateClosed)
		},
	})
}

// isOpen reports whether err came from a breaker refusing the call
func isOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func upstreamResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isOpen(err):
		return "rejected"
	default:
		return "error"
	}
}
