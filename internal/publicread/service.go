// Package publicread serves the anonymous read contract: today's pick and
// the performance projection, with a shared response cache.
package publicread

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
	"github.com/KevinGoltermann/moneyline-sub000/internal/engine"
	"github.com/KevinGoltermann/moneyline-sub000/internal/projection"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/redis"
)

// Page limits
const (
	DefaultLimit = 30
	MaxLimit     = 200
)

// Summary is the headline performance attached to today's pick
type Summary struct {
	WinRate    float64 `json:"win_rate"`
	Record     string  `json:"record"`
	TotalPicks int     `json:"total_picks"`
}

// TodayResponse is the body of GET /today
type TodayResponse struct {
	Pick        *contracts.Pick `json:"pick"`
	Performance Summary         `json:"performance"`
}

// PerformanceResponse is the body of GET /performance
type PerformanceResponse struct {
	Stats     contracts.Stats        `json:"stats"`
	History   []contracts.HistoryRow `json:"history"`
	ChartData []contracts.ChartPoint `json:"chart_data,omitempty"`
}

// PerformanceQuery is a validated performance page request
type PerformanceQuery struct {
	Limit        int
	Offset       int
	IncludeChart bool
}

// ParsePerformanceQuery reads limit, offset and include_chart
func ParsePerformanceQuery(q url.Values) (PerformanceQuery, error) {
	const op = "publicread.query"
	out := PerformanceQuery{Limit: DefaultLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return out, contracts.Validation(op, fmt.Sprintf("limit must be an integer in [1,%d]", MaxLimit))
		}
		out.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return out, contracts.Validation(op, "offset must be a non-negative integer")
		}
		out.Offset = n
	}
	if raw := q.Get("include_chart"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return out, contracts.Validation(op, "include_chart must be a boolean")
		}
		out.IncludeChart = b
	}
	return out, nil
}

// Service answers public reads
// ⭐ SSOT: 공개 조회는 여기서만
type Service struct {
	store  contracts.PickStore
	cache  *redis.Cache
	ttl    time.Duration
	loc    *time.Location
	logger *logger.Logger

	invalidateTimeout time.Duration
}

// invalidateTimeout bounds the synchronous cache flush done inside engine
// event delivery
const invalidateTimeout = 500 * time.Millisecond

// NewService creates a read service. cache may be nil.
func NewService(store contracts.PickStore, cache *redis.Cache, ttl time.Duration, loc *time.Location, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = redis.TTLPublic
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, cache: cache, ttl: ttl, loc: loc, logger: log, invalidateTimeout: invalidateTimeout}
}

// Today returns the pick for date (today when zero) and the headline stats
func (s *Service) Today(ctx context.Context, date contracts.Date) (*TodayResponse, error) {
	if date.IsZero() {
		date = contracts.Today(s.loc)
	}

	var out TodayResponse
	err := s.cached(ctx, redis.TodayKey(date.String()), &out, func() (interface{}, error) {
		pick, err := s.store.GetPick(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("get pick %s: %w", date, err)
		}
		stats, err := s.store.GetStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("get stats: %w", err)
		}
		return TodayResponse{
			Pick: pick,
			Performance: Summary{
				WinRate:    stats.WinRate,
				Record:     stats.Record(),
				TotalPicks: stats.TotalPicks,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Performance returns stats and one page of history
func (s *Service) Performance(ctx context.Context, q PerformanceQuery) (*PerformanceResponse, error) {
	var out PerformanceResponse
	err := s.cached(ctx, redis.PerformanceKey(q.Limit, q.Offset, q.IncludeChart), &out, func() (interface{}, error) {
		stats, err := s.store.GetStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("get stats: %w", err)
		}
		history, err := s.store.GetHistory(ctx, q.Limit, q.Offset)
		if err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}
		if history == nil {
			history = []contracts.HistoryRow{}
		}
		resp := PerformanceResponse{Stats: *stats, History: history}
		if q.IncludeChart {
			resp.ChartData = projection.Chart(history)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) cached(ctx context.Context, key string, dest interface{}, fn func() (interface{}, error)) error {
	if s.cache == nil {
		v, err := fn()
		if err != nil {
			return err
		}
		return assign(dest, v)
	}
	return s.cache.GetOrSet(ctx, key, dest, s.ttl, fn)
}

func assign(dest, v interface{}) error {
	switch d := dest.(type) {
	case *TodayResponse:
		*d = v.(TodayResponse)
	case *PerformanceResponse:
		*d = v.(PerformanceResponse)
	default:
		return fmt.Errorf("unsupported cache target %T", dest)
	}
	return nil
}

// Invalidate drops every cached public response
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	n, err := s.cache.DeletePattern(ctx, "*")
	if err != nil {
		s.logger.WithError(err).Warn("Public cache invalidation failed")
		return
	}
	s.logger.WithField("keys", n).Debug("Public cache invalidated")
}

// Listener invalidates the cache on every committed pick event. The flush
// runs inline so a read after a write never sees the old pick; it gives up
// after invalidateTimeout and the entries then age out with the TTL.
func (s *Service) Listener() engine.Listener {
	return func(ev engine.PickEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), s.invalidateTimeout)
		defer cancel()
		s.Invalidate(ctx)
	}
}
