package api

import (
	"context"
	"sync"
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/pkg/redis"
)

// RateLimiter admits or rejects a request for a client key.
// Returns (allowed, remaining, error).
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, int, error)
}

// NewRateLimiter picks the Redis sliding window when Redis is enabled and
// the in-process window otherwise
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) RateLimiter {
	if client != nil && client.Enabled() {
		return &redisLimiter{rl: redis.NewRateLimiter(client, "moneyline"), limit: limit, window: window}
	}
	return newMemoryLimiter(limit, window)
}

type redisLimiter struct {
	rl     *redis.RateLimiter
	limit  int
	window time.Duration
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	return l.rl.Allow(ctx, redis.RateLimitConfig{Key: key, Limit: l.limit, Window: l.window})
}

// memoryLimiter is a per-process sliding window log. Counts are not shared
// between replicas.
type memoryLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
	calls  int
}

func newMemoryLimiter(limit int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *memoryLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	l.calls++
	if l.calls%1000 == 0 {
		l.sweep(cutoff)
	}

	hits := trim(l.hits[key], cutoff)
	if len(hits) >= l.limit {
		l.hits[key] = hits
		return false, 0, nil
	}
	hits = append(hits, now)
	l.hits[key] = hits
	return true, l.limit - len(hits), nil
}

// sweep drops idle keys so the map stays bounded
func (l *memoryLimiter) sweep(cutoff time.Time) {
	for k, v := range l.hits {
		if v = trim(v, cutoff); len(v) == 0 {
			delete(l.hits, k)
		} else {
			l.hits[k] = v
		}
	}
}

func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
