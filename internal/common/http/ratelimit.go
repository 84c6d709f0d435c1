package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/garaad/community/internal/common/constants"
	"github.com/garaad/community/internal/observability/metrics"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	name     string
}

func NewRateLimiter(name string, requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		name:     name,
	}
}

// RunCleanup drops idle buckets until ctx is cancelled.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = constants.RateLimitCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictIdle(now.Add(-interval))
		}
	}
}

func (rl *RateLimiter) evictIdle(before time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.limiters {
		if e.lastSeen.Before(before) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()

	return e.limiter.Allow()
}

func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(GetClientIP(r)) {
				metrics.RateLimitBlocked.WithLabelValues(rl.name).Inc()
				WriteErrorEnvelope(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil, TraceIDFromContext(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
