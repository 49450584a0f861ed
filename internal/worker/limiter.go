package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate is a token bucket: sustained requests per second plus burst.
// A non-positive PerSecond means unlimited.
type Rate struct {
	PerSecond float64
	Burst     int
}

// PerHour returns a Rate of n requests per hour
func PerHour(n int, burst int) Rate {
	return Rate{PerSecond: float64(n) / time.Hour.Seconds(), Burst: burst}
}

// PerMinute returns a Rate of n requests per minute
func PerMinute(n int, burst int) Rate {
	return Rate{PerSecond: float64(n) / time.Minute.Seconds(), Burst: burst}
}

func (r Rate) limiter() *rate.Limiter {
	if r.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, max(r.Burst, 1))
	}
	return rate.NewLimiter(rate.Limit(r.PerSecond), max(r.Burst, 1))
}

// Limiter keeps one token bucket per upstream API.
// Upstreams without an explicit quota share the default Rate, each with its own bucket.
type Limiter struct {
	mu       sync.Mutex
	fallback Rate
	quotas   map[string]Rate
	buckets  map[string]*rate.Limiter
}

// NewLimiter creates a limiter whose upstreams default to fallback
func NewLimiter(fallback Rate) *Limiter {
	if fallback.Burst <= 0 {
		fallback.Burst = 5
	}
	return &Limiter{
		fallback: fallback,
		quotas:   make(map[string]Rate),
		buckets:  make(map[string]*rate.Limiter),
	}
}

// SetQuota gives upstream its own rate, replacing any bucket it already had
func (l *Limiter) SetQuota(upstream string, r Rate) {
	if r.Burst <= 0 {
		r.Burst = l.fallback.Burst
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quotas[upstream] = r
	l.buckets[upstream] = r.limiter()
}

// Quota returns the rate that applies to upstream
func (l *Limiter) Quota(upstream string) Rate {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.quotas[upstream]; ok {
		return r
	}
	return l.fallback
}

// Wait blocks until upstream has a token or ctx is done.
// It fails at once when the next token falls after ctx's deadline.
func (l *Limiter) Wait(ctx context.Context, upstream string) error {
	return l.bucket(upstream).Wait(ctx)
}

// Allow takes a token if one is available without waiting
func (l *Limiter) Allow(upstream string) bool {
	return l.bucket(upstream).Allow()
}

func (l *Limiter) bucket(upstream string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[upstream]
	if !ok {
		b = l.fallback.limiter()
		l.buckets[upstream] = b
	}
	return b
}
