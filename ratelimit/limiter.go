// Package ratelimit implements the per-identifier, per-action sliding
// window request governor. State is in-memory; a multi-instance
// deployment would need a shared store behind the same interface.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"osint-market/config"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Result of a single Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is positive only when the request was rejected.
	RetryAfter time.Duration
}

// Limiter counts requests per (action, identifier) key. The clock is
// injected so window behavior is testable without real timers.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	configs map[string]config.RateLimit
	now     func() time.Time
}

func NewLimiter(configs map[string]config.RateLimit) *Limiter {
	if configs == nil {
		configs = config.DefaultRateLimits()
	}
	return &Limiter{
		entries: make(map[string]*entry),
		configs: configs,
		now:     time.Now,
	}
}

// NewLimiterWithClock is the test constructor.
func NewLimiterWithClock(configs map[string]config.RateLimit, now func() time.Time) *Limiter {
	l := NewLimiter(configs)
	l.now = now
	return l
}

// Check counts one request and reports whether it is allowed. Unknown
// actions fall back to the api-general limit.
func (l *Limiter) Check(identifier, action string) Result {
	cfg, ok := l.configs[action]
	if !ok {
		cfg = l.configs["api-general"]
	}
	if cfg.MaxRequests == 0 {
		cfg = config.RateLimit{Window: time.Minute, MaxRequests: 100}
	}

	key := fmt.Sprintf("%s:%s", action, identifier)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || e.resetAt.Before(now) {
		e = &entry{resetAt: now.Add(cfg.Window)}
		l.entries[key] = e
	}
	e.count++

	allowed := e.count <= cfg.MaxRequests
	remaining := cfg.MaxRequests - e.count
	if remaining < 0 {
		remaining = 0
	}

	res := Result{Allowed: allowed, Remaining: remaining, ResetAt: e.resetAt}
	if !allowed {
		res.RetryAfter = e.resetAt.Sub(now)
	}
	return res
}

// Evict removes entries whose window has elapsed, bounding memory.
// Scheduled periodically by the maintenance scheduler.
func (l *Limiter) Evict() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, e := range l.entries {
		if e.resetAt.Before(now) {
			delete(l.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len reports tracked key count (diagnostics and tests).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
