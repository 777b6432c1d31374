package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

var _ ports.RateLimiter = (*MemoryLimiter)(nil)

type counter struct {
	count int
	start time.Time
}

// MemoryLimiter is a fixed-window limiter kept in process memory. A window
// opens on the first call for a key and lasts the configured duration.
type MemoryLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[string]*counter
}

type MemoryOption func(*MemoryLimiter)

func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

func NewMemoryLimiter(limit int, window time.Duration, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (ports.RateDecision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || now.Sub(c.start) >= l.window {
		c = &counter{start: now}
		l.counters[key] = c
	}
	c.count++

	decision := ports.RateDecision{
		Allowed: c.count <= l.limit,
		Limit:   l.limit,
		ResetAt: c.start.Add(l.window),
	}
	if decision.Allowed {
		decision.Remaining = l.limit - c.count
	}
	return decision, nil
}

// Sweep drops counters whose window has elapsed and returns how many were
// removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.counters {
		if now.Sub(c.start) >= l.window {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle counters every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
