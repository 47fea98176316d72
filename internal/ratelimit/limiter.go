// Package ratelimit implements a fixed-window request counter per client address.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultLimit         = 10
	DefaultWindow        = 60 * time.Second
	DefaultSweepInterval = 5 * time.Minute
)

type bucket struct {
	count       int
	windowStart time.Time
}

// Result is the outcome of one Check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1 when rejected.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter allows at most limit requests per key in each window.
type Limiter struct {
	limit         int
	window        time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// New creates a limiter. Non-positive values select the defaults.
func New(limit int, window, sweepInterval time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Limiter{
		limit:         limit,
		window:        window,
		sweepInterval: sweepInterval,
		now:           time.Now,
		buckets:       make(map[string]*bucket),
	}
}

// Check counts one request for key and reports whether it is allowed.
func (l *Limiter) Check(key string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastSweep.IsZero() {
		l.lastSweep = now
	}
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) > l.window {
		l.buckets[key] = &bucket{count: 1, windowStart: now}
		return Result{Allowed: true, Remaining: l.limit - 1}
	}

	if b.count >= l.limit {
		return Result{
			Allowed:    false,
			RetryAfter: l.window - now.Sub(b.windowStart),
		}
	}
	b.count++
	return Result{Allowed: true, Remaining: l.limit - b.count}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Limit returns the per-window ceiling.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) > 2*l.window {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
