package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter tracks the upstream API's rate-limit state. One Limiter is shared
// by every worker and by the metadata client, so a single 429 stalls all
// requests until the server-announced reset instant passes.
//
// Construct one per run; tests inject their own clock.
type Limiter struct {
	mu      sync.Mutex
	resetAt time.Time

	fallback time.Duration // used when the reset hint is missing or malformed

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source and timer, for tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(l *Limiter) {
		l.now = now
		l.after = after
	}
}

// WithFallbackDelay sets the wait applied when a 429 carries no usable hint.
func WithFallbackDelay(d time.Duration) Option {
	return func(l *Limiter) { l.fallback = d }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		fallback: 20 * time.Second,
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the shared reset instant has passed, or until ctx is
// done. Concurrent callers all suspend on the same instant; if the instant
// moves forward while waiting (another worker observed a later 429), the
// wait extends to the new value.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		delay := l.resetAt.Sub(l.now())
		l.mu.Unlock()

		if delay <= 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.after(delay):
			// re-check: resetAt may have advanced while sleeping
		}
	}
}

// Observe inspects a response and, on a 429, advances the shared reset
// instant to the server's hint. Updates are monotonic: the instant never
// moves backward, so two near-simultaneous 429s converge on the later hint.
// It reports whether the response was rate limited.
func (l *Limiter) Observe(status int, header http.Header) bool {
	if status != http.StatusTooManyRequests {
		return false
	}

	delay := l.fallback
	if raw := header.Get("RateLimit-Reset"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			delay = time.Duration(secs) * time.Second
		}
	}

	l.mu.Lock()
	candidate := l.now().Add(delay)
	if candidate.After(l.resetAt) {
		l.resetAt = candidate
	}
	until := l.resetAt
	l.mu.Unlock()

	slog.Warn("rate limit reached", "reset_in", delay, "reset_at", until)
	return true
}

// ResetAt returns the current shared reset instant (zero if clear).
func (l *Limiter) ResetAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetAt
}
