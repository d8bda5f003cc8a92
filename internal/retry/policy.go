package retry

import (
	"context"
	"time"

	errpkg "github.com/coursefetch/coursefetch/internal/errors"
)

// Policy decides whether a failed attempt is retried and how long to wait
// before the next one. Rate-limited failures are not delayed here — the
// shared rate limiter owns that wait — so their backoff is zero.
type Policy struct {
	baseDelay   time.Duration
	maxBackoff  time.Duration
	maxAttempts int

	sleep func(context.Context, time.Duration) error
}

// Option configures a Policy.
type Option func(*Policy)

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Policy) { p.sleep = sleep }
}

func New(baseDelay, maxBackoff time.Duration, maxAttempts int, opts ...Option) *Policy {
	p := &Policy{
		baseDelay:   baseDelay,
		maxBackoff:  maxBackoff,
		maxAttempts: maxAttempts,
		sleep:       sleepWithContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the attempt bound.
func (p *Policy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry reports whether the given failure, observed on the given
// attempt number (1-based), warrants another attempt.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	return errpkg.IsRetryable(err)
}

// Delay returns the backoff before the attempt following the given one:
// baseDelay doubled per prior attempt, capped at maxBackoff. Rate-limited
// failures return zero — the caller waits on the rate limiter instead.
func (p *Policy) Delay(err error, attempt int) time.Duration {
	if errpkg.KindOf(err) == errpkg.KindRateLimited {
		return 0
	}

	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxBackoff {
			return p.maxBackoff
		}
	}
	if delay > p.maxBackoff {
		return p.maxBackoff
	}
	return delay
}

// Backoff sleeps for the computed delay. Only the calling worker blocks;
// the sleep ends early if ctx is cancelled.
func (p *Policy) Backoff(ctx context.Context, err error, attempt int) error {
	delay := p.Delay(err, attempt)
	if delay <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, delay)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
