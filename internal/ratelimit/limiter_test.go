package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances its own time by the requested duration whenever a
// timer fires, so waits complete instantly while total waited time is still
// observable.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	waited time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waited += d
	fired := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- fired
	return ch
}

func (c *fakeClock) totalWaited() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waited
}

func header(reset string) http.Header {
	h := http.Header{}
	if reset != "" {
		h.Set("RateLimit-Reset", reset)
	}
	return h
}

func TestLimiter_ObserveIgnoresNon429(t *testing.T) {
	l := New()

	limited := l.Observe(http.StatusOK, header("30"))

	assert.False(t, limited)
	assert.True(t, l.ResetAt().IsZero())
}

func TestLimiter_ObserveParsesResetHint(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now, clock.After))

	limited := l.Observe(http.StatusTooManyRequests, header("30"))

	assert.True(t, limited)
	assert.Equal(t, clock.Now().Add(30*time.Second), l.ResetAt())
}

func TestLimiter_ObserveFallbackOnMissingHint(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now, clock.After), WithFallbackDelay(7*time.Second))

	l.Observe(http.StatusTooManyRequests, header(""))

	assert.Equal(t, clock.Now().Add(7*time.Second), l.ResetAt())
}

func TestLimiter_ObserveFallbackOnMalformedHint(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now, clock.After), WithFallbackDelay(7*time.Second))

	l.Observe(http.StatusTooManyRequests, header("soon"))

	assert.Equal(t, clock.Now().Add(7*time.Second), l.ResetAt())
}

func TestLimiter_ObserveIsMonotonic(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now, clock.After))

	l.Observe(http.StatusTooManyRequests, header("3"))
	later := l.ResetAt()

	// an earlier hint must not move the reset instant backward
	l.Observe(http.StatusTooManyRequests, header("1"))

	assert.Equal(t, later, l.ResetAt())
}

func TestLimiter_WaitReturnsImmediatelyWhenClear(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now, clock.After))

	require.NoError(t, l.Wait(context.Background()))
	assert.Zero(t, clock.totalWaited())
}

func TestLimiter_WaitHonorsLaterOfTwoHints(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now, clock.After))

	// two workers hit 429 near-simultaneously with different hints
	l.Observe(http.StatusTooManyRequests, header("1"))
	l.Observe(http.StatusTooManyRequests, header("3"))

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))

	// whoever waits must sit out the later hint, not the earlier one
	assert.GreaterOrEqual(t, clock.totalWaited(), 3*time.Second)
}

func TestLimiter_WaitHonorsContextCancellation(t *testing.T) {
	l := New() // real clock
	l.Observe(http.StatusTooManyRequests, header("60"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_ConcurrentWaitersConverge(t *testing.T) {
	clock := newFakeClock()
	l := New(WithClock(clock.Now, clock.After))

	l.Observe(http.StatusTooManyRequests, header("2"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Wait(context.Background()))
		}()
	}
	wg.Wait()
}
