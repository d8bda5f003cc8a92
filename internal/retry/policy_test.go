package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errpkg "github.com/coursefetch/coursefetch/internal/errors"
)

func transientErr() error {
	return &errpkg.DownloadError{Kind: errpkg.KindTransient, Err: errors.New("connection reset")}
}

func rateLimitedErr() error {
	return &errpkg.DownloadError{Kind: errpkg.KindRateLimited, StatusCode: 429, Err: errpkg.ErrRateLimited}
}

func permanentErr() error {
	return &errpkg.DownloadError{Kind: errpkg.KindPermanent, StatusCode: 404, Err: errpkg.ErrNotFound}
}

func TestPolicy_ShouldRetry(t *testing.T) {
	p := New(time.Second, time.Minute, 3)

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"transient below bound", transientErr(), 1, true},
		{"transient at bound", transientErr(), 3, false},
		{"rate limited below bound", rateLimitedErr(), 2, true},
		{"permanent never retried", permanentErr(), 1, false},
		{"validation mismatch retried", errpkg.Classify(errpkg.ErrSizeMismatch), 1, true},
		{"cancelled never retried", errpkg.Classify(context.Canceled), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldRetry(tt.err, tt.attempt))
		})
	}
}

func TestPolicy_DelayDoublesAndCaps(t *testing.T) {
	p := New(2*time.Second, 10*time.Second, 10)

	assert.Equal(t, 2*time.Second, p.Delay(transientErr(), 1))
	assert.Equal(t, 4*time.Second, p.Delay(transientErr(), 2))
	assert.Equal(t, 8*time.Second, p.Delay(transientErr(), 3))
	assert.Equal(t, 10*time.Second, p.Delay(transientErr(), 4))
	assert.Equal(t, 10*time.Second, p.Delay(transientErr(), 9))
}

func TestPolicy_DelayZeroForRateLimited(t *testing.T) {
	p := New(2*time.Second, time.Minute, 5)

	// the shared limiter owns the rate-limit wait, not the backoff
	assert.Zero(t, p.Delay(rateLimitedErr(), 3))
}

func TestPolicy_BackoffUsesInjectedSleep(t *testing.T) {
	var slept []time.Duration
	p := New(time.Second, time.Minute, 5, WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	require.NoError(t, p.Backoff(context.Background(), transientErr(), 1))
	require.NoError(t, p.Backoff(context.Background(), transientErr(), 2))

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestPolicy_BackoffSkipsSleepForRateLimited(t *testing.T) {
	called := false
	p := New(time.Second, time.Minute, 5, WithSleep(func(context.Context, time.Duration) error {
		called = true
		return nil
	}))

	require.NoError(t, p.Backoff(context.Background(), rateLimitedErr(), 1))
	assert.False(t, called)
}

func TestPolicy_BackoffHonorsContextCancellation(t *testing.T) {
	p := New(time.Minute, time.Hour, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Backoff(ctx, transientErr(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
