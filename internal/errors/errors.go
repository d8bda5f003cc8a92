package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// Kind groups failures by how the retry policy must treat them.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"        // 429, wait for the server reset
	KindTransient   Kind = "transient_network"   // retryable with backoff
	KindValidation  Kind = "validation_mismatch" // byte count disagrees with expected size
	KindPermanent   Kind = "permanent"           // not retryable (404, malformed response)
	KindCancelled   Kind = "cancelled"           // shutdown interrupted the task
)

var (
	ErrRateLimited   = errors.New("rate limited (429)")
	ErrNotFound      = errors.New("resource not found (404)")
	ErrServerProblem = errors.New("server error (5xx)")
	ErrClientRequest = errors.New("client error (4xx)")
	ErrSizeMismatch  = errors.New("downloaded size does not match expected size")
	ErrPathCollision = errors.New("destination path already in flight")
	ErrQueueClosed   = errors.New("task queue closed")
)

// DownloadError wraps a failure with its retry classification. It supports
// errors.Is/As against the wrapped error.
type DownloadError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] status %d: %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// FromStatus converts an HTTP status code into a classified error.
// Returns nil for success statuses.
func FromStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &DownloadError{Kind: KindRateLimited, StatusCode: status, Err: ErrRateLimited}
	case status >= 500:
		return &DownloadError{Kind: KindTransient, StatusCode: status, Err: ErrServerProblem}
	case status == http.StatusNotFound:
		return &DownloadError{Kind: KindPermanent, StatusCode: status, Err: ErrNotFound}
	default:
		return &DownloadError{Kind: KindPermanent, StatusCode: status, Err: ErrClientRequest}
	}
}

// Classify wraps an arbitrary transport or I/O error with its retry kind.
// Already-classified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var dlErr *DownloadError
	if errors.As(err, &dlErr) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &DownloadError{Kind: KindCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &DownloadError{Kind: KindTransient, Err: err}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &DownloadError{Kind: KindTransient, Err: err}
	case errors.Is(err, ErrSizeMismatch):
		return &DownloadError{Kind: KindValidation, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &DownloadError{Kind: KindTransient, Err: err}
	}

	return &DownloadError{Kind: KindPermanent, Err: err}
}

// KindOf reports the retry kind of a classified error.
func KindOf(err error) Kind {
	var dlErr *DownloadError
	if errors.As(err, &dlErr) {
		return dlErr.Kind
	}
	return KindPermanent
}

// IsRetryable reports whether the failure may be retried at all.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTransient, KindValidation:
		return true
	default:
		return false
	}
}

// StatusCode extracts the HTTP status from a classified error, if present.
func StatusCode(err error) (int, bool) {
	var dlErr *DownloadError
	if errors.As(err, &dlErr) && dlErr.StatusCode != 0 {
		return dlErr.StatusCode, true
	}
	return 0, false
}
