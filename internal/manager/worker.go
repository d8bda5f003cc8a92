package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coursefetch/coursefetch/internal/domain"
	errpkg "github.com/coursefetch/coursefetch/internal/errors"
	"github.com/coursefetch/coursefetch/internal/metrics"
	"github.com/coursefetch/coursefetch/internal/storage"
)

// execute runs one task through the guarded download protocol:
// CHECK_EXISTING -> {SKIP | FETCH} -> VALIDATE -> {COMMIT | RETRY | FAIL}.
// ctx is the cooperative context (suspension points honor it); transferCtx
// bounds the transfers themselves and survives ctx by the grace period.
func (m *Manager) execute(ctx, transferCtx context.Context, task *domain.DownloadTask) domain.Outcome {
	start := time.Now()
	finish := func(status domain.OutcomeStatus, bytes int64, attempts int, err error) domain.Outcome {
		o := domain.Outcome{
			Task:       task,
			Status:     status,
			Bytes:      bytes,
			Attempts:   attempts,
			Duration:   time.Since(start),
			FinishedAt: time.Now(),
		}
		if err != nil {
			o.Error = err.Error()
		}
		return o
	}

	target := storage.NewTarget(m.outputRoot, task.RelPath)

	if !m.acquirePath(target.Path()) {
		slog.Error("destination path collision, naming scheme violated",
			"attachment_id", task.AttachmentID, "path", target.Path())
		metrics.DownloadsFailed.Inc()
		return finish(domain.OutcomeFailed, 0, 0, errpkg.ErrPathCollision)
	}
	defer m.releasePath(target.Path())

	state, err := target.Classify(task.ExpectedSize)
	if err != nil {
		metrics.DownloadsFailed.Inc()
		return finish(domain.OutcomeFailed, 0, 0, err)
	}

	switch state {
	case storage.StateComplete:
		slog.Debug("skipping complete file", "attachment_id", task.AttachmentID, "path", task.RelPath)
		metrics.DownloadsSkipped.Inc()
		return finish(domain.OutcomeSkipped, 0, 0, nil)
	case storage.StatePartial:
		// never append to partial content; re-fetch from byte 0
		if err := target.Discard(); err != nil {
			metrics.DownloadsFailed.Inc()
			return finish(domain.OutcomeFailed, 0, 0, err)
		}
	}

	if err := target.EnsureDir(); err != nil {
		metrics.DownloadsFailed.Inc()
		return finish(domain.OutcomeFailed, 0, 0, err)
	}

	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= m.policy.MaxAttempts(); attempt++ {
		attempts = attempt
		if attempt > 1 {
			metrics.DownloadRetries.Inc()
		}

		n, err := m.fetch(ctx, transferCtx, task, target)
		if err == nil {
			if err := target.Commit(); err != nil {
				lastErr = err
				break
			}
			slog.Info("downloaded", "attachment_id", task.AttachmentID, "path", task.RelPath,
				"bytes", n, "attempts", attempt)
			metrics.DownloadsSucceeded.Inc()
			metrics.DownloadBytes.Add(float64(n))
			metrics.DownloadDuration.Observe(time.Since(start).Seconds())
			return finish(domain.OutcomeDownloaded, n, attempts, nil)
		}

		err = errpkg.Classify(err)
		lastErr = err
		kind := errpkg.KindOf(err)

		if kind == errpkg.KindCancelled {
			// .partial stays on disk as the resume point for the next run
			slog.Info("download cancelled", "attachment_id", task.AttachmentID, "path", task.RelPath)
			metrics.DownloadsCancelled.Inc()
			return finish(domain.OutcomeCancelled, 0, attempts, err)
		}

		if !m.policy.ShouldRetry(err, attempt) {
			break
		}

		slog.Warn("download attempt failed, retrying",
			"attachment_id", task.AttachmentID, "attempt", attempt, "kind", string(kind), "error", err)

		// rate-limited waits ride the shared limiter; everything else backs
		// off independently so only this worker sleeps
		if kind == errpkg.KindRateLimited {
			err = m.limiter.Wait(ctx)
		} else {
			err = m.policy.Backoff(ctx, err, attempt)
		}
		if err != nil {
			metrics.DownloadsCancelled.Inc()
			return finish(domain.OutcomeCancelled, 0, attempts, errpkg.Classify(err))
		}
	}

	slog.Error("download failed", "attachment_id", task.AttachmentID, "path", task.RelPath,
		"attempts", attempts, "error", lastErr)
	metrics.DownloadsFailed.Inc()
	return finish(domain.OutcomeFailed, 0, attempts, lastErr)
}

// fetch performs one transfer attempt: wait for the shared rate-limit state
// to clear, stream the body into the .partial file, then validate the byte
// count. The final name is never written directly.
func (m *Manager) fetch(ctx, transferCtx context.Context, task *domain.DownloadTask, target *storage.Target) (int64, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	reqCtx, cancel := context.WithTimeout(transferCtx, m.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if m.limiter.Observe(resp.StatusCode, resp.Header) {
		metrics.RateLimitHits.Inc()
	}
	if err := errpkg.FromStatus(resp.StatusCode); err != nil {
		return 0, err
	}

	file, err := target.CreatePartial()
	if err != nil {
		return 0, err
	}

	written, copyErr := copyWithContext(reqCtx, file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, closeErr
	}

	expected := task.ExpectedSize
	if expected == 0 && resp.ContentLength > 0 {
		expected = resp.ContentLength
	}
	if expected > 0 && written != expected {
		return written, fmt.Errorf("%w: got %d bytes, expected %d", errpkg.ErrSizeMismatch, written, expected)
	}

	return written, nil
}

func copyWithContext(ctx context.Context, dst *os.File, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				nw, werr := dst.Write(buf[:nr])
				if nw > 0 {
					total += int64(nw)
				}
				if werr != nil {
					return total, werr
				}
				if nr != nw {
					return total, io.ErrShortWrite
				}
			}
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
	}
}
