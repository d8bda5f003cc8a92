package manager

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursefetch/coursefetch/internal/config"
	"github.com/coursefetch/coursefetch/internal/domain"
	"github.com/coursefetch/coursefetch/internal/queue"
	"github.com/coursefetch/coursefetch/internal/ratelimit"
	"github.com/coursefetch/coursefetch/internal/retry"
)

// Sink consumes one Outcome per attempted task. Implementations must not
// block the reporting worker for long; buffer if the destination is slow.
type Sink interface {
	Report(domain.Outcome)
}

// Progress is a point-in-time snapshot of the run, served by the status
// endpoint.
type Progress struct {
	Queued     int   `json:"queued"`
	Active     int   `json:"active"`
	Downloaded int64 `json:"downloaded"`
	Skipped    int64 `json:"skipped"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Bytes      int64 `json:"bytes"`
}

// Manager owns the task queue and the worker pool. It starts exactly
// MaxConcurrentDownloads workers, guards against two workers targeting the
// same destination path, and coordinates cooperative shutdown: on
// cancellation the queue stops handing out tasks, in-flight transfers get a
// bounded grace period to commit, then remaining transfers are forced to
// stop (leaving their .partial files in place).
type Manager struct {
	queue   *queue.TaskQueue
	limiter *ratelimit.Limiter
	policy  *retry.Policy
	sink    Sink
	client  *http.Client

	outputRoot     string
	workers        int
	requestTimeout time.Duration
	shutdownGrace  time.Duration

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	active     atomic.Int32
	downloaded atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	cancelled  atomic.Int64
	bytes      atomic.Int64
}

func New(cfg *config.Config, q *queue.TaskQueue, limiter *ratelimit.Limiter, policy *retry.Policy, sink Sink) *Manager {
	return &Manager{
		queue:          q,
		limiter:        limiter,
		policy:         policy,
		sink:           sink,
		client:         &http.Client{},
		outputRoot:     cfg.OutputDir,
		workers:        cfg.MaxConcurrentDownloads,
		requestTimeout: cfg.RequestTimeout,
		shutdownGrace:  cfg.ShutdownGrace,
		inflight:       make(map[string]struct{}),
	}
}

// Run executes tasks until the queue is closed and drained, or until ctx is
// cancelled and the shutdown sequence completes. It returns ctx's error when
// the run was interrupted, nil otherwise. Task failures are reported through
// the sink, never through this return value.
func (m *Manager) Run(ctx context.Context) error {
	// transferCtx outlives ctx by the grace period so in-flight transfers
	// can still commit after an interrupt
	transferCtx, forceStop := context.WithCancel(context.WithoutCancel(ctx))
	defer forceStop()

	workersDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("shutdown requested, draining in-flight downloads", "grace", m.shutdownGrace)
			m.queue.Shutdown()
			timer := time.NewTimer(m.shutdownGrace)
			defer timer.Stop()
			select {
			case <-timer.C:
				slog.Warn("grace period elapsed, forcing remaining transfers to stop")
				forceStop()
			case <-workersDone:
			}
		case <-workersDone:
		}
	}()

	g := new(errgroup.Group)
	for i := 1; i <= m.workers; i++ {
		workerID := i
		g.Go(func() error {
			m.workerLoop(ctx, transferCtx, workerID)
			return nil
		})
	}
	_ = g.Wait()
	close(workersDone)

	return ctx.Err()
}

func (m *Manager) workerLoop(ctx, transferCtx context.Context, workerID int) {
	for {
		task, ok := m.queue.Dequeue()
		if !ok {
			slog.Debug("worker finished", "worker_id", workerID)
			return
		}

		m.active.Add(1)
		outcome := m.execute(ctx, transferCtx, task)
		m.active.Add(-1)

		m.record(outcome)
		m.sink.Report(outcome)
	}
}

// acquirePath registers a destination as in flight. Two tasks resolving to
// the same path indicate a broken naming scheme, not a race to win.
func (m *Manager) acquirePath(path string) bool {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()

	if _, busy := m.inflight[path]; busy {
		return false
	}
	m.inflight[path] = struct{}{}
	return true
}

func (m *Manager) releasePath(path string) {
	m.inflightMu.Lock()
	delete(m.inflight, path)
	m.inflightMu.Unlock()
}

func (m *Manager) record(o domain.Outcome) {
	switch o.Status {
	case domain.OutcomeDownloaded:
		m.downloaded.Add(1)
		m.bytes.Add(o.Bytes)
	case domain.OutcomeSkipped:
		m.skipped.Add(1)
	case domain.OutcomeFailed:
		m.failed.Add(1)
	case domain.OutcomeCancelled:
		m.cancelled.Add(1)
	}
}

// Snapshot returns current run progress.
func (m *Manager) Snapshot() Progress {
	return Progress{
		Queued:     m.queue.Len(),
		Active:     int(m.active.Load()),
		Downloaded: m.downloaded.Load(),
		Skipped:    m.skipped.Load(),
		Failed:     m.failed.Load(),
		Cancelled:  m.cancelled.Load(),
		Bytes:      m.bytes.Load(),
	}
}
