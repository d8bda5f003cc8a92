package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	statushttp "github.com/coursefetch/coursefetch/internal/api/http"
	"github.com/coursefetch/coursefetch/internal/config"
	"github.com/coursefetch/coursefetch/internal/domain"
	"github.com/coursefetch/coursefetch/internal/manager"
	"github.com/coursefetch/coursefetch/internal/producer"
	"github.com/coursefetch/coursefetch/internal/queue"
	"github.com/coursefetch/coursefetch/internal/ratelimit"
	"github.com/coursefetch/coursefetch/internal/report"
	"github.com/coursefetch/coursefetch/internal/retry"
	"github.com/coursefetch/coursefetch/internal/teachable"
)

func main() {
	types := flag.String("types", "", "comma-separated attachment kinds to download (default: all downloadable kinds)")
	output := flag.String("output", "", "override the output directory")
	flag.Parse()

	// .env carries the API key, same as the hosted dashboard exports it
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *output != "" {
		cfg.OutputDir = *output
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			slog.Error("failed to create output directory", "path", cfg.OutputDir, "error", err)
			os.Exit(1)
		}
	}

	config.SetupLogger(cfg)

	courseIDs, err := parseCourseIDs(flag.Args())
	if err != nil {
		slog.Error("invalid course ID argument", "error", err)
		os.Exit(1)
	}

	kinds, err := parseKinds(*types)
	if err != nil {
		slog.Error("invalid -types argument", "error", err)
		os.Exit(1)
	}

	runID := uuid.New()
	startedAt := time.Now()
	slog.Info("run starting", "run_id", runID, "courses", len(courseIDs),
		"workers", cfg.MaxConcurrentDownloads, "output", cfg.OutputDir)

	limiter := ratelimit.New(ratelimit.WithFallbackDelay(cfg.RateLimitFallbackDelay))
	policy := retry.New(cfg.RetryBaseDelay, cfg.RetryMaxBackoff, cfg.RetryMaxAttempts)
	taskQueue := queue.New()
	client := teachable.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.RequestTimeout, limiter, cfg.RetryMaxAttempts)
	walker := producer.NewWalker(client, taskQueue, kinds)

	sink, err := report.NewCSVSink(cfg.OutputDir, runID)
	if err != nil {
		slog.Error("failed to create results sink", "error", err)
		os.Exit(1)
	}

	mgr := manager.New(cfg, taskQueue, limiter, policy, sink)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	statusServer := startStatusServer(cfg, runID, startedAt, mgr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return walker.Run(gctx, courseIDs)
	})
	g.Go(func() error {
		return mgr.Run(gctx)
	})

	runErr := g.Wait()

	summary, err := sink.Close()
	if err != nil {
		slog.Error("failed to finalize results file", "error", err)
	}

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown failed", "error", err)
		}
		cancel()
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run aborted", "error", runErr)
	} else if errors.Is(runErr, context.Canceled) {
		slog.Warn("run interrupted, partial files left for the next run to resume")
	}

	slog.Info("run finished", "run_id", runID,
		"downloaded", summary.Downloaded, "skipped", summary.Skipped,
		"failed", summary.Failed, "cancelled", summary.Cancelled,
		"bytes", summary.Bytes, "results", sink.Path(),
		"elapsed", time.Since(startedAt).Round(time.Millisecond))

	if summary.Failed > 0 || (runErr != nil && !errors.Is(runErr, context.Canceled)) {
		os.Exit(1)
	}
}

func startStatusServer(cfg *config.Config, runID uuid.UUID, startedAt time.Time, mgr *manager.Manager) *http.Server {
	if cfg.StatusAddr == "" {
		return nil
	}

	server := &http.Server{
		Addr:    cfg.StatusAddr,
		Handler: statushttp.NewRouter(runID, startedAt, mgr.Snapshot),
	}

	go func() {
		slog.Info("status server listening", "address", cfg.StatusAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server failed", "error", err)
		}
	}()

	return server
}

func parseCourseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("course ID %q is not a number", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseKinds(arg string) ([]domain.AttachmentKind, error) {
	if arg == "" {
		return domain.DownloadKinds, nil
	}

	known := make(map[domain.AttachmentKind]bool, len(domain.DownloadKinds))
	for _, k := range domain.DownloadKinds {
		known[k] = true
	}

	var kinds []domain.AttachmentKind
	for _, part := range strings.Split(arg, ",") {
		kind := domain.AttachmentKind(strings.TrimSpace(part))
		if !known[kind] {
			return nil, fmt.Errorf("unknown attachment kind %q", part)
		}
		kinds = append(kinds, kind)
		// the platform stores embedded PDFs under their own kind
		if kind == domain.KindPDF {
			kinds = append(kinds, domain.KindPDFEmbed)
		}
	}
	return kinds, nil
}
