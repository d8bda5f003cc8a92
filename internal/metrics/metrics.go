package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_tasks_enqueued_total",
		Help: "Total number of download tasks discovered and enqueued",
	})

	DownloadsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_downloads_succeeded_total",
		Help: "Total number of attachments downloaded and committed",
	})

	DownloadsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_downloads_skipped_total",
		Help: "Total number of attachments skipped because they were already complete",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_downloads_failed_total",
		Help: "Total number of attachments that failed permanently",
	})

	DownloadsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_downloads_cancelled_total",
		Help: "Total number of in-flight downloads interrupted by shutdown",
	})

	DownloadRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_download_retries_total",
		Help: "Total number of download retry attempts",
	})

	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_rate_limit_hits_total",
		Help: "Total number of 429 responses observed",
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coursefetch_download_bytes_total",
		Help: "Total bytes downloaded and committed",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coursefetch_download_duration_seconds",
		Help:    "Duration of committed downloads in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
