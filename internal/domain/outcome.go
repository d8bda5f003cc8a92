package domain

import "time"

// OutcomeStatus is the terminal result classification of a task.
type OutcomeStatus string

const (
	OutcomeDownloaded OutcomeStatus = "downloaded"
	OutcomeSkipped    OutcomeStatus = "skipped_existing"
	OutcomeFailed     OutcomeStatus = "failed"
	OutcomeCancelled  OutcomeStatus = "cancelled"
)

// Outcome is emitted exactly once per attempted task and never mutated
// afterward. Tasks that were still queued at shutdown produce no Outcome.
type Outcome struct {
	Task       *DownloadTask `json:"task"`
	Status     OutcomeStatus `json:"status"`
	Bytes      int64         `json:"bytes"`
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}
