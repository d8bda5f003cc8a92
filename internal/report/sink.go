package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/coursefetch/coursefetch/internal/domain"
)

var csvHeader = []string{
	"attachment_id", "course_id", "lecture_id", "kind", "path",
	"status", "bytes", "attempts", "duration_ms", "error", "finished_at",
}

// Summary aggregates the run's terminal outcomes.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	Cancelled  int
	Bytes      int64
}

// CSVSink consumes outcomes on a buffered channel so reporting never stalls
// a worker, and appends each one to the run's results CSV. Close drains the
// channel and returns the final Summary.
type CSVSink struct {
	ch      chan domain.Outcome
	done    chan struct{}
	file    *os.File
	writer  *csv.Writer
	summary Summary
	path    string
}

func NewCSVSink(dir string, runID uuid.UUID) (*CSVSink, error) {
	path := filepath.Join(dir, fmt.Sprintf("results_%s.csv", runID))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("write results header: %w", err)
	}

	s := &CSVSink{
		ch:     make(chan domain.Outcome, 256),
		done:   make(chan struct{}),
		file:   file,
		writer: writer,
		path:   path,
	}
	go s.consume()
	return s, nil
}

// Path returns the location of the results CSV.
func (s *CSVSink) Path() string { return s.path }

// Report queues one outcome for recording.
func (s *CSVSink) Report(o domain.Outcome) {
	s.ch <- o
}

func (s *CSVSink) consume() {
	defer close(s.done)

	for o := range s.ch {
		switch o.Status {
		case domain.OutcomeDownloaded:
			s.summary.Downloaded++
			s.summary.Bytes += o.Bytes
		case domain.OutcomeSkipped:
			s.summary.Skipped++
		case domain.OutcomeFailed:
			s.summary.Failed++
		case domain.OutcomeCancelled:
			s.summary.Cancelled++
		}

		record := []string{
			strconv.FormatInt(o.Task.AttachmentID, 10),
			strconv.FormatInt(o.Task.CourseID, 10),
			strconv.FormatInt(o.Task.LectureID, 10),
			string(o.Task.Kind),
			o.Task.RelPath,
			string(o.Status),
			strconv.FormatInt(o.Bytes, 10),
			strconv.Itoa(o.Attempts),
			strconv.FormatInt(o.Duration.Milliseconds(), 10),
			o.Error,
			o.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := s.writer.Write(record); err != nil {
			slog.Error("failed to record outcome", "attachment_id", o.Task.AttachmentID, "error", err)
		}
	}
}

// Close stops accepting outcomes, flushes the CSV and returns the Summary.
func (s *CSVSink) Close() (Summary, error) {
	close(s.ch)
	<-s.done

	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()

	if flushErr != nil {
		return s.summary, fmt.Errorf("flush results file: %w", flushErr)
	}
	if closeErr != nil {
		return s.summary, fmt.Errorf("close results file: %w", closeErr)
	}
	return s.summary, nil
}
