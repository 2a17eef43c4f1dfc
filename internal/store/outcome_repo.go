package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RunStatus mirrors the runs table status column.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCanceled  RunStatus = "canceled"
	RunError     RunStatus = "error"
)

// Outcome is the terminal result of one URL.
type Outcome string

// URL outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// RunCounts are the aggregate counters written when a run finishes.
type RunCounts struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Run models one crawl invocation.
type Run struct {
	ID        uuid.UUID `json:"id"`
	RootURL   string    `json:"root_url"`
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is nil while the run is in progress.
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       RunStatus  `json:"status"`
	Counts       RunCounts  `json:"counts"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// URLOutcome records how one URL ended.
type URLOutcome struct {
	RunID      uuid.UUID `json:"run_id"`
	URL        string    `json:"url"`
	Outcome    Outcome   `json:"outcome"`
	Error      *string   `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// OutcomeRepository persists runs and their URL outcomes.
type OutcomeRepository interface {
	// StartRun inserts (or idempotently refreshes) a running run.
	StartRun(ctx context.Context, runID uuid.UUID, rootURL string, startedAt time.Time) error
	// FinishRun stamps the final status, counters and optional error.
	FinishRun(
		ctx context.Context,
		runID uuid.UUID,
		finishedAt time.Time,
		status RunStatus,
		counts RunCounts,
		errMsg *string,
	) error
	// RecordOutcomes appends URL outcomes; a URL appears at most once per run.
	RecordOutcomes(ctx context.Context, outcomes []URLOutcome) error

	// GetRun loads one run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
	// ListOutcomes returns a run's outcomes, optionally filtered.
	ListOutcomes(ctx context.Context, runID uuid.UUID, outcome *Outcome, limit, offset int) ([]URLOutcome, error)
}
