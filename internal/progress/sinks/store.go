package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/logging"
	"github.com/JakeFAU/sitecrawler/internal/progress"
	"github.com/JakeFAU/sitecrawler/internal/store"
)

// StoreSink persists runs and URL outcomes through a store.OutcomeRepository.
// Outcomes within one batch are written together.
type StoreSink struct {
	repo   store.OutcomeRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for repo.
func NewStoreSink(repo store.OutcomeRepository, logger *zap.Logger) *StoreSink {
	return &StoreSink{repo: repo, logger: logging.OrNop(logger)}
}

// Consume forwards the batch to the repository in event order. Repository
// errors are returned wrapped.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	var pending []store.URLOutcome
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := s.repo.RecordOutcomes(ctx, pending); err != nil {
			return fmt.Errorf("record outcomes: %w", err)
		}
		pending = nil
		return nil
	}

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.StartRun(ctx, runID, evt.URL, evt.TS); err != nil {
				return fmt.Errorf("start run: %w", err)
			}
		case progress.StageURLDone:
			pending = append(pending, outcomeOf(runID, evt, store.OutcomeSucceeded))
		case progress.StageURLError:
			pending = append(pending, outcomeOf(runID, evt, store.OutcomeFailed))
		case progress.StageRunDone, progress.StageRunCanceled, progress.StageRunError:
			if err := flush(); err != nil {
				return err
			}
			if err := s.finish(ctx, runID, evt); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *StoreSink) finish(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	status := store.RunCompleted
	switch evt.Stage {
	case progress.StageRunCanceled:
		status = store.RunCanceled
	case progress.StageRunError:
		status = store.RunError
	}
	var note *string
	if evt.Note != "" {
		note = &evt.Note
	}
	counts := store.RunCounts{
		Total:     evt.Counts.Total,
		Succeeded: evt.Counts.Succeeded,
		Failed:    evt.Counts.Failed,
	}
	if err := s.repo.FinishRun(ctx, runID, evt.TS, status, counts, note); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	s.logger.Debug("run persisted", zap.Stringer("run_id", runID), zap.String("status", string(status)))
	return nil
}

func outcomeOf(runID uuid.UUID, evt progress.Event, outcome store.Outcome) store.URLOutcome {
	o := store.URLOutcome{
		RunID:      runID,
		URL:        evt.URL,
		Outcome:    outcome,
		DurationMs: evt.Dur.Milliseconds(),
		RecordedAt: evt.TS,
	}
	if evt.Note != "" {
		note := evt.Note
		o.Error = &note
	}
	return o
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
