package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

// OutcomeStore is an in-memory store.OutcomeRepository.
type OutcomeStore struct {
	mu       sync.RWMutex
	runs     map[uuid.UUID]store.Run
	outcomes map[uuid.UUID][]store.URLOutcome
	seen     map[uuid.UUID]map[string]struct{}
}

var _ store.OutcomeRepository = (*OutcomeStore)(nil)

// NewOutcomeStore constructs an empty OutcomeStore.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		runs:     make(map[uuid.UUID]store.Run),
		outcomes: make(map[uuid.UUID][]store.URLOutcome),
		seen:     make(map[uuid.UUID]map[string]struct{}),
	}
}

// StartRun inserts a running run or marks an existing one running again.
func (s *OutcomeStore) StartRun(_ context.Context, runID uuid.UUID, rootURL string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.Status = store.RunRunning
		s.runs[runID] = run
		return nil
	}
	s.runs[runID] = store.Run{ID: runID, RootURL: rootURL, StartedAt: startedAt, Status: store.RunRunning}
	return nil
}

// FinishRun stamps the terminal state of a run.
func (s *OutcomeStore) FinishRun(
	_ context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	counts store.RunCounts,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("finish run %s: %w", runID, store.ErrNotFound)
	}
	run.FinishedAt = &finishedAt
	run.Status = status
	run.Counts = counts
	run.ErrorMessage = errMsg
	s.runs[runID] = run
	return nil
}

// RecordOutcomes appends outcomes, ignoring repeats of a (run, url) pair.
func (s *OutcomeStore) RecordOutcomes(_ context.Context, outcomes []store.URLOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outcomes {
		urls := s.seen[o.RunID]
		if urls == nil {
			urls = make(map[string]struct{})
			s.seen[o.RunID] = urls
		}
		if _, dup := urls[o.URL]; dup {
			continue
		}
		urls[o.URL] = struct{}{}
		s.outcomes[o.RunID] = append(s.outcomes[o.RunID], o)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *OutcomeStore) GetRun(_ context.Context, runID uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *OutcomeStore) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	s.mu.RLock()
	runs := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if status == nil || run.Status == *status {
			runs = append(runs, run)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(runs, func(a, b store.Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return page(runs, limit, offset), nil
}

// ListOutcomes returns a run's outcomes in recording order.
func (s *OutcomeStore) ListOutcomes(
	_ context.Context,
	runID uuid.UUID,
	outcome *store.Outcome,
	limit,
	offset int,
) ([]store.URLOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.URLOutcome
	for _, o := range s.outcomes[runID] {
		if outcome == nil || o.Outcome == *outcome {
			out = append(out, o)
		}
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return slices.Clone(items)
}
