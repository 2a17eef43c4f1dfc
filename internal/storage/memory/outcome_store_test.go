package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

func TestOutcomeStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewOutcomeStore()
	id := uuid.New()
	start := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.StartRun(ctx, id, "http://www.test.com", start))
	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.RunRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	msg := "boom"
	require.NoError(t, s.RecordOutcomes(ctx, []store.URLOutcome{
		{RunID: id, URL: "http://www.test.com", Outcome: store.OutcomeSucceeded},
		{RunID: id, URL: "http://www.test.com/x", Outcome: store.OutcomeFailed, Error: &msg},
		{RunID: id, URL: "http://www.test.com", Outcome: store.OutcomeFailed},
	}))

	all, err := s.ListOutcomes(ctx, id, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, store.OutcomeSucceeded, all[0].Outcome, "duplicates are ignored")

	failed := store.OutcomeFailed
	onlyFailed, err := s.ListOutcomes(ctx, id, &failed, 10, 0)
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, "http://www.test.com/x", onlyFailed[0].URL)

	end := start.Add(time.Minute)
	counts := store.RunCounts{Total: 2, Succeeded: 1, Failed: 1}
	require.NoError(t, s.FinishRun(ctx, id, end, store.RunCompleted, counts, nil))
	run, err = s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, counts, run.Counts)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, end, *run.FinishedAt)
}

func TestOutcomeStoreNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewOutcomeStore()
	_, err := s.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = s.FinishRun(ctx, uuid.New(), time.Now(), store.RunCompleted, store.RunCounts{}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOutcomeStoreListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewOutcomeStore()
	base := time.Unix(1700000000, 0).UTC()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		require.NoError(t, s.StartRun(ctx, id, "http://www.test.com", base.Add(time.Duration(i)*time.Hour)))
	}
	require.NoError(t, s.FinishRun(ctx, ids[0], base, store.RunCanceled, store.RunCounts{}, nil))

	runs, err := s.ListRuns(ctx, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	paged, err := s.ListRuns(ctx, nil, 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, ids[1], paged[0].ID)

	canceled := store.RunCanceled
	onlyCanceled, err := s.ListRuns(ctx, &canceled, 10, 0)
	require.NoError(t, err)
	require.Len(t, onlyCanceled, 1)

	beyond, err := s.ListRuns(ctx, nil, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}
