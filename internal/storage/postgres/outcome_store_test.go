package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

var (
	runID   = uuid.MustParse("0190b6a4-8d2e-7c3a-9f00-000000000001")
	started = time.Unix(1700000000, 0).UTC()
)

func newMockStore(t *testing.T) (*OutcomeStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock, "", "")
	require.NoError(t, err)
	return s, mock
}

func TestNewWithPoolValidatesTables(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(nil, "", "")
	assert.Error(t, err)
	_, err = NewWithPool(mock, "runs; DROP TABLE x", "")
	assert.Error(t, err)
	_, err = NewWithPool(mock, "runs", "1outcomes")
	assert.Error(t, err)

	s, err := NewWithPool(mock, "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRunsTable, s.runs)
	assert.Equal(t, DefaultOutcomesTable, s.outcomes)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestStartRun(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs(runID, "http://www.test.com", started, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.StartRun(context.Background(), runID, "http://www.test.com", started))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartRunWrapsErrors(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs(runID, "http://www.test.com", started, store.RunRunning).
		WillReturnError(errors.New("connection reset"))

	err := s.StartRun(context.Background(), runID, "http://www.test.com", started)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert run start")
}

func TestFinishRun(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	finished := started.Add(time.Minute)
	msg := "crawler: run canceled: context canceled"
	counts := store.RunCounts{Total: 4, Succeeded: 3, Failed: 1}

	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(finished, store.RunCanceled, 4, 3, 1, &msg, runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FinishRun(context.Background(), runID, finished, store.RunCanceled, counts, &msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunMissingRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), runID, started, store.RunCompleted, store.RunCounts{}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordOutcomes(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	failure := "unexpected status 404 for http://www.test.com/missing"
	outcomes := []store.URLOutcome{
		{RunID: runID, URL: "http://www.test.com", Outcome: store.OutcomeSucceeded, DurationMs: 12, RecordedAt: started},
		{RunID: runID, URL: "http://www.test.com/missing", Outcome: store.OutcomeFailed, Error: &failure, DurationMs: 3, RecordedAt: started},
	}

	mock.ExpectBegin()
	for _, o := range outcomes {
		mock.ExpectExec("INSERT INTO crawl_outcomes").
			WithArgs(o.RunID, o.URL, o.Outcome, o.Error, o.DurationMs, o.RecordedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.RecordOutcomes(context.Background(), outcomes))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOutcomesRollsBack(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO crawl_outcomes").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := s.RecordOutcomes(context.Background(), []store.URLOutcome{
		{RunID: runID, URL: "http://www.test.com", Outcome: store.OutcomeSucceeded, RecordedAt: started},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOutcomesEmpty(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	require.NoError(t, s.RecordOutcomes(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func runRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "root_url", "started_at", "finished_at", "status",
		"total", "succeeded", "failed", "error_message",
	})
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	finished := started.Add(time.Minute)
	mock.ExpectQuery(`SELECT (.+)\s+FROM crawl_runs\s+WHERE id`).
		WithArgs(runID).
		WillReturnRows(runRows().AddRow(
			runID.String(), "http://www.test.com", started, &finished, "completed",
			4, 4, 0, (*string)(nil),
		))

	run, err := s.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, store.RunCounts{Total: 4, Succeeded: 4}, run.Counts)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, finished, *run.FinishedAt)
	assert.Nil(t, run.ErrorMessage)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+)\s+FROM crawl_runs\s+WHERE id`).
		WithArgs(runID).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), runID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	status := store.RunRunning
	filter := string(status)
	mock.ExpectQuery(`SELECT (.+)\s+FROM crawl_runs`).
		WithArgs(&filter, 10, 0).
		WillReturnRows(runRows().AddRow(
			runID.String(), "http://www.test.com", started, (*time.Time)(nil), "running",
			0, 0, 0, (*string)(nil),
		))

	runs, err := s.ListRuns(context.Background(), &status, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestListOutcomes(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	msg := "boom"
	mock.ExpectQuery(`SELECT (.+)\s+FROM crawl_outcomes`).
		WithArgs(runID, (*string)(nil), 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "url", "outcome", "error_message", "duration_ms", "recorded_at",
		}).
			AddRow(runID.String(), "http://www.test.com", "succeeded", (*string)(nil), int64(5), started).
			AddRow(runID.String(), "http://www.test.com/x", "failed", &msg, int64(7), started))

	out, err := s.ListOutcomes(context.Background(), runID, nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, store.OutcomeFailed, out[1].Outcome)
	require.NotNil(t, out[1].Error)
	assert.Equal(t, "boom", *out[1].Error)
}
