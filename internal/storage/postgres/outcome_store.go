// Package postgres provides the Postgres-backed outcome repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitecrawler/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultRunsTable     = "crawl_runs"
	DefaultOutcomesTable = "crawl_outcomes"
)

// Config controls the connection pool and table names.
type Config struct {
	DSN             string
	RunsTable       string
	OutcomesTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxIface is the subset of *pgxpool.Pool used here; pgxmock satisfies it.
type pgxIface interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// OutcomeStore implements store.OutcomeRepository.
type OutcomeStore struct {
	pool     pgxIface
	runs     string
	outcomes string
}

var _ store.OutcomeRepository = (*OutcomeStore)(nil)

// New connects to Postgres using cfg.
func New(ctx context.Context, cfg Config) (*OutcomeStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(pool, cfg.RunsTable, cfg.OutcomesTable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxIface, runsTable, outcomesTable string) (*OutcomeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if runsTable == "" {
		runsTable = DefaultRunsTable
	}
	if outcomesTable == "" {
		outcomesTable = DefaultOutcomesTable
	}
	for _, table := range []string{runsTable, outcomesTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &OutcomeStore{pool: pool, runs: runsTable, outcomes: outcomesTable}, nil
}

// Close releases the underlying pool resources.
func (s *OutcomeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StartRun inserts a running row, leaving an existing one untouched apart
// from its status.
func (s *OutcomeStore) StartRun(ctx context.Context, runID uuid.UUID, rootURL string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, root_url, started_at, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status
WHERE %s.status <> EXCLUDED.status`, s.runs, s.runs)
	if _, err := s.pool.Exec(ctx, query, runID, rootURL, startedAt, store.RunRunning); err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// FinishRun records the terminal status and counters.
func (s *OutcomeStore) FinishRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	counts store.RunCounts,
	errMsg *string,
) error {
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, total = $3, succeeded = $4, failed = $5, error_message = $6
WHERE id = $7`, s.runs)
	tag, err := s.pool.Exec(ctx, query,
		finishedAt, status, counts.Total, counts.Succeeded, counts.Failed, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

// RecordOutcomes inserts outcomes in one transaction. Duplicate (run, url)
// pairs are ignored.
func (s *OutcomeStore) RecordOutcomes(ctx context.Context, outcomes []store.URLOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, url, outcome, error_message, duration_ms, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id, url) DO NOTHING`, s.outcomes)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin outcomes tx: %w", err)
	}
	for _, o := range outcomes {
		if _, err := tx.Exec(ctx, query, o.RunID, o.URL, o.Outcome, o.Error, o.DurationMs, o.RecordedAt); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return fmt.Errorf("insert outcome %s: %w (rollback: %v)", o.URL, err, rbErr)
			}
			return fmt.Errorf("insert outcome %s: %w", o.URL, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit outcomes: %w", err)
	}
	return nil
}

const runColumns = "id::text, root_url, started_at, finished_at, status, total, succeeded, failed, error_message"

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		id     string
		status string
	)
	err := row.Scan(
		&id,
		&run.RootURL,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Counts.Total,
		&run.Counts.Succeeded,
		&run.Counts.Failed,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.Run{}, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return store.Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.Status = store.RunStatus(status)
	return run, nil
}

// GetRun retrieves a single run by ID.
func (s *OutcomeStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, runColumns, s.runs)
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *OutcomeStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE ($1::text IS NULL OR status = $1)
ORDER BY started_at DESC
LIMIT $2 OFFSET $3`, runColumns, s.runs)
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListOutcomes returns a run's URL outcomes in recording order.
func (s *OutcomeStore) ListOutcomes(
	ctx context.Context,
	runID uuid.UUID,
	outcome *store.Outcome,
	limit,
	offset int,
) ([]store.URLOutcome, error) {
	query := fmt.Sprintf(`
SELECT run_id::text, url, outcome, error_message, duration_ms, recorded_at
FROM %s
WHERE run_id = $1 AND ($2::text IS NULL OR outcome = $2)
ORDER BY recorded_at ASC
LIMIT $3 OFFSET $4`, s.outcomes)
	var filter *string
	if outcome != nil {
		v := string(*outcome)
		filter = &v
	}
	rows, err := s.pool.Query(ctx, query, runID, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []store.URLOutcome
	for rows.Next() {
		var (
			o    store.URLOutcome
			id   string
			kind string
		)
		if err := rows.Scan(&id, &o.URL, &kind, &o.Error, &o.DurationMs, &o.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		o.RunID = parsed
		o.Outcome = store.Outcome(kind)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}
