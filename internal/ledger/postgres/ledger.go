// Package postgres provides the Postgres-backed job ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Expected schema:
//
//	CREATE TABLE jobs (
//	    id TEXT PRIMARY KEY,
//	    state TEXT NOT NULL,
//	    input_ref TEXT NOT NULL,
//	    output_ref TEXT NOT NULL DEFAULT '',
//	    attempt_count INTEGER NOT NULL DEFAULT 0,
//	    error_text TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_jobs_state_created_at ON jobs(state, created_at);

// Config controls the Postgres connection pool used for job records.
type Config struct {
	DSN               string
	Table             string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxAttempts       int
	LivenessThreshold time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Ledger implements filesure.Ledger on a pgx pool. Claim is a single
// conditional UPDATE, so concurrent claims on one ID resolve to exactly
// one winner without any in-process locking.
type Ledger struct {
	pool              pgxPool
	table             string
	maxAttempts       int
	livenessThreshold time.Duration
	clock             filesure.Clock
	idGen             filesure.IDGenerator
}

// New creates a Postgres-backed Ledger using the provided config.
func New(ctx context.Context, cfg Config, clock filesure.Clock, idGen filesure.IDGenerator) (*Ledger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
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
	return newWithPool(pool, cfg, clock, idGen)
}

// NewWithPool constructs a Ledger from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool pgxPool, cfg Config, clock filesure.Clock, idGen filesure.IDGenerator) (*Ledger, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newWithPool(pool, cfg, clock, idGen)
}

func newWithPool(pool pgxPool, cfg Config, clock filesure.Clock, idGen filesure.IDGenerator) (*Ledger, error) {
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	threshold := cfg.LivenessThreshold
	if threshold <= 0 {
		threshold = 5 * time.Minute
	}
	return &Ledger{
		pool:              pool,
		table:             table,
		maxAttempts:       maxAttempts,
		livenessThreshold: threshold,
		clock:             clock,
		idGen:             idGen,
	}, nil
}

// Close releases the underlying pool resources.
func (l *Ledger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

const jobColumns = "id, state, input_ref, output_ref, attempt_count, error_text, created_at, updated_at"

// Create allocates an ID and inserts a pending record. The single INSERT
// either lands completely or not at all.
func (l *Ledger) Create(ctx context.Context, inputRef string) (filesure.Job, error) {
	id, err := l.idGen.NewID()
	if err != nil {
		return filesure.Job{}, fmt.Errorf("allocate job id: %w", err)
	}
	now := l.clock.Now()
	query := fmt.Sprintf(`
INSERT INTO %s (id, state, input_ref, attempt_count, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $4)`, l.table)
	if _, err := l.pool.Exec(ctx, query, id, string(filesure.StatePending), inputRef, now); err != nil {
		return filesure.Job{}, fmt.Errorf("%w: insert job: %w", filesure.ErrStorageUnavailable, err)
	}
	return filesure.Job{
		ID:        id,
		State:     filesure.StatePending,
		InputRef:  inputRef,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Claim performs the compare-and-set transition to running. The predicate
// admits pending records and running records whose updated_at is past the
// liveness cutoff; both paths increment attempt_count in the same UPDATE.
func (l *Ledger) Claim(ctx context.Context, id string) (filesure.Job, error) {
	now := l.clock.Now()
	cutoff := now.Add(-l.livenessThreshold)
	query := fmt.Sprintf(`
UPDATE %s
SET state = $2, attempt_count = attempt_count + 1, updated_at = $3
WHERE id = $1
  AND attempt_count < $5
  AND (state = $4 OR (state = $2 AND updated_at < $6))
RETURNING `+jobColumns, l.table)

	row := l.pool.QueryRow(ctx, query,
		id,
		string(filesure.StateRunning),
		now,
		string(filesure.StatePending),
		l.maxAttempts,
		cutoff,
	)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return filesure.Job{}, fmt.Errorf("%w: claim job: %w", filesure.ErrStorageUnavailable, err)
	}
	return filesure.Job{}, l.explainLostClaim(ctx, id, now, cutoff)
}

// explainLostClaim distinguishes the zero-row outcomes of the claim CAS:
// missing record, attempt budget spent, or simply lost the race.
func (l *Ledger) explainLostClaim(ctx context.Context, id string, now, cutoff time.Time) error {
	job, err := l.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("claim %s: %w", id, filesure.ErrNotFound)
	}
	eligible := job.State == filesure.StatePending ||
		(job.State == filesure.StateRunning && job.UpdatedAt.Before(cutoff))
	if eligible && job.AttemptCount >= l.maxAttempts {
		if err := l.forceFailExhausted(ctx, id, now); err != nil {
			return err
		}
		return fmt.Errorf("claim %s: %w", id, filesure.ErrMaxAttempts)
	}
	return fmt.Errorf("claim %s: %w", id, filesure.ErrAlreadyClaimed)
}

func (l *Ledger) forceFailExhausted(ctx context.Context, id string, now time.Time) error {
	query := fmt.Sprintf(`
UPDATE %s
SET state = $2, error_text = $3, updated_at = $4
WHERE id = $1 AND state IN ($5, $6)`, l.table)
	if _, err := l.pool.Exec(ctx, query,
		id,
		string(filesure.StateFailed),
		filesure.MaxAttemptsErrorText,
		now,
		string(filesure.StatePending),
		string(filesure.StateRunning),
	); err != nil {
		return fmt.Errorf("%w: fail exhausted job: %w", filesure.ErrStorageUnavailable, err)
	}
	return nil
}

// Complete transitions running -> succeeded and sets the output reference.
func (l *Ledger) Complete(ctx context.Context, id, outputRef string) error {
	query := fmt.Sprintf(`
UPDATE %s
SET state = $2, output_ref = $3, updated_at = $4
WHERE id = $1 AND state = $5`, l.table)
	tag, err := l.pool.Exec(ctx, query,
		id,
		string(filesure.StateSucceeded),
		outputRef,
		l.clock.Now(),
		string(filesure.StateRunning),
	)
	if err != nil {
		return fmt.Errorf("%w: complete job: %w", filesure.ErrStorageUnavailable, err)
	}
	return l.checkGuardedUpdate(ctx, id, tag)
}

// Fail transitions running -> failed and records the failure reason.
func (l *Ledger) Fail(ctx context.Context, id, errText string) error {
	query := fmt.Sprintf(`
UPDATE %s
SET state = $2, error_text = $3, updated_at = $4
WHERE id = $1 AND state = $5`, l.table)
	tag, err := l.pool.Exec(ctx, query,
		id,
		string(filesure.StateFailed),
		errText,
		l.clock.Now(),
		string(filesure.StateRunning),
	)
	if err != nil {
		return fmt.Errorf("%w: fail job: %w", filesure.ErrStorageUnavailable, err)
	}
	return l.checkGuardedUpdate(ctx, id, tag)
}

func (l *Ledger) checkGuardedUpdate(ctx context.Context, id string, tag pgconn.CommandTag) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := l.Get(ctx, id); err != nil {
		return fmt.Errorf("finish %s: %w", id, filesure.ErrNotFound)
	}
	return fmt.Errorf("finish %s: %w", id, filesure.ErrInvalidTransition)
}

// Get fetches a job by ID.
func (l *Ledger) Get(ctx context.Context, id string) (filesure.Job, error) {
	query := fmt.Sprintf("SELECT "+jobColumns+" FROM %s WHERE id = $1", l.table)
	job, err := scanJob(l.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return filesure.Job{}, fmt.Errorf("get %s: %w", id, filesure.ErrNotFound)
	}
	if err != nil {
		return filesure.Job{}, fmt.Errorf("%w: get job: %w", filesure.ErrStorageUnavailable, err)
	}
	return job, nil
}

// NextPending returns the oldest pending job.
func (l *Ledger) NextPending(ctx context.Context) (filesure.Job, error) {
	query := fmt.Sprintf(
		"SELECT "+jobColumns+" FROM %s WHERE state = $1 ORDER BY created_at, id LIMIT 1",
		l.table,
	)
	job, err := scanJob(l.pool.QueryRow(ctx, query, string(filesure.StatePending)))
	if errors.Is(err, pgx.ErrNoRows) {
		return filesure.Job{}, fmt.Errorf("next pending: %w", filesure.ErrNotFound)
	}
	if err != nil {
		return filesure.Job{}, fmt.Errorf("%w: next pending: %w", filesure.ErrStorageUnavailable, err)
	}
	return job, nil
}

// CountPending returns the number of pending records.
func (l *Ledger) CountPending(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE state = $1", l.table)
	var n int
	if err := l.pool.QueryRow(ctx, query, string(filesure.StatePending)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count pending: %w", filesure.ErrStorageUnavailable, err)
	}
	return n, nil
}

// CountByState returns record counts keyed by state.
func (l *Ledger) CountByState(ctx context.Context) (map[filesure.JobState]int, error) {
	query := fmt.Sprintf("SELECT state, count(*) FROM %s GROUP BY state", l.table)
	rows, err := l.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: count by state: %w", filesure.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[filesure.JobState]int, 4)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("%w: scan state count: %w", filesure.ErrStorageUnavailable, err)
		}
		counts[filesure.JobState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate state counts: %w", filesure.ErrStorageUnavailable, err)
	}
	return counts, nil
}

// CountStaleRunning returns running records past the liveness threshold.
func (l *Ledger) CountStaleRunning(ctx context.Context) (int, error) {
	cutoff := l.clock.Now().Add(-l.livenessThreshold)
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE state = $1 AND updated_at < $2", l.table)
	var n int
	if err := l.pool.QueryRow(ctx, query, string(filesure.StateRunning), cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count stale running: %w", filesure.ErrStorageUnavailable, err)
	}
	return n, nil
}

func scanJob(row pgx.Row) (filesure.Job, error) {
	var job filesure.Job
	var state string
	if err := row.Scan(
		&job.ID,
		&state,
		&job.InputRef,
		&job.OutputRef,
		&job.AttemptCount,
		&job.ErrorText,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return filesure.Job{}, err
	}
	job.State = filesure.JobState(state)
	return job, nil
}
