// Package memory provides an in-memory ledger for development/testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
)

// Config mirrors the retry policy enforced by the durable ledger.
type Config struct {
	MaxAttempts       int
	LivenessThreshold time.Duration
}

// Ledger implements filesure.Ledger with a mutex-guarded map. The mutex
// stands in for the conditional update a durable backend performs; the
// claim semantics are identical.
type Ledger struct {
	mu    sync.RWMutex
	jobs  map[string]filesure.Job
	cfg   Config
	clock filesure.Clock
	idGen filesure.IDGenerator
}

// New constructs a Ledger.
func New(cfg Config, clock filesure.Clock, idGen filesure.IDGenerator) *Ledger {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LivenessThreshold <= 0 {
		cfg.LivenessThreshold = 5 * time.Minute
	}
	return &Ledger{
		jobs:  make(map[string]filesure.Job),
		cfg:   cfg,
		clock: clock,
		idGen: idGen,
	}
}

// Create allocates an ID and stores a pending record.
func (l *Ledger) Create(_ context.Context, inputRef string) (filesure.Job, error) {
	id, err := l.idGen.NewID()
	if err != nil {
		return filesure.Job{}, fmt.Errorf("allocate job id: %w", err)
	}
	now := l.clock.Now()
	job := filesure.Job{
		ID:        id,
		State:     filesure.StatePending,
		InputRef:  inputRef,
		CreatedAt: now,
		UpdatedAt: now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs[id] = job
	return job, nil
}

// Claim transitions a pending or stale running record to running. Exactly
// one concurrent caller wins for a given ID.
func (l *Ledger) Claim(_ context.Context, id string) (filesure.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[id]
	if !ok {
		return filesure.Job{}, fmt.Errorf("claim %s: %w", id, filesure.ErrNotFound)
	}

	now := l.clock.Now()
	if !l.claimable(job, now) {
		return filesure.Job{}, fmt.Errorf("claim %s: %w", id, filesure.ErrAlreadyClaimed)
	}
	if job.AttemptCount >= l.cfg.MaxAttempts {
		job.State = filesure.StateFailed
		job.ErrorText = filesure.MaxAttemptsErrorText
		job.UpdatedAt = now
		l.jobs[id] = job
		return filesure.Job{}, fmt.Errorf("claim %s: %w", id, filesure.ErrMaxAttempts)
	}

	job.State = filesure.StateRunning
	job.AttemptCount++
	job.UpdatedAt = now
	l.jobs[id] = job
	return job, nil
}

func (l *Ledger) claimable(job filesure.Job, now time.Time) bool {
	switch job.State {
	case filesure.StatePending:
		return true
	case filesure.StateRunning:
		return now.Sub(job.UpdatedAt) > l.cfg.LivenessThreshold
	default:
		return false
	}
}

// Complete transitions running -> succeeded and sets the output reference.
func (l *Ledger) Complete(_ context.Context, id, outputRef string) error {
	return l.finish(id, filesure.StateSucceeded, outputRef, "")
}

// Fail transitions running -> failed and records the failure reason.
func (l *Ledger) Fail(_ context.Context, id, errText string) error {
	return l.finish(id, filesure.StateFailed, "", errText)
}

func (l *Ledger) finish(id string, state filesure.JobState, outputRef, errText string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[id]
	if !ok {
		return fmt.Errorf("finish %s: %w", id, filesure.ErrNotFound)
	}
	if job.State != filesure.StateRunning {
		return fmt.Errorf("finish %s from %s: %w", id, job.State, filesure.ErrInvalidTransition)
	}
	job.State = state
	if outputRef != "" {
		job.OutputRef = outputRef
	}
	if errText != "" {
		job.ErrorText = errText
	}
	job.UpdatedAt = l.clock.Now()
	l.jobs[id] = job
	return nil
}

// Get fetches a job by ID.
func (l *Ledger) Get(_ context.Context, id string) (filesure.Job, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	job, ok := l.jobs[id]
	if !ok {
		return filesure.Job{}, fmt.Errorf("get %s: %w", id, filesure.ErrNotFound)
	}
	return job, nil
}

// NextPending returns the oldest pending job.
func (l *Ledger) NextPending(_ context.Context) (filesure.Job, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pending := make([]filesure.Job, 0)
	for _, job := range l.jobs {
		if job.State == filesure.StatePending {
			pending = append(pending, job)
		}
	}
	if len(pending) == 0 {
		return filesure.Job{}, fmt.Errorf("next pending: %w", filesure.ErrNotFound)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending[0], nil
}

// CountPending returns the number of pending records.
func (l *Ledger) CountPending(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, job := range l.jobs {
		if job.State == filesure.StatePending {
			n++
		}
	}
	return n, nil
}

// CountByState returns record counts keyed by state.
func (l *Ledger) CountByState(_ context.Context) (map[filesure.JobState]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[filesure.JobState]int, 4)
	for _, job := range l.jobs {
		counts[job.State]++
	}
	return counts, nil
}

// CountStaleRunning returns running records past the liveness threshold.
func (l *Ledger) CountStaleRunning(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	now := l.clock.Now()
	n := 0
	for _, job := range l.jobs {
		if job.State == filesure.StateRunning && now.Sub(job.UpdatedAt) > l.cfg.LivenessThreshold {
			n++
		}
	}
	return n, nil
}
