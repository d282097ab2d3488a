// Package worker implements the single-job processing pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
	"github.com/Anjan854/filesure-devops-starter/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	BlobPrefix  string
	ContentType string
	Topic       string
}

// Outcome is the result of one worker run, mapped to the process exit
// code by the caller: NoOp and Succeeded exit zero, Failed does not.
type Outcome int

// Worker run outcomes.
const (
	OutcomeSucceeded Outcome = iota
	OutcomeNoOp
	OutcomeFailed
)

// String names the outcome for logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeNoOp:
		return "noop"
	default:
		return "failed"
	}
}

// Worker executes the fetch/transform/store pipeline for exactly one job.
// Each instance runs in its own process; the only coordination with other
// workers is the ledger's atomic claim.
type Worker struct {
	ledger      filesure.Ledger
	sink        filesure.BlobSink
	fetcher     filesure.Fetcher
	transformer filesure.Transformer
	publisher   filesure.Publisher
	hasher      filesure.Hasher
	clock       filesure.Clock
	cfg         Config
	logger      *zap.Logger
}

// New constructs a Worker.
func New(
	ledger filesure.Ledger,
	sink filesure.BlobSink,
	fetcher filesure.Fetcher,
	transformer filesure.Transformer,
	publisher filesure.Publisher,
	hasher filesure.Hasher,
	clock filesure.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	metrics.Init()
	return &Worker{
		ledger:      ledger,
		sink:        sink,
		fetcher:     fetcher,
		transformer: transformer,
		publisher:   publisher,
		hasher:      hasher,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run claims the job and drives it to a terminal state. The five steps are
// strictly sequential; each store write is acknowledged before the next
// step starts. An interrupted run writes nothing further and leaves
// recovery to the stale-claim path.
func (w *Worker) Run(ctx context.Context, jobID string) (Outcome, error) {
	start := time.Now()
	outcome, err := w.process(ctx, jobID)
	metrics.ObserveJob(outcome.String(), time.Since(start))
	return outcome, err
}

func (w *Worker) process(ctx context.Context, jobID string) (Outcome, error) {
	job, err := w.ledger.Claim(ctx, jobID)
	if err != nil {
		return w.handleLostClaim(jobID, err)
	}
	w.logger.Info("job claimed",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.AttemptCount),
	)

	doc, err := w.fetcher.Fetch(ctx, job.InputRef)
	if err != nil {
		return w.fail(ctx, job, fmt.Sprintf("FetchFailure: %v", err))
	}

	output, err := w.transformer.Transform(doc.Body)
	if err != nil {
		return w.fail(ctx, job, fmt.Sprintf("TransformFailure: %v", err))
	}

	uri, err := w.sink.Put(ctx, w.blobKey(job.ID), w.cfg.ContentType, output)
	if err != nil {
		return w.fail(ctx, job, fmt.Sprintf("SinkWriteFailure: %v", err))
	}

	if err := w.ledger.Complete(ctx, job.ID, uri); err != nil {
		if errors.Is(err, filesure.ErrInvalidTransition) {
			// Contract violation: the record moved underneath us. Leave it
			// for inspection.
			w.logger.Error("complete rejected", zap.String("job_id", job.ID), zap.Error(err))
			return OutcomeFailed, err
		}
		return OutcomeFailed, fmt.Errorf("complete job: %w", err)
	}

	w.publishCompletion(ctx, job, uri, output)

	w.logger.Info("job succeeded",
		zap.String("job_id", job.ID),
		zap.String("output_ref", uri),
		zap.Int("attempt", job.AttemptCount),
	)
	return OutcomeSucceeded, nil
}

// handleLostClaim maps claim-time errors to outcomes. Losing the race or
// finding no record signals redundant dispatch, not failure.
func (w *Worker) handleLostClaim(jobID string, err error) (Outcome, error) {
	switch {
	case errors.Is(err, filesure.ErrAlreadyClaimed):
		metrics.ObserveClaimConflict()
		w.logger.Info("job already claimed, exiting", zap.String("job_id", jobID))
		return OutcomeNoOp, nil
	case errors.Is(err, filesure.ErrNotFound):
		w.logger.Info("job not found, exiting", zap.String("job_id", jobID))
		return OutcomeNoOp, nil
	case errors.Is(err, filesure.ErrMaxAttempts):
		w.logger.Warn("job attempt budget spent", zap.String("job_id", jobID))
		return OutcomeNoOp, nil
	default:
		return OutcomeFailed, fmt.Errorf("claim job: %w", err)
	}
}

func (w *Worker) fail(ctx context.Context, job filesure.Job, reason string) (Outcome, error) {
	w.logger.Error("job failed",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.AttemptCount),
		zap.String("reason", reason),
	)
	if err := w.ledger.Fail(ctx, job.ID, reason); err != nil {
		w.logger.Error("fail status update", zap.String("job_id", job.ID), zap.Error(err))
		return OutcomeFailed, fmt.Errorf("record failure: %w", err)
	}
	return OutcomeFailed, errors.New(reason)
}

// blobKey derives the deterministic output key for a job, so a retried
// attempt overwrites any partial prior write instead of duplicating it.
func (w *Worker) blobKey(jobID string) string {
	if w.cfg.BlobPrefix == "" {
		return fmt.Sprintf("%s/output", jobID)
	}
	return fmt.Sprintf("%s/%s/output", w.cfg.BlobPrefix, jobID)
}

// publishCompletion emits the completion event when a publisher is wired.
// The job is already terminal; a publish error is logged, not propagated.
func (w *Worker) publishCompletion(ctx context.Context, job filesure.Job, uri string, output []byte) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	hash, err := w.hasher.Hash(output)
	if err != nil {
		w.logger.Warn("hash output", zap.String("job_id", job.ID), zap.Error(err))
	}
	event := filesure.CompletionEvent{
		JobID:     job.ID,
		State:     string(filesure.StateSucceeded),
		InputRef:  job.InputRef,
		OutputRef: uri,
		Hash:      hash,
		Attempt:   job.AttemptCount,
		Timestamp: w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Warn("publish completion event", zap.String("job_id", job.ID), zap.Error(err))
	}
}
