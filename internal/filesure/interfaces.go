package filesure

import (
	"context"
	"time"
)

// Ledger is the authoritative store of job records. All mutation goes
// through its guarded transition operations; it is the single
// synchronization point between otherwise independent worker processes.
type Ledger interface {
	// Create allocates an ID and writes a pending record. Either the full
	// record exists afterwards or nothing does.
	Create(ctx context.Context, inputRef string) (Job, error)

	// Claim atomically moves a pending (or stale running) record to
	// running and increments its attempt count. Exactly one concurrent
	// caller wins; losers observe ErrAlreadyClaimed. A job whose attempt
	// budget is spent is forced to failed and ErrMaxAttempts is returned.
	Claim(ctx context.Context, id string) (Job, error)

	// Complete moves running -> succeeded and sets the output reference.
	Complete(ctx context.Context, id, outputRef string) error

	// Fail moves running -> failed and records the failure reason.
	Fail(ctx context.Context, id, errText string) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (Job, error)

	// NextPending returns the oldest pending job, or ErrNotFound when the
	// queue is drained.
	NextPending(ctx context.Context) (Job, error)

	// CountPending returns the number of records currently pending.
	CountPending(ctx context.Context) (int, error)

	// CountByState returns record counts keyed by state.
	CountByState(ctx context.Context) (map[JobState]int, error)

	// CountStaleRunning returns running records whose last update is older
	// than the liveness threshold, i.e. jobs eligible for re-claim.
	CountStaleRunning(ctx context.Context) (int, error)
}

// BlobSink writes output artifacts and returns a URI. Keys are derived
// deterministically from the job ID, so repeated writes are idempotent.
type BlobSink interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// Fetcher retrieves the source document named by a job's input reference.
type Fetcher interface {
	Fetch(ctx context.Context, inputRef string) (Document, error)
}

// Transformer converts fetched bytes into the output representation.
// Implementations must be pure functions of their input.
type Transformer interface {
	Name() string
	Transform(input []byte) ([]byte, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for integrity/deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
