package filesure

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Sentinel errors returned by ledger and front-door operations. Callers
// match them with errors.Is; implementations wrap them with context.
var (
	// ErrNotFound means no job record exists for the given ID.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyClaimed means another worker won the claim race; the loser
	// must exit without side effects.
	ErrAlreadyClaimed = errors.New("job already claimed")

	// ErrInvalidTransition means a guarded transition was attempted from a
	// state that does not permit it. The job is left untouched.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrMaxAttempts means the job exhausted its attempt budget and was
	// forced to the failed state.
	ErrMaxAttempts = errors.New("max attempts exceeded")

	// ErrStorageUnavailable means the backing store could not be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrValidation means the submission input was rejected before any
	// state was created.
	ErrValidation = errors.New("validation failed")
)

// MaxAttemptsErrorText is recorded on jobs forced to failed by the attempt
// bound. It is part of the persisted record contract, not a log message.
const MaxAttemptsErrorText = "MaxAttemptsExceeded"

// ValidateInputRef rejects malformed submission input. A reference must be
// non-empty and carry an explicit scheme; the ledger otherwise treats it as
// opaque.
func ValidateInputRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("%w: input_ref is required", ErrValidation)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: input_ref is not a valid reference: %v", ErrValidation, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: input_ref must carry a scheme", ErrValidation)
	}
	return nil
}
