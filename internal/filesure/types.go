// Package filesure defines core types shared across subsystems.
package filesure

import "time"

// JobState represents the lifecycle state of a processing job.
type JobState string

// Job state values persisted in the ledger. Transitions move forward only:
// pending -> running -> succeeded|failed, with running -> pending permitted
// solely through the stale-claim recovery path.
const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// Terminal reports whether a job in this state can never transition again.
func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Job is the record persisted for each submitted processing request. The
// ledger owns State; a worker owns OutputRef and ErrorText only for the
// single update it writes back.
type Job struct {
	ID           string    `json:"id"`
	State        JobState  `json:"state"`
	InputRef     string    `json:"input_ref"`
	OutputRef    string    `json:"output_ref,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	ErrorText    string    `json:"error_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Document is the fetched source content handed to a Transformer.
type Document struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// CompletionEvent is published after a job reaches a terminal state.
type CompletionEvent struct {
	JobID     string `json:"job_id"`
	State     string `json:"state"`
	InputRef  string `json:"input_ref"`
	OutputRef string `json:"output_ref,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Attempt   int    `json:"attempt"`
	Timestamp string `json:"timestamp"`
}
