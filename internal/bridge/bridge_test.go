package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
)

type scriptedLedger struct {
	counts map[filesure.JobState]int
	stale  int
	err    error
}

func (l *scriptedLedger) CountByState(context.Context) (map[filesure.JobState]int, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.counts, nil
}

func (l *scriptedLedger) CountStaleRunning(context.Context) (int, error) {
	return l.stale, l.err
}

func (l *scriptedLedger) Create(context.Context, string) (filesure.Job, error) {
	return filesure.Job{}, filesure.ErrStorageUnavailable
}

func (l *scriptedLedger) Claim(context.Context, string) (filesure.Job, error) {
	return filesure.Job{}, filesure.ErrStorageUnavailable
}

func (l *scriptedLedger) Complete(context.Context, string, string) error {
	return filesure.ErrStorageUnavailable
}

func (l *scriptedLedger) Fail(context.Context, string, string) error {
	return filesure.ErrStorageUnavailable
}

func (l *scriptedLedger) Get(context.Context, string) (filesure.Job, error) {
	return filesure.Job{}, filesure.ErrNotFound
}

func (l *scriptedLedger) NextPending(context.Context) (filesure.Job, error) {
	return filesure.Job{}, filesure.ErrNotFound
}

func (l *scriptedLedger) CountPending(context.Context) (int, error) {
	return l.counts[filesure.StatePending], l.err
}

func TestPollPrimesBaselineBeforeCountingDeltas(t *testing.T) {
	ledger := &scriptedLedger{counts: map[filesure.JobState]int{
		filesure.StatePending:   5,
		filesure.StateSucceeded: 10,
		filesure.StateFailed:    2,
	}}
	b := New(ledger, time.Second, zap.NewNop())
	ctx := context.Background()

	// First poll only establishes the baseline.
	require.NoError(t, b.Poll(ctx))
	assert.True(t, b.primed)
	assert.Equal(t, 10, b.lastSucceeded)
	assert.Equal(t, 2, b.lastFailed)

	// Later polls track the advancing ledger totals.
	ledger.counts[filesure.StateSucceeded] = 13
	ledger.counts[filesure.StateFailed] = 3
	require.NoError(t, b.Poll(ctx))
	assert.Equal(t, 13, b.lastSucceeded)
	assert.Equal(t, 3, b.lastFailed)
}

func TestPollPropagatesLedgerErrors(t *testing.T) {
	ledger := &scriptedLedger{err: filesure.ErrStorageUnavailable}
	b := New(ledger, time.Second, zap.NewNop())

	err := b.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, filesure.ErrStorageUnavailable)
	assert.False(t, b.primed, "a failed poll must not establish a baseline")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ledger := &scriptedLedger{counts: map[filesure.JobState]int{}}
	b := New(ledger, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop after context cancel")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	b := New(&scriptedLedger{}, 0, zap.NewNop())
	assert.Equal(t, 15*time.Second, b.interval)
}
