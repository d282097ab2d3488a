// Package bridge publishes the scaling signal derived from the ledger.
package bridge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
	"github.com/Anjan854/filesure-devops-starter/internal/metrics"
)

// Bridge polls the ledger on a fixed interval and republishes the counts
// as Prometheus series. It holds no write access to the ledger; every
// value is recomputed from ledger truth so the gauge cannot drift.
type Bridge struct {
	ledger   filesure.Ledger
	interval time.Duration
	logger   *zap.Logger

	lastSucceeded int
	lastFailed    int
	primed        bool
}

// New constructs a Bridge.
func New(ledger filesure.Ledger, interval time.Duration, logger *zap.Logger) *Bridge {
	metrics.Init()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Bridge{
		ledger:   ledger,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context finishes. The first poll happens
// immediately so a fresh process exposes a signal before the first tick.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	if err := b.Poll(ctx); err != nil {
		b.logger.Error("scaling signal poll failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Poll(ctx); err != nil {
				b.logger.Error("scaling signal poll failed", zap.Error(err))
			}
		}
	}
}

// Poll recomputes the gauges and advances the outcome counters by the
// deltas observed since the previous poll. Terminal states never drain,
// so the deltas are monotonic; the counters restart at zero with the
// process.
func (b *Bridge) Poll(ctx context.Context) error {
	counts, err := b.ledger.CountByState(ctx)
	if err != nil {
		return fmt.Errorf("count by state: %w", err)
	}
	stale, err := b.ledger.CountStaleRunning(ctx)
	if err != nil {
		return fmt.Errorf("count stale running: %w", err)
	}

	metrics.SetPendingJobs(counts[filesure.StatePending])
	metrics.SetStaleRunningJobs(stale)

	succeeded := counts[filesure.StateSucceeded]
	failed := counts[filesure.StateFailed]
	if b.primed {
		metrics.AddSucceeded(succeeded - b.lastSucceeded)
		metrics.AddFailed(failed - b.lastFailed)
	}
	b.lastSucceeded = succeeded
	b.lastFailed = failed
	b.primed = true

	b.logger.Debug("scaling signal published",
		zap.Int("pending", counts[filesure.StatePending]),
		zap.Int("running", counts[filesure.StateRunning]),
		zap.Int("stale_running", stale),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	return nil
}
