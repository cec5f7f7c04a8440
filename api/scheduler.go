/*
scheduler.go - Quota counter pruning scheduler

PURPOSE:
  Periodically deletes daily exchange-quota counters that are older than
  the retention window. Counters are never needed for correctness once
  their day has passed; a missing row already reads as zero uses.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Errors are logged and the next tick tries again

CONFIGURATION:
  - Interval:   How often to prune (default: 1 hour)
  - RetainDays: Days of counters to keep, today included (default: 7)
  - Enabled:    Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPruneScheduler(service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - quota/tracker.go: Prune
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/points-engine/economy"
)

// PruneScheduler removes stale quota counters.
type PruneScheduler struct {
	Service    *economy.Service
	Interval   time.Duration
	RetainDays int
	Enabled    bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPruneScheduler creates a new scheduler.
func NewPruneScheduler(svc *economy.Service, logger *slog.Logger) *PruneScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneScheduler{
		Service:    svc,
		Interval:   time.Hour,
		RetainDays: 7,
		Enabled:    true,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (ps *PruneScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled || ps.Interval <= 0 {
		ps.logger.Info("prune scheduler disabled")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.Interval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run(ps.ticker, ps.stop)

	ps.logger.Info("prune scheduler started", "interval", ps.Interval, "retain_days", ps.RetainDays)
}

// Stop stops the scheduler and waits for an in-flight prune.
func (ps *PruneScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.logger.Info("prune scheduler stopped")
	}
}

func (ps *PruneScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			ps.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce prunes now and returns the number of deleted counters.
func (ps *PruneScheduler) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := ps.Service.PruneQuota(ctx, ps.RetainDays)
	if err != nil {
		ps.logger.Error("prune quota counters", "error", err)
		return 0
	}
	if n > 0 {
		ps.logger.Info("pruned quota counters", "deleted", n)
	}
	return n
}
