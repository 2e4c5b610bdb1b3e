// Package maintenance runs the housekeeping sweep that keeps the
// queue from accumulating stuck leases, abandoned dead-letter items,
// and stale completed rows.
package maintenance

import (
	"context"
	"log/slog"

	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

// Runner executes the three-step sweep in order, aborting on the
// first error so a broken step never masks the next one's results.
type Runner struct {
	store             store.MaintenanceStore
	expiryMinutes     int
	dlqRequeueLimit   int
	cleanupRetainDays int
	log               *slog.Logger
}

func New(s store.MaintenanceStore, expiryMinutes, dlqRequeueLimit, cleanupRetainDays int, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:             s,
		expiryMinutes:     expiryMinutes,
		dlqRequeueLimit:   dlqRequeueLimit,
		cleanupRetainDays: cleanupRetainDays,
		log:               log,
	}
}

// Summary reports what each step of the sweep did.
type Summary struct {
	ExpiredReset int `json:"expired_reset"`
	DLQRequeued  int `json:"dlq_requeued"`
	Cleaned      int `json:"cleaned"`
}

// Run performs reset_expired, then requeue_dlq, then cleanup, in that
// order. A failure in any step stops the sweep: a partially-run sweep
// is always safe to resume on the next tick, but running cleanup
// against a store that just failed reset_expired could delete rows
// reset_expired would have reclaimed.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	reset, err := r.store.ResetExpired(ctx, r.expiryMinutes)
	if err != nil {
		return summary, err
	}
	summary.ExpiredReset = reset
	if reset > 0 {
		r.log.Info("reset expired leases", "count", reset)
	}

	requeued, err := r.store.RequeueDLQ(ctx, r.dlqRequeueLimit)
	if err != nil {
		return summary, err
	}
	summary.DLQRequeued = requeued
	if requeued > 0 {
		r.log.Info("requeued dead-letter items", "count", requeued)
	}

	cleaned, err := r.store.Cleanup(ctx, r.cleanupRetainDays)
	if err != nil {
		return summary, err
	}
	summary.Cleaned = cleaned
	if cleaned > 0 {
		r.log.Info("cleaned up old completed batches", "count", cleaned)
	}

	return summary, nil
}
