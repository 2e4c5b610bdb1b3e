// Package dispatcher implements the worker tick: claim a batch of
// pending work, run each item's handler concurrently, and settle it
// into completed, retried, or dead-lettered.
package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/metrics"
	"github.com/oakmoss-dev/enrichqueue/internal/registry"
	"github.com/oakmoss-dev/enrichqueue/internal/retry"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oakmoss-dev/enrichqueue/internal/telemetry"
)

// Dispatcher owns one tick of the worker loop. It never runs more
// than MaxConcurrent handlers at once and never returns an error for
// an individual batch's failure -- only a batch's own retry/dead-letter
// transition records that.
type Dispatcher struct {
	store         store.ClaimStore
	registry      *registry.Registry
	maxConcurrent int
	workerID      string
	log           *slog.Logger
	now           func() time.Time
}

func New(s store.ClaimStore, r *registry.Registry, maxConcurrent int, workerID string, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		store:         s,
		registry:      r,
		maxConcurrent: maxConcurrent,
		workerID:      workerID,
		log:           log,
		now:           time.Now,
	}
}

// Summary is the per-tick accounting the worker HTTP endpoint and the
// standalone poller binary both report.
type Summary struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Tick claims up to the spare concurrency budget and runs every
// claimed batch to completion before returning.
func (d *Dispatcher) Tick(ctx context.Context) (Summary, error) {
	processing, err := d.store.CountProcessing(ctx)
	if err != nil {
		return Summary{}, err
	}
	want := d.maxConcurrent - processing
	if want <= 0 {
		return Summary{}, nil
	}

	batches, err := d.store.Claim(ctx, want)
	if err != nil {
		return Summary{}, err
	}
	if len(batches) == 0 {
		return Summary{}, nil
	}

	summary := Summary{Claimed: len(batches)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func(b store.Batch) {
			defer wg.Done()
			// Graceful shutdown: once claimed, finish this batch even if
			// the tick's run context is canceled mid-flight.
			runCtx := context.WithoutCancel(ctx)
			ok := d.dispatchOne(runCtx, b)
			mu.Lock()
			if ok {
				summary.Completed++
			} else {
				summary.Failed++
			}
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	return summary, nil
}

// dispatchOne runs one batch's handler and settles its outcome. It
// returns true if the batch completed successfully.
func (d *Dispatcher) dispatchOne(ctx context.Context, b store.Batch) bool {
	traceCtx, end := d.startSpan(b)
	defer end()

	handler, ok := d.registry.Resolve(b.BatchType)
	if !ok {
		d.settleFailure(ctx, b, retry.Terminal(unknownHandlerError(b.BatchType)))
		return false
	}

	metrics.IncAttempts(b.BatchType)
	start := d.now()
	err := handler.Handle(traceCtx, json.RawMessage(b.Metadata))
	metrics.ObserveRuntime(b.BatchType, d.now().Sub(start).Seconds())

	if err != nil {
		metrics.IncFailure(b.BatchType)
		d.settleFailure(ctx, b, err)
		return false
	}

	metrics.IncSuccess(b.BatchType)
	if completeErr := d.store.CompleteBatch(ctx, b.ID); completeErr != nil {
		d.log.Error("complete batch", "batch_id", b.ID, "batch_type", b.BatchType, "error", completeErr)
		return false
	}
	return true
}

func (d *Dispatcher) settleFailure(ctx context.Context, b store.Batch, err error) {
	limit := retry.LimitFor(b.BatchType)
	nextAttempt := b.RetryCount + 1

	if nextAttempt >= limit {
		d.log.Warn("dead-lettering batch", "batch_id", b.ID, "batch_type", b.BatchType, "retry_count", b.RetryCount, "error", err)
		if dlqErr := d.store.DeadLetterBatch(ctx, b.ID, err.Error()); dlqErr != nil {
			d.log.Error("dead letter batch", "batch_id", b.ID, "error", dlqErr)
			return
		}
		if insertErr := d.store.InsertDeadLetterItem(ctx, store.DeadLetterItem{
			ItemType:        b.BatchType,
			ErrorMessage:    err.Error(),
			OriginalBatchID: b.ID,
			Metadata:        b.Metadata,
		}); insertErr != nil {
			d.log.Error("insert dead letter item", "batch_id", b.ID, "error", insertErr)
		}
		metrics.IncDeadLettered(b.BatchType)
		return
	}

	delay := retry.BackoffDelay(nextAttempt)
	nextVisibleAt := d.now().Add(delay)
	if retryErr := d.store.RetryBatch(ctx, b.ID, nextAttempt, err.Error(), nextVisibleAt); retryErr != nil {
		d.log.Error("retry batch", "batch_id", b.ID, "error", retryErr)
	}
}

func (d *Dispatcher) startSpan(b store.Batch) (context.Context, func()) {
	ctx := telemetry.ContextWithTraceparent(b.Traceparent)
	tracer := otel.Tracer("enrichqueue/dispatcher")
	ctx, span := tracer.Start(ctx, "dispatch_batch",
		trace.WithAttributes(
			attribute.String("batch_id", b.ID),
			attribute.String("batch_type", b.BatchType),
			attribute.String("worker_id", d.workerID),
		),
	)
	return ctx, func() { span.End() }
}

type unknownHandlerError string

func (e unknownHandlerError) Error() string {
	return "no handler registered for batch_type " + string(e)
}
