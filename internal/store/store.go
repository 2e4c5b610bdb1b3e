package store

import (
	"context"
	"time"
)

// Store is the full C1 surface. Collaborators depend on the narrower
// interfaces below (ClaimStore, MaintenanceStore, ...); Store exists
// so a single Postgres-backed implementation can satisfy all of them
// without every constructor needing its own cast.
type Store interface {
	ClaimStore
	MaintenanceStore
	MonitorStore
	RateLimitStore
	BatchWriter
	ProducerStore
	Ping(ctx context.Context) error
}

// ClaimStore is what the dispatcher needs to lease and complete work.
type ClaimStore interface {
	Claim(ctx context.Context, limit int) ([]Batch, error)
	CountProcessing(ctx context.Context) (int, error)
	CompleteBatch(ctx context.Context, id string) error
	RetryBatch(ctx context.Context, id string, nextRetryCount int, errMsg string, nextVisibleAt time.Time) error
	DeadLetterBatch(ctx context.Context, id, errMsg string) error
	InsertDeadLetterItem(ctx context.Context, item DeadLetterItem) error
	GetTraceparent(ctx context.Context, id string) (string, error)
}

// MaintenanceStore is what the maintenance loop needs.
type MaintenanceStore interface {
	ResetExpired(ctx context.Context, expiryMinutes int) (int, error)
	RequeueDLQ(ctx context.Context, limit int) (int, error)
	Cleanup(ctx context.Context, days int) (int, error)
}

// MonitorStore is what the health monitor reads.
type MonitorStore interface {
	QueueDepths(ctx context.Context) ([]QueueDepth, error)
	CountDeadLetterSince(ctx context.Context, hours int) (int, error)
	CountDeadLetterTotal(ctx context.Context) (int, error)
	CountErrorBatchesSince(ctx context.Context, hours int) (int, error)
	CountStalledBatches(ctx context.Context, staleAfterMinutes int) (int, error)
	ListRateLimits(ctx context.Context) ([]RateLimit, error)
	ListDeadLetterItems(ctx context.Context, limit int) ([]DeadLetterItem, error)
}

// RateLimitStore backs the rate-limit gate.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, apiName, endpoint string) (RateLimit, bool, error)
	TrackRateLimit(ctx context.Context, rl RateLimit) error
}

// BatchWriter is the only write path handlers get: they may emit
// child batches, never touch status directly.
type BatchWriter interface {
	InsertBatch(ctx context.Context, batchType string, metadata []byte, priority int, traceparent string) (id string, created bool, err error)
}

// ProducerStore backs normalize_producer_name's write side.
type ProducerStore interface {
	UpsertProducerCredit(ctx context.Context, canonicalName string, alias string, sourceCredit []byte) error
}
