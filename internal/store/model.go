// Package store holds the durable batch queue: the batches table, the
// dead-letter area, and the per-endpoint rate-limit counters that the
// rest of the engine treats as the single source of truth.
package store

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// DLQMaxRequeues caps how many times a dead-letter item may be
// requeued before it is left parked for good.
const DLQMaxRequeues = 3

// DefaultLeaseFor is the lease Claim writes into claim_expires_at;
// reset_expired reclaims a batch only once that lease has been
// expired for a further expiry window.
const DefaultLeaseFor = 5 * time.Minute

// DefaultExpiryMinutes is the default lease-recovery window used by
// reset_expired: it exceeds DefaultLeaseFor to give a cushion before a
// still-live worker's lease is stolen out from under it.
const DefaultExpiryMinutes = 30

// Batch is one unit of pending work.
type Batch struct {
	ID              string
	BatchType       string
	Status          Status
	Priority        int
	RetryCount      int
	ItemsTotal      int
	ItemsProcessed  int
	ItemsFailed     int
	ClaimedBy       string
	ClaimExpiresAt  *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ErrorMessage    string
	Metadata        json.RawMessage
	MetadataHash    string
	NextVisibleAt   *time.Time
	Traceparent     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeadLetterItem is a parked failure. Removal is implicit: an item
// with RetryCount >= DLQMaxRequeues is simply never selected again by
// RequeueDLQ.
type DeadLetterItem struct {
	ID               string
	ItemType         string
	ErrorMessage     string
	OriginalBatchID  string
	OriginalItemID   string
	RetryCount       int
	Metadata         json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RateLimit is the last observed state of one (api, endpoint) pair.
type RateLimit struct {
	APIName           string
	Endpoint          string
	RequestsRemaining int
	RequestsLimit     int
	ResetAt           time.Time
	LastResponse      string
}

// QueueDepth is a per-batch_type, per-status count, plus the
// "pending for longer than an hour" bucket the monitor watches.
type QueueDepth struct {
	BatchType     string
	Status        Status
	Count         int
	PendingOver1h int
}

// Producer is the cross-handler merge target for writer/producer
// credits discovered by the producer_discovery handler.
type Producer struct {
	CanonicalName string
	Aliases       []string
	SourceCredits json.RawMessage
	TrackCount    int
	UpdatedAt     time.Time
}
