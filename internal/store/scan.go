package store

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (Batch, error) {
	var b Batch
	if err := row.Scan(
		&b.ID, &b.BatchType, &b.Status, &b.Priority, &b.RetryCount, &b.ItemsTotal, &b.ItemsProcessed,
		&b.ItemsFailed, &b.ClaimedBy, &b.ClaimExpiresAt, &b.StartedAt, &b.CompletedAt,
		&b.ErrorMessage, &b.Metadata, &b.MetadataHash, &b.NextVisibleAt,
		&b.Traceparent, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return Batch{}, err
	}
	return b, nil
}

var processPID = os.Getpid()

// newWorkerID identifies the claiming process for claimed_by. It does
// not need to be globally unique forever, only unique enough that two
// concurrent claimers never look like the same owner.
func newWorkerID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%s", host, processPID, uuid.NewString()[:8])
}
