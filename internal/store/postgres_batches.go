package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// InsertBatch is the only write path handlers get for emitting child
// batches (spec §4.3: handlers are pure with respect to status).
// Active-state idempotency (invariant 3) is enforced directly here via
// a partial unique index on (batch_type, metadata_hash) filtered to
// active statuses, so a handler rerun with the same metadata is a
// silent no-op rather than a duplicate row.
func (p *Postgres) InsertBatch(ctx context.Context, batchType string, metadata []byte, priority int, traceparent string) (string, bool, error) {
	hash, err := MetadataHash(batchType, metadata)
	if err != nil {
		return "", false, err
	}

	var id string
	err = p.pool.QueryRow(ctx, `
		INSERT INTO batches (id, batch_type, status, priority, metadata, metadata_hash, traceparent, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, 'pending', $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (batch_type, metadata_hash) WHERE status IN ('pending', 'processing')
		DO NOTHING
		RETURNING id
	`, batchType, priority, metadata, hash, traceparent).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict hit: an active batch with this (type, hash)
			// already exists. Look it up so callers can still log
			// and chain off a concrete id.
			var existingID string
			lookupErr := p.pool.QueryRow(ctx, `
				SELECT id FROM batches
				WHERE batch_type = $1 AND metadata_hash = $2 AND status IN ('pending', 'processing')
				ORDER BY created_at DESC LIMIT 1
			`, batchType, hash).Scan(&existingID)
			if lookupErr != nil {
				return "", false, lookupErr
			}
			return existingID, false, nil
		}
		return "", false, err
	}
	return id, true, nil
}
