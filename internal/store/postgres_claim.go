package store

import (
	"context"
	"time"
)

// Claim leases up to limit pending batches, oldest-failing-first
// within "fresh work first": ORDER BY retry_count ASC, created_at ASC
// is a fairness hint, not a total order (spec §5).
func (p *Postgres) Claim(ctx context.Context, limit int) ([]Batch, error) {
	now := time.Now().UTC()
	rows, err := p.pool.Query(ctx, `
		UPDATE batches
		SET status = 'processing',
			claimed_by = $1,
			claim_expires_at = $2,
			started_at = COALESCE(started_at, $3),
			updated_at = $3
		WHERE id IN (
			SELECT id FROM batches
			WHERE status = 'pending'
				AND (claim_expires_at IS NULL OR claim_expires_at < $3)
				AND (next_visible_at IS NULL OR next_visible_at <= $3)
			ORDER BY retry_count ASC, created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, batch_type, status, priority, retry_count, items_total, items_processed,
			items_failed, claimed_by, claim_expires_at, started_at, completed_at,
			COALESCE(error_message, ''), metadata, metadata_hash, next_visible_at,
			COALESCE(traceparent, ''), created_at, updated_at
	`, newWorkerID(), now.Add(DefaultLeaseFor), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (p *Postgres) CountProcessing(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(1) FROM batches WHERE status = 'processing'`).Scan(&n)
	return n, err
}

func (p *Postgres) CompleteBatch(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'completed',
			completed_at = $2,
			items_processed = GREATEST(items_processed, 1),
			items_total = GREATEST(items_total, 1),
			updated_at = $2
		WHERE id = $1
	`, id, now)
	return err
}

func (p *Postgres) RetryBatch(ctx context.Context, id string, nextRetryCount int, errMsg string, nextVisibleAt time.Time) error {
	now := time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'pending',
			retry_count = $2,
			error_message = $3,
			claimed_by = NULL,
			claim_expires_at = NULL,
			next_visible_at = $4,
			updated_at = $5
		WHERE id = $1
	`, id, nextRetryCount, errMsg, nextVisibleAt, now)
	return err
}

func (p *Postgres) DeadLetterBatch(ctx context.Context, id, errMsg string) error {
	now := time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'error',
			completed_at = $2,
			error_message = $3,
			updated_at = $2
		WHERE id = $1
	`, id, now, errMsg)
	return err
}

func (p *Postgres) GetTraceparent(ctx context.Context, id string) (string, error) {
	var tp string
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(traceparent, '') FROM batches WHERE id = $1`, id).Scan(&tp)
	return tp, err
}

// ResetExpired reclaims leases stranded by a crashed worker. The
// predicate subtracts expiryMinutes from now rather than comparing
// against claim_expires_at directly, matching spec §4.1: a lease is
// only reclaimable expiryMinutes after it expired, not the instant it
// expires, to give a still-alive-but-slow worker a cushion.
func (p *Postgres) ResetExpired(ctx context.Context, expiryMinutes int) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(expiryMinutes) * time.Minute)
	tag, err := p.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'pending',
			claimed_by = NULL,
			claim_expires_at = NULL,
			error_message = CASE
				WHEN error_message IS NULL OR error_message = '' THEN 'Batch expired and was reset.'
				ELSE error_message || ' | Batch expired and was reset.'
			END,
			updated_at = $2
		WHERE status = 'processing' AND claim_expires_at < $1
	`, cutoff, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// RequeueDLQ pulls dead-letter items under the requeue cap, inserts a
// fresh pending batch per item, and bumps the item's own retry
// counter. The DLQ row is never deleted -- spec §3 lifecycle.
func (p *Postgres) RequeueDLQ(ctx context.Context, limit int) (int, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, item_type, metadata, retry_count
		FROM dead_letter_items
		WHERE retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, DLQMaxRequeues, limit)
	if err != nil {
		return 0, err
	}
	type candidate struct {
		id         string
		itemType   string
		metadata   []byte
		retryCount int
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.itemType, &c.metadata, &c.retryCount); err != nil {
			rows.Close()
			return 0, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	count := 0
	for _, c := range candidates {
		hash, err := MetadataHash(c.itemType, c.metadata)
		if err != nil {
			return count, err
		}
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return count, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO batches (id, batch_type, status, retry_count, metadata, metadata_hash, created_at, updated_at)
			VALUES (gen_random_uuid(), $1, 'pending', $2, $3, $4, NOW(), NOW())
		`, c.itemType, c.retryCount+1, c.metadata, hash)
		if err != nil {
			_ = tx.Rollback(ctx)
			return count, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE dead_letter_items SET retry_count = retry_count + 1, updated_at = NOW() WHERE id = $1
		`, c.id)
		if err != nil {
			_ = tx.Rollback(ctx)
			return count, err
		}
		if err := tx.Commit(ctx); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (p *Postgres) Cleanup(ctx context.Context, days int) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM batches
		WHERE status = 'completed' AND completed_at < NOW() - ($1 || ' days')::interval
	`, days)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
