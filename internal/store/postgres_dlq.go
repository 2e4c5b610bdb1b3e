package store

import "context"

func (p *Postgres) InsertDeadLetterItem(ctx context.Context, item DeadLetterItem) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO dead_letter_items (id, item_type, error_message, original_batch_id, original_item_id, retry_count, metadata, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 0, $5, NOW(), NOW())
	`, item.ItemType, item.ErrorMessage, item.OriginalBatchID, item.OriginalItemID, item.Metadata)
	return err
}

// ListDeadLetterItems returns the most recent parked items, newest
// first, for an operator to inspect before deciding whether to
// RequeueDLQ.
func (p *Postgres) ListDeadLetterItems(ctx context.Context, limit int) ([]DeadLetterItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, item_type, COALESCE(error_message, ''), COALESCE(original_batch_id, ''),
			COALESCE(original_item_id, ''), retry_count, metadata, created_at, updated_at
		FROM dead_letter_items
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DeadLetterItem
	for rows.Next() {
		var item DeadLetterItem
		if err := rows.Scan(
			&item.ID, &item.ItemType, &item.ErrorMessage, &item.OriginalBatchID,
			&item.OriginalItemID, &item.RetryCount, &item.Metadata, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
