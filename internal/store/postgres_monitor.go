package store

import (
	"context"
	"time"
)

// QueueDepths returns per-(batch_type, status) counts plus the
// "pending for more than an hour" bucket the monitor alerts on. The
// origin system was reported to sometimes read .length off a
// head:true existence-count query here (spec §9, Open Question 4);
// this implementation always uses the canonical COUNT(1) primitive.
func (p *Postgres) QueueDepths(ctx context.Context) ([]QueueDepth, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT batch_type, status, COUNT(1),
			COUNT(1) FILTER (WHERE status = 'pending' AND created_at < NOW() - INTERVAL '1 hour')
		FROM batches
		GROUP BY batch_type, status
		ORDER BY batch_type, status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueueDepth
	for rows.Next() {
		var qd QueueDepth
		if err := rows.Scan(&qd.BatchType, &qd.Status, &qd.Count, &qd.PendingOver1h); err != nil {
			return nil, err
		}
		out = append(out, qd)
	}
	return out, rows.Err()
}

func (p *Postgres) CountDeadLetterSince(ctx context.Context, hours int) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM dead_letter_items WHERE created_at > $1
	`, time.Now().UTC().Add(-time.Duration(hours)*time.Hour)).Scan(&n)
	return n, err
}

// CountDeadLetterTotal returns the number of dead-letter items still
// parked, regardless of age -- the gauge the /metrics endpoint
// exposes, as opposed to CountDeadLetterSince's rolling alert window.
func (p *Postgres) CountDeadLetterTotal(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(1) FROM dead_letter_items`).Scan(&n)
	return n, err
}

func (p *Postgres) CountErrorBatchesSince(ctx context.Context, hours int) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM batches WHERE status = 'error' AND updated_at > $1
	`, time.Now().UTC().Add(-time.Duration(hours)*time.Hour)).Scan(&n)
	return n, err
}

func (p *Postgres) CountStalledBatches(ctx context.Context, staleAfterMinutes int) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM batches WHERE status = 'processing' AND started_at < $1
	`, time.Now().UTC().Add(-time.Duration(staleAfterMinutes)*time.Minute)).Scan(&n)
	return n, err
}
