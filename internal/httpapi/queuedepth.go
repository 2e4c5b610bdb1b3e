package httpapi

import (
	"context"

	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

// queueDepthProvider adapts store.MonitorStore's richer QueueDepths
// rows into the two flat series metrics.QueueDepthCollector scrapes:
// pending count per batch_type, and the total parked DLQ count.
type queueDepthProvider struct {
	store store.MonitorStore
}

func (p queueDepthProvider) QueueDepthTotals(ctx context.Context) (map[string]int, error) {
	rows, err := p.store.QueueDepths(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.Status != store.StatusPending {
			continue
		}
		totals[row.BatchType] += row.Count
	}
	return totals, nil
}

func (p queueDepthProvider) DLQCount(ctx context.Context) (int, error) {
	return p.store.CountDeadLetterTotal(ctx)
}
