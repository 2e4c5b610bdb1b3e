// Package worker holds the per-process concurrency throttle that
// sits in front of each outbound API client, independent of the
// store-backed rate-limit gate in internal/ratelimit.
package worker

import (
	"context"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/metrics"
)

// Throttler caps how many outbound calls to one upstream API a
// single process issues concurrently, and optionally paces them to a
// fixed rate. It is a single-process fast path: internal/ratelimit.Gate
// remains the cross-process source of truth for when the upstream's
// own limit has been exhausted.
type Throttler struct {
	apiName    string
	sem        chan struct{}
	tokens     chan struct{}
	interval   time.Duration
	stopTokens chan struct{}
	capacity   int
	inFlight   int
}

func NewThrottler(apiName string, concurrency int, ratePerSec int) *Throttler {
	t := &Throttler{apiName: apiName, capacity: concurrency}
	if concurrency > 0 {
		t.sem = make(chan struct{}, concurrency)
		for i := 0; i < concurrency; i++ {
			t.sem <- struct{}{}
		}
	}
	if ratePerSec > 0 {
		t.tokens = make(chan struct{}, ratePerSec)
		for i := 0; i < ratePerSec; i++ {
			t.tokens <- struct{}{}
		}
		t.interval = time.Second / time.Duration(ratePerSec)
		t.stopTokens = make(chan struct{})
		go t.refillTokens()
	}
	return t
}

func (t *Throttler) refillTokens() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		case <-t.stopTokens:
			return
		}
	}
}

func (t *Throttler) Close() {
	if t.stopTokens != nil {
		close(t.stopTokens)
	}
}

func (t *Throttler) Acquire(ctx context.Context) error {
	if t.sem != nil {
		select {
		case <-t.sem:
		default:
			metrics.IncConcurrencyThrottled(t.apiName)
			select {
			case <-t.sem:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if t.tokens != nil {
		select {
		case <-t.tokens:
		default:
			metrics.IncThrottlerRateThrottled(t.apiName)
			select {
			case <-t.tokens:
			case <-ctx.Done():
				if t.sem != nil {
					t.sem <- struct{}{}
				}
				return ctx.Err()
			}
		}
	}
	if t.capacity > 0 {
		t.inFlight++
		metrics.SetThrottlerUtilization(t.apiName, float64(t.inFlight)/float64(t.capacity))
	}
	return nil
}

func (t *Throttler) Release() {
	if t.sem != nil {
		t.sem <- struct{}{}
	}
	if t.capacity > 0 && t.inFlight > 0 {
		t.inFlight--
		metrics.SetThrottlerUtilization(t.apiName, float64(t.inFlight)/float64(t.capacity))
	}
}
