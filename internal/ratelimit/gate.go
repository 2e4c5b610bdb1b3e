// Package ratelimit implements the per (api, endpoint) token gate
// consulted before outbound calls to Spotify, Genius, and Discogs.
package ratelimit

import (
	"context"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

// Store is the narrow slice of store.Store the gate needs.
type Store interface {
	GetRateLimit(ctx context.Context, apiName, endpoint string) (store.RateLimit, bool, error)
	TrackRateLimit(ctx context.Context, rl store.RateLimit) error
}

// Gate is cooperative, not hard: two callers can both read
// remaining=1 and both proceed. Spec §4.2 accepts this because the
// upstream API itself enforces the limit with 429s and headers
// converge quickly.
type Gate struct {
	store Store
	// maxSleep caps the sleep-until-reset so a gate never blocks a
	// worker longer than one lease duration -- past that point the
	// lease will expire and reset_expired should reclaim the batch
	// instead of a handler sitting in Check forever.
	maxSleep time.Duration
	now      func() time.Time
}

func New(s Store) *Gate {
	return &Gate{store: s, maxSleep: store.DefaultLeaseFor, now: time.Now}
}

// Check blocks until it is safe to call (api, endpoint). It returns
// an error if the store read fails or ctx is canceled while waiting;
// a missing row
// (untracked endpoint) or positive remaining both return immediately.
func (g *Gate) Check(ctx context.Context, apiName, endpoint string) error {
	rl, ok, err := g.store.GetRateLimit(ctx, apiName, endpoint)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if rl.RequestsRemaining > 0 {
		return nil
	}
	now := g.now()
	if !rl.ResetAt.After(now) {
		return nil
	}
	wait := rl.ResetAt.Sub(now)
	if wait > g.maxSleep {
		wait = g.maxSleep
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update persists the header values observed from a successful
// outbound call.
func (g *Gate) Update(ctx context.Context, apiName, endpoint string, remaining, limit int, resetAt time.Time, lastResponse string) error {
	return g.store.TrackRateLimit(ctx, store.RateLimit{
		APIName:           apiName,
		Endpoint:          endpoint,
		RequestsRemaining: remaining,
		RequestsLimit:     limit,
		ResetAt:           resetAt,
		LastResponse:      lastResponse,
	})
}
