package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

type fakeStore struct {
	rl  store.RateLimit
	ok  bool
	err error

	tracked store.RateLimit
}

func (f *fakeStore) GetRateLimit(ctx context.Context, apiName, endpoint string) (store.RateLimit, bool, error) {
	return f.rl, f.ok, f.err
}

func (f *fakeStore) TrackRateLimit(ctx context.Context, rl store.RateLimit) error {
	f.tracked = rl
	return nil
}

func TestCheckReturnsImmediatelyWhenUntracked(t *testing.T) {
	g := New(&fakeStore{ok: false})
	if err := g.Check(context.Background(), "spotify", "/search"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCheckReturnsImmediatelyWhenRemainingPositive(t *testing.T) {
	g := New(&fakeStore{ok: true, rl: store.RateLimit{RequestsRemaining: 5}})
	if err := g.Check(context.Background(), "spotify", "/search"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCheckSleepsUntilResetThenReturns(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := New(&fakeStore{ok: true, rl: store.RateLimit{RequestsRemaining: 0, ResetAt: now.Add(20 * time.Millisecond)}})
	g.now = func() time.Time { return now }

	start := time.Now()
	if err := g.Check(context.Background(), "spotify", "/search"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("expected Check to block roughly until reset_at")
	}
}

func TestCheckCapsSleepAtMaxAndHonorsCancellation(t *testing.T) {
	now := time.Now()
	g := New(&fakeStore{ok: true, rl: store.RateLimit{RequestsRemaining: 0, ResetAt: now.Add(time.Hour)}})
	g.maxSleep = 50 * time.Millisecond
	g.now = func() time.Time { return now }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Check(ctx, "spotify", "/search")
	if err == nil {
		t.Fatalf("expected context deadline error")
	}

	start := time.Now()
	if err := g.Check(context.Background(), "spotify", "/search"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected Check to stop sleeping at maxSleep, slept %v", elapsed)
	}
}

func TestUpdatePersistsObservedHeaders(t *testing.T) {
	fs := &fakeStore{}
	g := New(fs)
	resetAt := time.Now().Add(time.Minute)
	if err := g.Update(context.Background(), "genius", "/songs", 10, 100, resetAt, "200"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.tracked.APIName != "genius" || fs.tracked.Endpoint != "/songs" || fs.tracked.RequestsRemaining != 10 {
		t.Fatalf("unexpected tracked rate limit: %+v", fs.tracked)
	}
}
