package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/registry"
	"github.com/oakmoss-dev/enrichqueue/internal/retry"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

type fakeClaimStore struct {
	mu           sync.Mutex
	pending      []store.Batch
	processing   int
	completed    []string
	retried      []store.Batch
	deadLettered []store.Batch
	dlqItems     []store.DeadLetterItem
}

func (s *fakeClaimStore) Claim(ctx context.Context, limit int) ([]store.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	claimed := s.pending[:limit]
	s.pending = s.pending[limit:]
	s.processing += len(claimed)
	return claimed, nil
}

func (s *fakeClaimStore) CountProcessing(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing, nil
}

func (s *fakeClaimStore) CompleteBatch(ctx context.Context, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	s.processing--
	return nil
}

func (s *fakeClaimStore) RetryBatch(ctx context.Context, id string, nextRetryCount int, errMsg string, nextVisibleAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retried = append(s.retried, store.Batch{ID: id, RetryCount: nextRetryCount, ErrorMessage: errMsg, NextVisibleAt: &nextVisibleAt})
	s.processing--
	return nil
}

func (s *fakeClaimStore) DeadLetterBatch(ctx context.Context, id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLettered = append(s.deadLettered, store.Batch{ID: id, ErrorMessage: errMsg})
	s.processing--
	return nil
}

func (s *fakeClaimStore) InsertDeadLetterItem(ctx context.Context, item store.DeadLetterItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dlqItems = append(s.dlqItems, item)
	return nil
}

func (s *fakeClaimStore) GetTraceparent(ctx context.Context, id string) (string, error) {
	return "", nil
}

func TestTickClaimsUpToSpareConcurrency(t *testing.T) {
	s := &fakeClaimStore{
		pending: []store.Batch{
			{ID: "b1", BatchType: "album_page", Metadata: json.RawMessage(`{}`)},
			{ID: "b2", BatchType: "album_page", Metadata: json.RawMessage(`{}`)},
			{ID: "b3", BatchType: "album_page", Metadata: json.RawMessage(`{}`)},
		},
		processing: 1,
	}
	r := registry.New()
	r.Register("album_page", registry.HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error { return nil }))

	d := New(s, r, 3, "worker-1", nil)
	summary, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Claimed != 2 {
		t.Fatalf("expected to claim 2 (concurrency 3 minus 1 in flight), got %d", summary.Claimed)
	}
	if summary.Completed != 2 {
		t.Fatalf("expected 2 completed, got %d", summary.Completed)
	}
}

func TestTickNoSpareConcurrencyClaimsNothing(t *testing.T) {
	s := &fakeClaimStore{
		pending:    []store.Batch{{ID: "b1", BatchType: "album_page"}},
		processing: 3,
	}
	r := registry.New()
	d := New(s, r, 3, "worker-1", nil)

	summary, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Claimed != 0 {
		t.Fatalf("expected no claim when at capacity, got %d", summary.Claimed)
	}
}

func TestDispatchOneRetryableFailureGoesToRetry(t *testing.T) {
	s := &fakeClaimStore{
		pending: []store.Batch{{ID: "b1", BatchType: "album_page", RetryCount: 0, Metadata: json.RawMessage(`{}`)}},
	}
	r := registry.New()
	r.Register("album_page", registry.HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error {
		return retry.Retryable(errors.New("upstream unavailable"))
	}))

	d := New(s, r, 1, "worker-1", nil)
	summary, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", summary.Failed)
	}
	if len(s.retried) != 1 {
		t.Fatalf("expected batch to be retried, got %d retries", len(s.retried))
	}
	if len(s.deadLettered) != 0 {
		t.Fatalf("expected no dead-letter on first retryable failure")
	}
}

// A terminally-classified error still goes through the same
// retry-count/limit comparison as any other failure: classification
// plays no part in the DLQ decision or in the backoff delay.
func TestDispatchOneTerminalFailureStillRetriesUnderLimit(t *testing.T) {
	s := &fakeClaimStore{
		pending: []store.Batch{{ID: "b1", BatchType: "album_page", RetryCount: 0, Metadata: json.RawMessage(`{}`)}},
	}
	r := registry.New()
	r.Register("album_page", registry.HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error {
		return retry.Terminal(errors.New("payload validation failed"))
	}))

	d := New(s, r, 1, "worker-1", nil)
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.deadLettered) != 0 {
		t.Fatalf("expected no dead-letter on first terminal failure, got %d", len(s.deadLettered))
	}
	if len(s.retried) != 1 {
		t.Fatalf("expected terminal failure under the retry limit to be retried, got %d", len(s.retried))
	}
}

func TestDispatchOneTerminalFailureDeadLettersOnceLimitReached(t *testing.T) {
	s := &fakeClaimStore{
		pending: []store.Batch{{ID: "b1", BatchType: "album_page", RetryCount: retry.LimitFor("album_page") - 1, Metadata: json.RawMessage(`{}`)}},
	}
	r := registry.New()
	r.Register("album_page", registry.HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error {
		return retry.Terminal(errors.New("payload validation failed"))
	}))

	d := New(s, r, 1, "worker-1", nil)
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.deadLettered) != 1 {
		t.Fatalf("expected terminal failure to dead-letter once the retry limit is reached, got %d", len(s.deadLettered))
	}
	if len(s.dlqItems) != 1 {
		t.Fatalf("expected a dead-letter item to be recorded")
	}
}

func TestDispatchOneExhaustsRetriesAndDeadLetters(t *testing.T) {
	s := &fakeClaimStore{
		pending: []store.Batch{{ID: "b1", BatchType: "unknown_batch_type", RetryCount: retry.DefaultLimit - 1, Metadata: json.RawMessage(`{}`)}},
	}
	r := registry.New()
	r.Register("unknown_batch_type", registry.HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error {
		return retry.Retryable(errors.New("still failing"))
	}))

	d := New(s, r, 1, "worker-1", nil)
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.deadLettered) != 1 {
		t.Fatalf("expected retry exhaustion to dead-letter, got %d dead-lettered", len(s.deadLettered))
	}
}

// Canceling the tick's context after claiming must not stop a batch
// already in flight from finishing and settling.
func TestTickSurvivesContextCancelAfterClaim(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := &fakeClaimStore{
		pending: []store.Batch{{ID: "b1", BatchType: "album_page", Metadata: json.RawMessage(`{}`)}},
	}
	r := registry.New()
	r.Register("album_page", registry.HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error {
		close(started)
		<-release
		return nil
	}))

	d := New(s, r, 1, "worker-1", nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Summary, 1)
	go func() {
		summary, err := d.Tick(ctx)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- summary
	}()

	<-started
	cancel()
	close(release)

	summary := <-done
	if summary.Completed != 1 {
		t.Fatalf("expected the in-flight batch to complete despite cancellation, got %+v", summary)
	}
	if len(s.completed) != 1 {
		t.Fatalf("expected CompleteBatch to be called despite cancellation, got %d", len(s.completed))
	}
}

func TestDispatchOneUnknownHandlerDeadLetters(t *testing.T) {
	s := &fakeClaimStore{
		pending: []store.Batch{{ID: "b1", BatchType: "nonexistent", Metadata: json.RawMessage(`{}`)}},
	}
	r := registry.New()

	d := New(s, r, 1, "worker-1", nil)
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.deadLettered) != 1 {
		t.Fatalf("expected unknown handler to dead-letter immediately, got %d", len(s.deadLettered))
	}
}
