package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

// fakeStore implements store.Store with in-memory state, enough to
// drive the dispatcher/maintenance/monitor collaborators this
// package's handlers delegate to without a real Postgres.
type fakeStore struct {
	mu sync.Mutex

	pingErr error

	claims        []store.Batch
	claimErr      error
	processing    int
	completed     []string
	retried       []string
	deadLettered  []string
	dlqItems      []store.DeadLetterItem
	insertedBatches []insertedFakeBatch

	resetExpiredN int
	requeueDLQN   int
	cleanupN      int

	queueDepths    []store.QueueDepth
	dlqSince       int
	dlqTotal       int
	errorBatches   int
	stalled        int
	rateLimits     []store.RateLimit
	dlqListItems   []store.DeadLetterItem

	rateLimitState map[string]store.RateLimit
}

type insertedFakeBatch struct {
	batchType string
	metadata  []byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{rateLimitState: map[string]store.RateLimit{}}
}

func (s *fakeStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *fakeStore) Claim(ctx context.Context, limit int) ([]store.Batch, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return s.claims, nil
}

func (s *fakeStore) CountProcessing(ctx context.Context) (int, error) { return s.processing, nil }

func (s *fakeStore) CompleteBatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeStore) RetryBatch(ctx context.Context, id string, nextRetryCount int, errMsg string, nextVisibleAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retried = append(s.retried, id)
	return nil
}

func (s *fakeStore) DeadLetterBatch(ctx context.Context, id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLettered = append(s.deadLettered, id)
	return nil
}

func (s *fakeStore) InsertDeadLetterItem(ctx context.Context, item store.DeadLetterItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dlqItems = append(s.dlqItems, item)
	return nil
}

func (s *fakeStore) GetTraceparent(ctx context.Context, id string) (string, error) { return "", nil }

func (s *fakeStore) ResetExpired(ctx context.Context, expiryMinutes int) (int, error) {
	return s.resetExpiredN, nil
}

func (s *fakeStore) RequeueDLQ(ctx context.Context, limit int) (int, error) {
	return s.requeueDLQN, nil
}

func (s *fakeStore) Cleanup(ctx context.Context, days int) (int, error) {
	return s.cleanupN, nil
}

func (s *fakeStore) QueueDepths(ctx context.Context) ([]store.QueueDepth, error) {
	return s.queueDepths, nil
}

func (s *fakeStore) CountDeadLetterSince(ctx context.Context, hours int) (int, error) {
	return s.dlqSince, nil
}

func (s *fakeStore) CountDeadLetterTotal(ctx context.Context) (int, error) {
	return s.dlqTotal, nil
}

func (s *fakeStore) CountErrorBatchesSince(ctx context.Context, hours int) (int, error) {
	return s.errorBatches, nil
}

func (s *fakeStore) CountStalledBatches(ctx context.Context, staleAfterMinutes int) (int, error) {
	return s.stalled, nil
}

func (s *fakeStore) ListRateLimits(ctx context.Context) ([]store.RateLimit, error) {
	return s.rateLimits, nil
}

func (s *fakeStore) ListDeadLetterItems(ctx context.Context, limit int) ([]store.DeadLetterItem, error) {
	if limit < len(s.dlqListItems) {
		return s.dlqListItems[:limit], nil
	}
	return s.dlqListItems, nil
}

func (s *fakeStore) GetRateLimit(ctx context.Context, apiName, endpoint string) (store.RateLimit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.rateLimitState[apiName+"|"+endpoint]
	return rl, ok, nil
}

func (s *fakeStore) TrackRateLimit(ctx context.Context, rl store.RateLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitState[rl.APIName+"|"+rl.Endpoint] = rl
	return nil
}

func (s *fakeStore) InsertBatch(ctx context.Context, batchType string, metadata []byte, priority int, traceparent string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertedBatches = append(s.insertedBatches, insertedFakeBatch{batchType: batchType, metadata: append([]byte(nil), metadata...)})
	return "batch-id", true, nil
}

func (s *fakeStore) UpsertProducerCredit(ctx context.Context, canonicalName, alias string, sourceCredit []byte) error {
	return nil
}

type fakeRedis struct {
	pingErr error
}

func (f *fakeRedis) Ping(ctx context.Context) error { return f.pingErr }
