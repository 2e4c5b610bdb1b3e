package handlers

import (
	"context"
	"sync"

	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

// fakeRateLimitStore backs a ratelimit.Gate in tests; all endpoints
// report no tracked limit unless a test seeds one explicitly.
type fakeRateLimitStore struct {
	mu     sync.Mutex
	limits map[string]store.RateLimit
	tracks []store.RateLimit
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{limits: map[string]store.RateLimit{}}
}

func (s *fakeRateLimitStore) GetRateLimit(ctx context.Context, apiName, endpoint string) (store.RateLimit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.limits[apiName+"|"+endpoint]
	return rl, ok, nil
}

func (s *fakeRateLimitStore) TrackRateLimit(ctx context.Context, rl store.RateLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, rl)
	s.limits[rl.APIName+"|"+rl.Endpoint] = rl
	return nil
}

// fakeBatchWriter records every child batch a handler emits.
type fakeBatchWriter struct {
	mu      sync.Mutex
	batches []insertedBatch
}

type insertedBatch struct {
	batchType string
	metadata  []byte
}

func newFakeBatchWriter() *fakeBatchWriter {
	return &fakeBatchWriter{}
}

func (w *fakeBatchWriter) InsertBatch(ctx context.Context, batchType string, metadata []byte, priority int, traceparent string) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, insertedBatch{batchType: batchType, metadata: append([]byte(nil), metadata...)})
	return "batch-id", true, nil
}

func (w *fakeBatchWriter) byType(batchType string) []insertedBatch {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []insertedBatch
	for _, b := range w.batches {
		if b.batchType == batchType {
			out = append(out, b)
		}
	}
	return out
}

// fakeProducerStore records every upserted producer credit.
type fakeProducerStore struct {
	mu      sync.Mutex
	upserts []upsertedCredit
}

type upsertedCredit struct {
	canonical string
	alias     string
	payload   []byte
}

func newFakeProducerStore() *fakeProducerStore {
	return &fakeProducerStore{}
}

func (s *fakeProducerStore) UpsertProducerCredit(ctx context.Context, canonicalName, alias string, sourceCredit []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, upsertedCredit{canonical: canonicalName, alias: alias, payload: append([]byte(nil), sourceCredit...)})
	return nil
}
