package registry

import (
	"context"
	"encoding/json"
	"testing"
)

func TestResolveDirectRegistration(t *testing.T) {
	r := New()
	called := false
	r.Register("album_page", HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error {
		called = true
		return nil
	}))

	h, ok := r.Resolve("album_page")
	if !ok {
		t.Fatalf("expected handler to resolve")
	}
	if err := h.Handle(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected handler to be invoked")
	}
}

func TestResolveAlias(t *testing.T) {
	r := New()
	r.Register("album_page", HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error { return nil }))
	r.Alias("album_discovery", "album_page")

	h, ok := r.Resolve("album_discovery")
	if !ok || h == nil {
		t.Fatalf("expected alias to resolve to album_page handler")
	}
}

func TestResolveUnknownBatchType(t *testing.T) {
	r := New()
	if _, ok := r.Resolve("nonexistent"); ok {
		t.Fatalf("expected unknown batch_type to miss")
	}
}

func TestResolveUnknownBatchTypeRegisteredByItself(t *testing.T) {
	r := New()
	r.Register("custom_job", HandlerFunc(func(ctx context.Context, metadata json.RawMessage) error { return nil }))
	h, ok := r.Resolve("custom_job")
	if !ok || h == nil {
		t.Fatalf("expected operator-added handler to resolve by its own name")
	}
}
