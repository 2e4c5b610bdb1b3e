// Package registry maps a batch_type to the Handler that executes it.
package registry

import (
	"context"
	"encoding/json"
)

// Handler executes one batch kind. Handlers are opaque to the
// dispatcher: they may emit child batches by writing to the store,
// but never touch a batch's own status (spec §4.3). Handlers must be
// idempotent -- the engine guarantees at-least-once delivery.
type Handler interface {
	Handle(ctx context.Context, metadata json.RawMessage) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, metadata json.RawMessage) error

func (f HandlerFunc) Handle(ctx context.Context, metadata json.RawMessage) error {
	return f(ctx, metadata)
}

// Registry resolves a batch_type to a Handler, with alias support:
// "album_discovery" and "album_page" both resolve to whatever is
// registered under "album_page", and so on (spec §4.3). An unknown
// batch_type resolves to a handler registered under that exact
// string, if any -- so operators can add a handler without touching
// the dispatcher.
type Registry struct {
	handlers map[string]Handler
	aliases  map[string]string
}

func New() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		aliases:  make(map[string]string),
	}
}

// Register associates a handler with its canonical batch_type name.
func (r *Registry) Register(batchType string, h Handler) {
	r.handlers[batchType] = h
}

// Alias makes fromType resolve to whatever is registered under
// toType, even if toType is registered later.
func (r *Registry) Alias(fromType, toType string) {
	r.aliases[fromType] = toType
}

// Resolve looks up the handler for batchType, following at most one
// alias hop.
func (r *Registry) Resolve(batchType string) (Handler, bool) {
	if h, ok := r.handlers[batchType]; ok {
		return h, true
	}
	if canonical, ok := r.aliases[batchType]; ok {
		h, ok := r.handlers[canonical]
		return h, ok
	}
	return nil, false
}
