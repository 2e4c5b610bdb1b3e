package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func ContextWithTraceparent(traceparent string) context.Context {
	if traceparent == "" {
		return context.Background()
	}
	carrier := propagation.MapCarrier{}
	carrier.Set("traceparent", traceparent)
	return otel.GetTextMapPropagator().Extract(context.Background(), carrier)
}

// TraceparentFromContext extracts the current span context's
// traceparent so it can be persisted on a batch row or attached to an
// outbound request header, propagating a trace across a store
// round-trip or a process boundary.
func TraceparentFromContext(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Get("traceparent")
}
