package cron

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Invoker fires a schedule entry's bound HTTP endpoint. It is
// deliberately fire-and-forget from the caller's point of view: a
// failed invocation is logged, never retried inline,
// since the next tick will simply try again.
type Invoker struct {
	client  *http.Client
	baseURL string
	bearer  string
	log     *slog.Logger
}

func NewInvoker(baseURL, bearer string, log *slog.Logger) *Invoker {
	if log == nil {
		log = slog.Default()
	}
	return &Invoker{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
		bearer:  bearer,
		log:     log,
	}
}

// Invoke POSTs to entry.Path with the calling span propagated as a
// traceparent header, the same way a batch's own traceparent column
// lets the dispatcher resume a trace across the store.
func (inv *Invoker) Invoke(ctx context.Context, entry Entry) error {
	tracer := otel.Tracer("enrichqueue/cron")
	ctx, span := tracer.Start(ctx, "invoke_schedule_entry",
		trace.WithAttributes(
			attribute.String("schedule_entry", entry.Name),
			attribute.String("path", entry.Path),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.baseURL+entry.Path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	if tp := telemetry.TraceparentFromContext(ctx); tp != "" {
		req.Header.Set("traceparent", tp)
	}
	if inv.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+inv.bearer)
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		inv.log.Error("invoke schedule entry", "entry", entry.Name, "path", entry.Path, "error", err)
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("schedule entry %s: unexpected status %d", entry.Name, resp.StatusCode)
		inv.log.Error("invoke schedule entry", "entry", entry.Name, "path", entry.Path, "status", resp.StatusCode)
		return err
	}
	return nil
}

// Tick invokes every entry whose pattern matches now, returning the
// names of the entries it fired.
func (inv *Invoker) Tick(ctx context.Context, schedule []Entry, now time.Time) []string {
	var fired []string
	for _, entry := range schedule {
		if !Matches(entry.Pattern, now) {
			continue
		}
		fired = append(fired, entry.Name)
		if err := inv.Invoke(ctx, entry); err != nil {
			inv.log.Warn("schedule entry invocation failed", "entry", entry.Name, "error", err)
		}
	}
	return fired
}
