// Package alert fans out health-monitor alerts to whichever sinks an
// operator has wired up. The default, always-present sink is
// structured logging; Redis pub/sub is additive.
package alert

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Alert is one health-monitor finding.
type Alert struct {
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Metric   string         `json:"metric"`
	Value    int            `json:"value"`
	Details  map[string]any `json:"details,omitempty"`
}

// Sink delivers an Alert somewhere. A sink's Send must not block the
// monitor tick for long; a sink that can fail (like a Redis publish)
// should treat its own failure as non-fatal to the tick.
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// LogSink writes every alert as a structured log line. It is the
// default sink and is always wired in addition to anything else.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Send(ctx context.Context, a Alert) error {
	level := slog.LevelWarn
	if a.Severity == "critical" {
		level = slog.LevelError
	}
	s.log.Log(ctx, level, a.Message, "severity", a.Severity, "metric", a.Metric, "value", a.Value)
	return nil
}

// MultiSink fans an alert out to every sink in order, collecting
// rather than short-circuiting on the first error so one broken sink
// never silences the rest.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Send(ctx context.Context, a Alert) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Send(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// marshal is shared by sinks that need the alert as JSON on the wire.
func marshal(a Alert) ([]byte, error) {
	return json.Marshal(a)
}
