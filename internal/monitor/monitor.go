// Package monitor assembles the engine's health report, raises
// alerts against fixed thresholds, and performs the one
// auto-remediation spec §4.7 allows: resetting stalled leases when
// the queue is in a critical state.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oakmoss-dev/enrichqueue/internal/alert"
	"github.com/oakmoss-dev/enrichqueue/internal/metrics"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
)

const (
	dlqWarningThreshold         = 10
	errorBatchWarningThreshold  = 20
	stalledCriticalThreshold    = 5
	rateLimitWarningPercent     = 20
	lookbackHours               = 24
	stalledAfterMinutes         = 30
	remediationExpiryMinutes    = 30
)

// HealthReport is returned by the /monitor endpoint under its "report"
// key.
type HealthReport struct {
	DeadLetterItems24h int                `json:"dead_letter_items_24h"`
	ErrorBatches24h    int                `json:"error_batches_24h"`
	StalledBatches     int                `json:"stalled_batches"`
	QueueDepths        []store.QueueDepth `json:"queue_depths"`
	RateLimits         []store.RateLimit  `json:"rate_limits"`
	Alerts             []alert.Alert      `json:"alerts"`
	Actions            map[string]int     `json:"actions"`
}

// Store is the narrow read surface the monitor needs, plus the one
// write path (reset_expired) its remediation is allowed to use.
type Store interface {
	store.MonitorStore
	ResetExpired(ctx context.Context, expiryMinutes int) (int, error)
}

type Monitor struct {
	store Store
	sink  alert.Sink
	log   *slog.Logger
}

func New(s Store, sink alert.Sink, log *slog.Logger) *Monitor {
	if sink == nil {
		sink = alert.NewLogSink(log)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{store: s, sink: sink, log: log}
}

// Check gathers every metric, evaluates the fixed thresholds, sends
// any resulting alerts, and performs remediation if the overall state
// is critical.
func (m *Monitor) Check(ctx context.Context) (HealthReport, error) {
	report := HealthReport{Actions: map[string]int{}}

	dlq, err := m.store.CountDeadLetterSince(ctx, lookbackHours)
	if err != nil {
		return report, err
	}
	report.DeadLetterItems24h = dlq

	errBatches, err := m.store.CountErrorBatchesSince(ctx, lookbackHours)
	if err != nil {
		return report, err
	}
	report.ErrorBatches24h = errBatches

	stalled, err := m.store.CountStalledBatches(ctx, stalledAfterMinutes)
	if err != nil {
		return report, err
	}
	report.StalledBatches = stalled

	depths, err := m.store.QueueDepths(ctx)
	if err != nil {
		return report, err
	}
	report.QueueDepths = depths

	rateLimits, err := m.store.ListRateLimits(ctx)
	if err != nil {
		return report, err
	}
	report.RateLimits = rateLimits

	critical := false

	if dlq > dlqWarningThreshold {
		report.Alerts = append(report.Alerts, alert.Alert{
			Severity: "warning",
			Metric:   "dead_letter_items_24h",
			Value:    dlq,
			Message:  fmt.Sprintf("%d items dead-lettered in the last %dh (threshold %d)", dlq, lookbackHours, dlqWarningThreshold),
		})
	}
	if errBatches > errorBatchWarningThreshold {
		report.Alerts = append(report.Alerts, alert.Alert{
			Severity: "warning",
			Metric:   "error_batches_24h",
			Value:    errBatches,
			Message:  fmt.Sprintf("%d batches errored in the last %dh (threshold %d)", errBatches, lookbackHours, errorBatchWarningThreshold),
		})
	}
	if stalled > stalledCriticalThreshold {
		critical = true
		report.Alerts = append(report.Alerts, alert.Alert{
			Severity: "critical",
			Metric:   "stalled_batches",
			Value:    stalled,
			Message:  fmt.Sprintf("%d batches stalled in processing (threshold %d)", stalled, stalledCriticalThreshold),
		})
	}
	for _, rl := range rateLimits {
		if rl.RequestsLimit <= 0 {
			continue
		}
		percentRemaining := 100 * rl.RequestsRemaining / rl.RequestsLimit
		if percentRemaining < rateLimitWarningPercent {
			report.Alerts = append(report.Alerts, alert.Alert{
				Severity: "warning",
				Metric:   "rate_limit_remaining_percent",
				Value:    percentRemaining,
				Message:  fmt.Sprintf("%s/%s has %d%% of its rate limit remaining (threshold %d%%)", rl.APIName, rl.Endpoint, percentRemaining, rateLimitWarningPercent),
			})
		}
	}

	for _, a := range report.Alerts {
		if err := m.sink.Send(ctx, a); err != nil {
			m.log.Error("send alert", "metric", a.Metric, "error", err)
		}
		metrics.IncAlertSent(a.Severity)
	}

	if critical && stalled > 0 {
		reset, err := m.store.ResetExpired(ctx, remediationExpiryMinutes)
		if err != nil {
			return report, err
		}
		report.Actions["reset_stalled_batches"] = reset
		m.log.Warn("auto-remediated stalled batches", "count", reset)
	}

	return report, nil
}
