// Package metrics exposes the Prometheus series the engine emits.
// There is one global registry on purpose: every series a process
// records lands in the same process-wide registry, which cmd/server
// serves at /metrics.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	batchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_batch_attempts_total",
			Help: "Total batch dispatch attempts.",
		},
		[]string{"batch_type"},
	)
	batchSuccess = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_batch_success_total",
			Help: "Total batches completed successfully.",
		},
		[]string{"batch_type"},
	)
	batchFailure = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_batch_failure_total",
			Help: "Total batch attempts that ended in a retry or dead-letter.",
		},
		[]string{"batch_type"},
	)
	batchDeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_batch_dead_lettered_total",
			Help: "Total batches moved to the dead-letter queue.",
		},
		[]string{"batch_type"},
	)
	batchRuntime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichqueue_batch_runtime_seconds",
			Help:    "Batch handler runtime histogram in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"batch_type"},
	)
	rateLimitThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_rate_limit_throttled_total",
			Help: "Total times a handler slept waiting for a rate-limit window to reset.",
		},
		[]string{"api_name", "endpoint"},
	)
	concurrencyThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_concurrency_throttled_total",
			Help: "Total times a call was throttled by the per-process concurrency throttler.",
		},
		[]string{"api_name"},
	)
	throttlerUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "enrichqueue_throttler_utilization",
			Help: "Per-process throttler utilization (in-flight / concurrency).",
		},
		[]string{"api_name"},
	)
	throttlerRateThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_throttler_rate_throttled_total",
			Help: "Total times a call blocked waiting for the per-process token bucket to refill.",
		},
		[]string{"api_name"},
	)
	alertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichqueue_alerts_sent_total",
			Help: "Total health-monitor alerts emitted, by severity.",
		},
		[]string{"severity"},
	)
)

func Register(reg *prometheus.Registry) {
	once.Do(func() {
		reg.MustRegister(
			batchAttempts,
			batchSuccess,
			batchFailure,
			batchDeadLettered,
			batchRuntime,
			rateLimitThrottled,
			concurrencyThrottled,
			throttlerUtilization,
			throttlerRateThrottled,
			alertsSent,
		)
	})
}

func IncAttempts(batchType string) {
	batchAttempts.WithLabelValues(batchType).Inc()
}

func IncSuccess(batchType string) {
	batchSuccess.WithLabelValues(batchType).Inc()
}

func IncFailure(batchType string) {
	batchFailure.WithLabelValues(batchType).Inc()
}

func IncDeadLettered(batchType string) {
	batchDeadLettered.WithLabelValues(batchType).Inc()
}

func ObserveRuntime(batchType string, seconds float64) {
	batchRuntime.WithLabelValues(batchType).Observe(seconds)
}

func IncRateLimitThrottled(apiName, endpoint string) {
	rateLimitThrottled.WithLabelValues(apiName, endpoint).Inc()
}

func IncConcurrencyThrottled(apiName string) {
	concurrencyThrottled.WithLabelValues(apiName).Inc()
}

func SetThrottlerUtilization(apiName string, value float64) {
	throttlerUtilization.WithLabelValues(apiName).Set(value)
}

func IncThrottlerRateThrottled(apiName string) {
	throttlerRateThrottled.WithLabelValues(apiName).Inc()
}

func IncAlertSent(severity string) {
	alertsSent.WithLabelValues(severity).Inc()
}

// QueueDepthProvider backs the queue-depth and DLQ gauges, which are
// collected on scrape rather than pushed, since they reflect store
// state rather than something the process itself counts.
type QueueDepthProvider interface {
	QueueDepthTotals(ctx context.Context) (map[string]int, error)
	DLQCount(ctx context.Context) (int, error)
}

type QueueDepthCollector struct {
	provider  QueueDepthProvider
	depthDesc *prometheus.Desc
	dlqDesc   *prometheus.Desc
}

func NewQueueDepthCollector(provider QueueDepthProvider) *QueueDepthCollector {
	return &QueueDepthCollector{
		provider: provider,
		depthDesc: prometheus.NewDesc(
			"enrichqueue_queue_depth",
			"Current pending batch count by batch_type.",
			[]string{"batch_type"},
			nil,
		),
		dlqDesc: prometheus.NewDesc(
			"enrichqueue_dlq_count",
			"Current dead-letter item count.",
			nil,
			nil,
		),
	}
}

func (c *QueueDepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depthDesc
	ch <- c.dlqDesc
}

func (c *QueueDepthCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if totals, err := c.provider.QueueDepthTotals(ctx); err == nil {
		for batchType, count := range totals {
			ch <- prometheus.MustNewConstMetric(c.depthDesc, prometheus.GaugeValue, float64(count), batchType)
		}
	}
	if count, err := c.provider.DLQCount(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(c.dlqDesc, prometheus.GaugeValue, float64(count))
	}
}
