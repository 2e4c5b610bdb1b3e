// Package httpapi exposes the batch-processing pipeline's scheduled
// entrypoints as a small HTTP surface: each route corresponds to one
// entry in internal/cron's schedule, invoked by the scheduler process
// rather than served to end users.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/cron"
	"github.com/oakmoss-dev/enrichqueue/internal/dispatcher"
	"github.com/oakmoss-dev/enrichqueue/internal/maintenance"
	"github.com/oakmoss-dev/enrichqueue/internal/metrics"
	"github.com/oakmoss-dev/enrichqueue/internal/monitor"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
	"github.com/oakmoss-dev/enrichqueue/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsOnce sync.Once

// metricsHandler registers the engine's series and the queue-depth
// collector against the default registry exactly once per process,
// then serves the standard promhttp handler -- every binary in this
// repository shares the same /metrics endpoint shape.
func metricsHandler(monitorStore store.MonitorStore) http.Handler {
	metricsOnce.Do(func() {
		if reg, ok := prometheus.DefaultRegisterer.(*prometheus.Registry); ok {
			metrics.Register(reg)
		}
		prometheus.MustRegister(metrics.NewQueueDepthCollector(queueDepthProvider{store: monitorStore}))
	})
	return promhttp.Handler()
}

// Pinger is the narrow health-check dependency a backing cache must
// satisfy; store.Store already implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	store      store.Store
	redis      Pinger
	dispatcher *dispatcher.Dispatcher
	maint      *maintenance.Runner
	mon        *monitor.Monitor
	invoker    *cron.Invoker
	log        *slog.Logger
	handler    http.Handler
	http       *http.Server
}

func NewServer(
	addr string,
	st store.Store,
	redis Pinger,
	dispatcher *dispatcher.Dispatcher,
	maint *maintenance.Runner,
	mon *monitor.Monitor,
	invoker *cron.Invoker,
	log *slog.Logger,
) *Server {
	s := &Server{
		store:      st,
		redis:      redis,
		dispatcher: dispatcher,
		maint:      maint,
		mon:        mon,
		invoker:    invoker,
		log:        log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.Handle("/metrics", metricsHandler(st))
	mux.HandleFunc("/discover-artists", s.discoverArtists)
	mux.HandleFunc("/process-album-page", s.enqueue("album_page"))
	mux.HandleFunc("/process-track-page", s.enqueue("track_page"))
	mux.HandleFunc("/identify-producers", s.enqueue("producer_discovery"))
	mux.HandleFunc("/worker", s.worker)
	mux.HandleFunc("/maintenance", s.maintenance)
	mux.HandleFunc("/monitor", s.monitor)
	mux.HandleFunc("/scheduler", s.scheduler)
	mux.HandleFunc("/dlq", s.dlqList)
	mux.HandleFunc("/dlq/replay", s.dlqReplay)
	mux.HandleFunc("/queue-depths", s.queueDepthsHandler)
	mux.HandleFunc("/rate-limits", s.rateLimitsHandler)

	var handler http.Handler = mux
	handler = loggingMiddleware(log, handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(handler)
	s.handler = handler

	s.http = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the wired mux for tests to drive directly, without
// binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "postgres not ready")
		return
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// discoverArtists seeds a fresh discover-artists batch; the worker
// endpoint picks it up on its next claim like any other batch, so a
// slow or failing upstream search gets the same retry/backoff/DLQ
// treatment as the rest of the DAG instead of running inline here.
func (s *Server) discoverArtists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var body struct {
		Query string `json:"query,omitempty"`
		Limit int    `json:"limit,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	metadata, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	id, created, err := s.store.InsertBatch(ctx, "discover-artists", metadata, 5, telemetry.TraceparentFromContext(ctx))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": id, "created": created})
}

// enqueue builds a handler that inserts a batch of batchType from the
// request body as-is, the same fire-and-forget seeding discoverArtists
// does for discover-artists -- the dispatcher picks it up on its next
// claim rather than running the handler inline here.
func (s *Server) enqueue(batchType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var metadata json.RawMessage
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&metadata); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json")
				return
			}
		} else {
			metadata = json.RawMessage("{}")
		}

		id, created, err := s.store.InsertBatch(ctx, batchType, metadata, 5, telemetry.TraceparentFromContext(ctx))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"batch_id": id, "created": created})
	}
}

// scheduler fires one manual cron tick against the same schedule
// cmd/scheduler's standalone ticker runs, useful for operators
// triggering a tick out of band instead of waiting for the next
// minute to roll over.
func (s *Server) scheduler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.invoker == nil {
		writeError(w, http.StatusInternalServerError, "scheduler invoker not configured")
		return
	}
	fired := s.invoker.Tick(r.Context(), cron.DefaultSchedule, time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]any{"fired": fired})
}

func (s *Server) worker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := s.dispatcher.Tick(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) maintenance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := s.maint.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// dlqList surfaces the parked items an operator would otherwise have
// to query Postgres directly for; it never mutates anything.
func (s *Server) dlqList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := s.store.ListDeadLetterItems(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// dlqReplay requeues dead-lettered items without running the rest of
// the maintenance cycle (ResetExpired, Cleanup), so an operator can
// push DLQ items back onto the queue on demand.
func (s *Server) dlqReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	n, err := s.store.RequeueDLQ(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requeued": n})
}

func (s *Server) queueDepthsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	depths, err := s.store.QueueDepths(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"depths": depths})
}

func (s *Server) rateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limits, err := s.store.ListRateLimits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rate_limits": limits})
}

func (s *Server) monitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	report, err := s.mon.Check(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":     report,
		"alert_sent": len(report.Alerts) > 0,
	})
}
