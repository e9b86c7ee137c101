// Package httpapi exposes the monitoring surface: a go-chi router serving
// /health, /stats, /pending-count, and, when metrics are enabled, /metrics.
// Every route is a read-only JSON projection over runtimestats and the
// store's pending count.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civicsignal/complaint-ai-core/internal/runtimestats"
	"github.com/civicsignal/complaint-ai-core/internal/telemetry"
)

// PendingCounter is the narrow slice of internal/store.Store this package
// consumes.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// QueueDepther exposes the in-memory queue's current depth.
type QueueDepther interface {
	Depth() int
}

// New builds the monitoring HTTP handler.
func New(stats *runtimestats.Stats, st PendingCounter, q QueueDepther, metricsEnabled bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observeRoute)

	r.Get("/health", handleHealth(stats))
	r.Get("/stats", handleStats(stats, q))
	r.Get("/pending-count", handlePendingCount(st))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// observeRoute records request counts/durations via internal/telemetry for
// every route, labeled by chi's matched route pattern rather than the raw
// path, so high-cardinality paths never leak into Prometheus labels.
func observeRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		telemetry.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func handleHealth(stats *runtimestats.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := stats.Snapshot()
		status := http.StatusOK
		body := map[string]any{
			"ok":                  true,
			"changeStreamRunning": snap.ChangeStreamRunning,
			"replicaSetEnabled":   snap.ReplicaSetEnabled,
		}
		writeJSON(w, status, body)
	}
}

func handleStats(stats *runtimestats.Stats, q QueueDepther) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := stats.Snapshot()
		depth := 0
		if q != nil {
			depth = q.Depth()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"processedSuccess":    snap.ProcessedSuccess,
			"processedFailed":     snap.ProcessedFailed,
			"retried":             snap.Retried,
			"queueEnqueued":       snap.QueueEnqueued,
			"queueDepth":          depth,
			"inFlightComplaintId": snap.InFlightComplaintID,
			"changeStreamRunning": snap.ChangeStreamRunning,
			"replicaSetEnabled":   snap.ReplicaSetEnabled,
			"retryAttemptCount":   snap.RetryAttemptCount,
		})
	}
}

func handlePendingCount(st PendingCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := st.CountPending(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pendingCount": n})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
