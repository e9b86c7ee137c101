// Package telemetry exposes the Prometheus collectors for the AI worker.
// Collectors are package-level and only allocated when Init is called with
// metrics enabled, so importers in tests can call the observe functions
// freely without a registry in place.
package telemetry

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if !isEnabled || r == nil {
		return
	}
	initCollectors(r)
}

func Enabled() bool { return enabled.Load() }

var (
	complaintsClaimedTotal    *prometheus.CounterVec
	complaintsProcessedTotal  *prometheus.CounterVec
	processingDurationSeconds *prometheus.HistogramVec
	queueDepthGauge           prometheus.Gauge
	queueDroppedTotal         *prometheus.CounterVec
	inferenceDurationSeconds  *prometheus.HistogramVec
	inferenceErrorsTotal      *prometheus.CounterVec
	duplicateChecksTotal      *prometheus.CounterVec
	retryAttemptsTotal        *prometheus.CounterVec
	retryExhaustedTotal       prometheus.Counter
	storeBreakerStateGauge    prometheus.Gauge
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	changeStreamEventsTotal   *prometheus.CounterVec
	eventPublishTotal         *prometheus.CounterVec
)

func initCollectors(r prometheus.Registerer) {
	complaintsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "complaints_claimed_total", Help: "Complaints successfully claimed for processing by source."},
		[]string{"source"},
	)
	complaintsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "complaints_processed_total", Help: "Complaints that finished processing by outcome."},
		[]string{"outcome"},
	)
	processingDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "complaint_processing_duration_seconds", Help: "End-to-end per-complaint processing latency.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 12)},
		[]string{"outcome"},
	)
	queueDepthGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "queue_depth", Help: "Current number of complaint ids waiting in the in-memory queue."},
	)
	queueDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "queue_dropped_total", Help: "Items dropped from the queue by reason (duplicate, in_flight)."},
		[]string{"reason"},
	)
	inferenceDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "inference_stage_duration_seconds", Help: "Latency of an individual inference stage.", Buckets: prometheus.ExponentialBuckets(0.01, 2, 12)},
		[]string{"stage"},
	)
	inferenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "inference_stage_errors_total", Help: "Failures of an individual inference stage."},
		[]string{"stage"},
	)
	duplicateChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "duplicate_checks_total", Help: "Duplicate validator outcomes by method and result."},
		[]string{"method", "result"},
	)
	retryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "retry_attempts_total", Help: "Reconciler retry attempts by outcome."},
		[]string{"outcome"},
	)
	retryExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "retry_exhausted_total", Help: "Failed complaints skipped by the reconciler because their retry attempts are exhausted."},
	)
	storeBreakerStateGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "store_breaker_state", Help: "Circuit breaker state for the document store (0=closed, 1=open, 2=half-open)."},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Monitoring HTTP server requests by route and status."},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "Monitoring HTTP server request duration.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 12)},
		[]string{"method", "route", "status"},
	)
	changeStreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "change_stream_events_total", Help: "Change stream events observed by operation type."},
		[]string{"operation"},
	)
	eventPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "event_publish_total", Help: "Completion event publish attempts by outcome."},
		[]string{"outcome"},
	)

	r.MustRegister(
		complaintsClaimedTotal, complaintsProcessedTotal, processingDurationSeconds,
		queueDepthGauge, queueDroppedTotal,
		inferenceDurationSeconds, inferenceErrorsTotal,
		duplicateChecksTotal,
		retryAttemptsTotal, retryExhaustedTotal,
		storeBreakerStateGauge,
		httpRequestsTotal, httpRequestDurationSeconds,
		changeStreamEventsTotal, eventPublishTotal,
	)
}

func IncClaimed(source string) {
	if !enabled.Load() || complaintsClaimedTotal == nil {
		return
	}
	complaintsClaimedTotal.WithLabelValues(source).Inc()
}

func ObserveProcessed(outcome string, durationSeconds float64) {
	if !enabled.Load() || complaintsProcessedTotal == nil {
		return
	}
	complaintsProcessedTotal.WithLabelValues(outcome).Inc()
	processingDurationSeconds.WithLabelValues(outcome).Observe(durationSeconds)
}

func SetQueueDepth(n int) {
	if !enabled.Load() || queueDepthGauge == nil {
		return
	}
	queueDepthGauge.Set(float64(n))
}

func IncQueueDropped(reason string) {
	if !enabled.Load() || queueDroppedTotal == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	queueDroppedTotal.WithLabelValues(reason).Inc()
}

func ObserveInferenceStage(stage string, durationSeconds float64, err error) {
	if !enabled.Load() || inferenceDurationSeconds == nil {
		return
	}
	inferenceDurationSeconds.WithLabelValues(stage).Observe(durationSeconds)
	if err != nil {
		inferenceErrorsTotal.WithLabelValues(stage).Inc()
	}
}

func IncDuplicateCheck(method, result string) {
	if !enabled.Load() || duplicateChecksTotal == nil {
		return
	}
	duplicateChecksTotal.WithLabelValues(method, result).Inc()
}

func IncRetryAttempt(outcome string) {
	if !enabled.Load() || retryAttemptsTotal == nil {
		return
	}
	retryAttemptsTotal.WithLabelValues(outcome).Inc()
}

func IncRetryExhausted() {
	if !enabled.Load() || retryExhaustedTotal == nil {
		return
	}
	retryExhaustedTotal.Inc()
}

func SetStoreBreakerState(state int) {
	if !enabled.Load() || storeBreakerStateGauge == nil {
		return
	}
	storeBreakerStateGauge.Set(float64(state))
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() || httpRequestsTotal == nil {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func IncChangeStreamEvent(operation string) {
	if !enabled.Load() || changeStreamEventsTotal == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	changeStreamEventsTotal.WithLabelValues(operation).Inc()
}

func IncEventPublish(outcome string) {
	if !enabled.Load() || eventPublishTotal == nil {
		return
	}
	eventPublishTotal.WithLabelValues(outcome).Inc()
}
