package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	enabled.Store(false)
	queueDepthGauge = nil

	Init(nil, false)
	if Enabled() {
		t.Fatalf("expected disabled after Init(nil, false)")
	}
	// observe calls must not panic with nil collectors
	IncClaimed("changestream")
	SetQueueDepth(3)
	ObserveProcessed("done", 0.5)
}

func TestObserve_RegistersAndScrapes(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)

	IncClaimed("changestream")
	ObserveProcessed("done", 0.25)
	SetQueueDepth(7)
	IncQueueDropped("duplicate")
	ObserveInferenceStage("detector", 0.1, nil)
	IncDuplicateCheck("fingerprint", "duplicate")
	IncRetryAttempt("ok")
	IncRetryExhausted()
	SetStoreBreakerState(1)
	ObserveHTTP("GET", "/health", 200, 0.002)
	IncChangeStreamEvent("update")
	IncEventPublish("ok")

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()

	body := new(strings.Builder)
	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			body.WriteString(string(buf[:n]))
		}
		if rerr != nil {
			break
		}
	}
	out := body.String()

	for _, want := range []string{
		"complaints_claimed_total",
		"complaints_processed_total",
		"queue_depth 7",
		"queue_dropped_total",
		"inference_stage_duration_seconds_bucket",
		"duplicate_checks_total",
		"retry_attempts_total",
		"retry_exhausted_total 1",
		"store_breaker_state 1",
		"http_requests_total",
		"change_stream_events_total",
		"event_publish_total",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q, got:\n%s", want, out)
		}
	}
}
