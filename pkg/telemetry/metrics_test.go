package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	return m
}

func TestMetrics_Record(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCompile("succeeded", 20*time.Millisecond)
	m.RecordCompile("succeeded", 10*time.Millisecond)
	m.RecordCompile("partial", 10*time.Millisecond)
	m.RecordComponent("emitted")
	m.RecordError("ConflictingOptions")
	m.RecordPrimitive("action")
	m.RecordPrimitive("action")
	m.RecordPolicyViolation("volume-clipping", "warning")
	m.SetRegisteredObjects(3)

	if got := testutil.ToFloat64(m.compilesTotal.WithLabelValues("succeeded")); got != 2 {
		t.Errorf("Expected 2 succeeded compiles, got %v", got)
	}
	if got := testutil.ToFloat64(m.compilesTotal.WithLabelValues("partial")); got != 1 {
		t.Errorf("Expected 1 partial compile, got %v", got)
	}
	if got := testutil.ToFloat64(m.componentsTotal.WithLabelValues("emitted")); got != 1 {
		t.Errorf("Expected 1 emitted component, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsByKind.WithLabelValues("ConflictingOptions")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(m.primitivesBuilt.WithLabelValues("action")); got != 2 {
		t.Errorf("Expected 2 primitives, got %v", got)
	}
	if got := testutil.ToFloat64(m.policyViolations.WithLabelValues("volume-clipping", "warning")); got != 1 {
		t.Errorf("Expected 1 violation, got %v", got)
	}
	if got := testutil.ToFloat64(m.registeredObjects); got != 3 {
		t.Errorf("Expected 3 registered objects, got %v", got)
	}
	if testutil.ToFloat64(m.lastCompile) == 0 {
		t.Error("Expected last compile timestamp to be set")
	}
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// None of these may panic.
	m.RecordCompile("succeeded", time.Second)
	m.RecordComponent("failed")
	m.RecordStage("emit", time.Millisecond)
	m.RecordError("Internal")
	m.RecordPrimitive("condition")
	m.RecordPolicyViolation("p", "info")
	m.SetRegisteredObjects(1)

	if m.Enabled() {
		t.Error("Expected metrics to be disabled")
	}

	server, err := m.StartMetricsServer(zerolog.Nop())
	if err != nil || server != nil {
		t.Errorf("Expected no server for disabled metrics, got %v, %v", server, err)
	}

	var nilMetrics *Metrics
	nilMetrics.RecordCompile("failed", time.Second)
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordCompile("succeeded", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `recwire_compiles_total{status="succeeded"} 1`) {
		t.Errorf("Expected compiles counter in output, got:\n%s", rec.Body.String())
	}
}

func TestMetrics_StartMetricsServer(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.ListenAddress = "127.0.0.1:0"
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	m.RecordPrimitive("action")

	server, err := m.StartMetricsServer(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown(context.Background())

	resp, err := http.Get("http://" + server.Addr + "/metrics")
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "recwire_primitives_built_total") {
		t.Errorf("Expected primitives counter in scrape, got:\n%s", body)
	}
}
