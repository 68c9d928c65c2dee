package telemetry

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for compile runs.
// All recording methods are no-ops when metrics are disabled.
type Metrics struct {
	config MetricsConfig

	// Compile run metrics
	compilesTotal   *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	lastCompile     prometheus.Gauge

	// Per-component metrics
	componentsTotal *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	errorsByKind    *prometheus.CounterVec

	// Automation metrics
	primitivesBuilt *prometheus.CounterVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Registry contents
	registeredObjects prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		compilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of compile runs by outcome",
			},
			[]string{"status"},
		),
		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of compile runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		lastCompile: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_compile_timestamp_seconds",
				Help:      "Unix time of the last completed compile run",
			},
		),
		componentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "components_total",
				Help:      "Total number of components processed by final state",
			},
			[]string{"state"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of individual compile stages in seconds",
				Buckets:   buckets,
			},
			[]string{"stage"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "component_errors_total",
				Help:      "Total number of component errors by error kind",
			},
			[]string{"kind"},
		),
		primitivesBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "primitives_built_total",
				Help:      "Total number of action and condition primitives built",
			},
			[]string{"kind"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),
		registeredObjects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registered_objects",
				Help:      "Number of objects in the component registry after the last run",
			},
		),
	}

	registry.MustRegister(
		m.compilesTotal,
		m.compileDuration,
		m.lastCompile,
		m.componentsTotal,
		m.stageDuration,
		m.errorsByKind,
		m.primitivesBuilt,
		m.policyViolations,
		m.registeredObjects,
	)

	return m, nil
}

// Enabled reports whether metrics are being collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// RecordCompile records a finished compile run.
func (m *Metrics) RecordCompile(status string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.compilesTotal.WithLabelValues(status).Inc()
	m.compileDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.lastCompile.SetToCurrentTime()
}

// RecordComponent records a component reaching its final state.
func (m *Metrics) RecordComponent(state string) {
	if !m.Enabled() {
		return
	}
	m.componentsTotal.WithLabelValues(state).Inc()
}

// RecordStage records the duration of one compile stage.
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordError records a component error by kind.
func (m *Metrics) RecordError(kind string) {
	if !m.Enabled() {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// RecordPrimitive records a built automation primitive.
func (m *Metrics) RecordPrimitive(kind string) {
	if !m.Enabled() {
		return
	}
	m.primitivesBuilt.WithLabelValues(kind).Inc()
}

// RecordPolicyViolation records a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if !m.Enabled() {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// SetRegisteredObjects sets the registry size gauge.
func (m *Metrics) SetRegisteredObjects(count int) {
	if !m.Enabled() {
		return
	}
	m.registeredObjects.Set(float64(count))
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics on the configured address until the
// returned server is shut down. A nil server is returned when metrics are
// disabled.
func (m *Metrics) StartMetricsServer(logger zerolog.Logger) (*http.Server, error) {
	if !m.Enabled() {
		return nil, nil
	}

	listener, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", m.config.ListenAddress, err)
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("path", m.config.Path).
		Msg("Metrics server started")

	return server, nil
}
