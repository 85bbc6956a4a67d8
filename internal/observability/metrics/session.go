package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type SessionMetrics struct {
	registry *prometheus.Registry

	sessionsTotal     *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec
	sessionsInFlight  prometheus.Gauge
	dispatchTotal     *prometheus.CounterVec
	refinementCycles  *prometheus.HistogramVec
	acquireFailures   *prometheus.CounterVec
	indexedChunks     *prometheus.HistogramVec
	contextChunksKept *prometheus.HistogramVec
}

func NewSessionMetrics(service string) *SessionMetrics {
	registry := prometheus.NewRegistry()

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "research",
			Subsystem: "session",
			Name:      "sessions_total",
			Help:      "Total finished research sessions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	sessionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "research",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Research session duration in seconds by outcome.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "outcome"},
	)
	sessionsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "research",
			Subsystem: "session",
			Name:      "in_flight",
			Help:      "Number of research sessions currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	dispatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "research",
			Subsystem: "session",
			Name:      "dispatches_total",
			Help:      "Total capability dispatches by capability name.",
		},
		[]string{"service", "capability"},
	)
	refinementCycles := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "research",
			Subsystem: "session",
			Name:      "refinement_cycles",
			Help:      "Distribution of refinement cycles per session.",
			Buckets:   []float64{0, 1, 2},
		},
		[]string{"service"},
	)
	acquireFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "research",
			Subsystem: "acquire",
			Name:      "failures_total",
			Help:      "Total full-text acquisition failures by source.",
		},
		[]string{"service", "source"},
	)
	indexedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "research",
			Subsystem: "index",
			Name:      "chunks_added",
			Help:      "Distribution of chunks added to the vector index per session.",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	contextChunksKept := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "research",
			Subsystem: "context",
			Name:      "chunks_kept",
			Help:      "Distribution of chunks surviving context assembly per session.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		sessionsTotal,
		sessionDuration,
		sessionsInFlight,
		dispatchTotal,
		refinementCycles,
		acquireFailures,
		indexedChunks,
		contextChunksKept,
	)

	return &SessionMetrics{
		registry:          registry,
		sessionsTotal:     sessionsTotal,
		sessionDuration:   sessionDuration,
		sessionsInFlight:  sessionsInFlight,
		dispatchTotal:     dispatchTotal,
		refinementCycles:  refinementCycles,
		acquireFailures:   acquireFailures,
		indexedChunks:     indexedChunks,
		contextChunksKept: contextChunksKept,
	}
}

func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SessionMetrics) StartSession() {
	m.sessionsInFlight.Inc()
}

func (m *SessionMetrics) FinishSession(service, outcome string, duration time.Duration, refinements int) {
	m.sessionsInFlight.Dec()
	if outcome == "" {
		outcome = "unknown"
	}
	m.sessionsTotal.WithLabelValues(service, outcome).Inc()
	m.sessionDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
	m.refinementCycles.WithLabelValues(service).Observe(float64(refinements))
}

func (m *SessionMetrics) RecordDispatch(service, capability string) {
	if capability == "" {
		capability = "unknown"
	}
	m.dispatchTotal.WithLabelValues(service, capability).Inc()
}

func (m *SessionMetrics) RecordAcquireFailure(service, source string) {
	if source == "" {
		source = "unknown"
	}
	m.acquireFailures.WithLabelValues(service, source).Inc()
}

func (m *SessionMetrics) RecordIndexedChunks(service string, count int) {
	m.indexedChunks.WithLabelValues(service).Observe(float64(count))
}

func (m *SessionMetrics) RecordContextChunks(service string, count int) {
	m.contextChunksKept.WithLabelValues(service).Observe(float64(count))
}
