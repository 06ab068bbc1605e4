// Package telemetry exposes Prometheus metrics for detection and the MCP gateway.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
)

// Metrics records detection and gateway activity. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	detections      *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessionsActive  prometheus.Gauge
}

// New registers the toolbridge collectors on registerer, or on the default
// registerer when nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		detections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolbridge_detections_total",
				Help: "Total number of detector runs by outcome",
			},
			[]string{"tool", "result"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolbridge_detection_cache_total",
				Help: "Detection cache lookups by outcome",
			},
			[]string{"tool", "outcome"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolbridge_mcp_requests_total",
				Help: "Total number of MCP requests by status",
			},
			[]string{"server", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolbridge_mcp_request_duration_seconds",
				Help:    "Duration of MCP requests including spawn and teardown",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"server", "method"},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolbridge_mcp_sessions_active",
				Help: "Current number of live MCP server sessions",
			},
		),
	}
}

// ObserveDetection counts one detector run. result is "installed",
// "missing" or "error".
func (m *Metrics) ObserveDetection(tool, result string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(tool, result).Inc()
}

// ObserveCache counts one registry lookup.
func (m *Metrics) ObserveCache(tool string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(tool, outcome).Inc()
}

// ObserveRequest records a finished MCP request. The status label is "ok"
// or the error kind.
func (m *Metrics) ObserveRequest(server, method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(server, method, Status(err)).Inc()
	m.requestDuration.WithLabelValues(server, method).Observe(elapsed.Seconds())
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// Status maps an error to a metric label value.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
