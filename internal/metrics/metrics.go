// Package metrics exposes kiosk counters and latencies to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the kiosk collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Sessions          *prometheus.CounterVec
	Shots             prometheus.Counter
	CaptureWarnings   prometheus.Counter
	Uploads           *prometheus.CounterVec
	PrintCopies       *prometheus.CounterVec
	ComposeSeconds    *prometheus.HistogramVec
	RemainingSessions prometheus.Gauge
	SSEClients        prometheus.Gauge
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tuibooth_sessions_total",
			Help: "Guest sessions by outcome",
		}, []string{"outcome"}),
		Shots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tuibooth_shots_total",
			Help: "Frames captured into shot sets",
		}),
		CaptureWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tuibooth_capture_warnings_total",
			Help: "Non-fatal capture warnings (camera fallback, missed frames)",
		}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tuibooth_uploads_total",
			Help: "Session uploads by result",
		}, []string{"result"}),
		PrintCopies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tuibooth_print_copies_total",
			Help: "Printed copies by page mode",
		}, []string{"mode"}),
		ComposeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tuibooth_compose_seconds",
			Help:    "Composite build duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"variant"}),
		RemainingSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuibooth_remaining_sessions",
			Help: "Licensed sessions left on this device",
		}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tuibooth_sse_clients",
			Help: "Connected operator event streams",
		}),
	}
	m.registry.MustRegister(
		m.Sessions,
		m.Shots,
		m.CaptureWarnings,
		m.Uploads,
		m.PrintCopies,
		m.ComposeSeconds,
		m.RemainingSessions,
		m.SSEClients,
	)
	return m
}

// SessionFinished counts a session outcome: completed, aborted or failed.
func (m *Metrics) SessionFinished(outcome string) {
	m.Sessions.WithLabelValues(outcome).Inc()
}

// ShotCaptured counts one captured frame.
func (m *Metrics) ShotCaptured() {
	m.Shots.Inc()
}

// CaptureWarning counts one capture warning.
func (m *Metrics) CaptureWarning() {
	m.CaptureWarnings.Inc()
}

// Uploaded counts an upload attempt.
func (m *Metrics) Uploaded(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.Uploads.WithLabelValues(result).Inc()
}

// Printed counts printed copies.
func (m *Metrics) Printed(cut bool, copies int) {
	mode := "4r"
	if cut {
		mode = "strip"
	}
	m.PrintCopies.WithLabelValues(mode).Add(float64(copies))
}

// ObserveCompose records how long a composite variant took.
func (m *Metrics) ObserveCompose(variant string, d time.Duration) {
	m.ComposeSeconds.WithLabelValues(variant).Observe(d.Seconds())
}

// SetRemaining records the licensed session count.
func (m *Metrics) SetRemaining(n int) {
	m.RemainingSessions.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
