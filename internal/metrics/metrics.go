// Package metrics exposes Prometheus collectors for the QC engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qc"

// Metrics holds the engine's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	inspectionsCreated  *prometheus.CounterVec
	inspectionsRecorded *prometheus.CounterVec
	inspectionScore     *prometheus.HistogramVec
	reworkCards         *prometheus.CounterVec
	certificates        *prometheus.CounterVec
	activeAlerts        *prometheus.GaugeVec
	httpRequests        *prometheus.CounterVec
}

// New registers the QC collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inspectionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_created_total",
			Help:      "Inspections created, by stage.",
		}, []string{"stage"}),
		inspectionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_recorded_total",
			Help:      "Inspections resolved to a final status, by stage and status.",
		}, []string{"stage", "status"}),
		inspectionScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inspection_score",
			Help:      "Overall score of recorded inspections.",
			Buckets:   []float64{50, 60, 70, 80, 85, 90, 95, 100},
		}, []string{"stage"}),
		reworkCards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rework_cards_total",
			Help:      "Rework job cards raised, by stage.",
		}, []string{"stage"}),
		certificates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_transitions_total",
			Help:      "Certificate lifecycle transitions, by type and resulting state.",
		}, []string{"type", "state"}),
		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts in the most recent scan, by type.",
		}, []string{"type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inspectionsCreated,
		m.inspectionsRecorded,
		m.inspectionScore,
		m.reworkCards,
		m.certificates,
		m.activeAlerts,
		m.httpRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) InspectionCreated(stage string) {
	if m == nil {
		return
	}
	m.inspectionsCreated.WithLabelValues(stage).Inc()
}

func (m *Metrics) InspectionRecorded(stage, status string, score int) {
	if m == nil {
		return
	}
	m.inspectionsRecorded.WithLabelValues(stage, status).Inc()
	m.inspectionScore.WithLabelValues(stage).Observe(float64(score))
}

func (m *Metrics) ReworkRaised(stage string) {
	if m == nil {
		return
	}
	m.reworkCards.WithLabelValues(stage).Inc()
}

func (m *Metrics) CertificateTransition(certType, state string) {
	if m == nil {
		return
	}
	m.certificates.WithLabelValues(certType, state).Inc()
}

// SetActiveAlerts replaces the alert gauge with counts from the latest scan.
func (m *Metrics) SetActiveAlerts(counts map[string]int) {
	if m == nil {
		return
	}
	m.activeAlerts.Reset()
	for typ, n := range counts {
		m.activeAlerts.WithLabelValues(typ).Set(float64(n))
	}
}

func (m *Metrics) HTTPRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
