package infrastructure

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// Metrics holds the Prometheus metrics for the detection pipeline
type Metrics struct {
	Registry *prometheus.Registry

	EventsTotal      *prometheus.CounterVec
	ActionsTotal     *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	ContainmentState prometheus.Gauge
	DecoysTracked    prometheus.Gauge
	ScanFilesSampled prometheus.Counter
	ScanDuration     prometheus.Histogram
}

// NewMetrics creates metrics on a private registry so multiple instances never collide
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ransomtrap_detection_events_total",
			Help: "Total number of detection events by kind",
		}, []string{"kind"}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ransomtrap_containment_actions_total",
			Help: "Total number of containment actions by action and outcome",
		}, []string{"action", "outcome"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ransomtrap_events_dropped_total",
			Help: "Total number of events dropped because the response queue was full",
		}),
		ContainmentState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ransomtrap_containment_triggered",
			Help: "1 when containment is TRIGGERED, 0 when IDLE",
		}),
		DecoysTracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ransomtrap_decoys_tracked",
			Help: "Number of decoys in the canary ledger",
		}),
		ScanFilesSampled: factory.NewCounter(prometheus.CounterOpts{
			Name: "ransomtrap_entropy_files_sampled_total",
			Help: "Total number of files sampled by the entropy scanner",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ransomtrap_entropy_scan_duration_seconds",
			Help:    "Duration of entropy scan passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

// ObserveEvent increments the event counter for kind
func (m *Metrics) ObserveEvent(kind domain.EventKind) {
	m.EventsTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveAction increments the action counter
func (m *Metrics) ObserveAction(record domain.ActionRecord) {
	m.ActionsTotal.WithLabelValues(string(record.Action), record.Outcome).Inc()
}

// SetContainmentState updates the state gauge
func (m *Metrics) SetContainmentState(state domain.ContainmentState) {
	if state == domain.StateTriggered {
		m.ContainmentState.Set(1)
		return
	}
	m.ContainmentState.Set(0)
}

// EventDropped counts an event lost to a full queue
func (m *Metrics) EventDropped() {
	m.EventsDropped.Inc()
}

// SetDecoysTracked updates the ledger size gauge
func (m *Metrics) SetDecoysTracked(n int) {
	m.DecoysTracked.Set(float64(n))
}

// ObserveScan records one entropy scan pass
func (m *Metrics) ObserveScan(filesSampled int, seconds float64) {
	m.ScanFilesSampled.Add(float64(filesSampled))
	m.ScanDuration.Observe(seconds)
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
