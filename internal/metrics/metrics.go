// Package metrics provides Prometheus metrics for the bridges.
//
// Features:
//   - Counters for key events, polls, picker requests and import outcomes
//   - Gauges for queue backlogs, sampled on scrape
//   - Histogram for end-to-end import duration
//   - A private registry per shell, with an optional HTTP handler
//
// Every method is safe on a nil *Metrics so components can run unmetered.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "oxygencrate"

// Key event results.
const (
	KeyQueued  = "queued"
	KeyIgnored = "ignored"
	KeyDropped = "dropped"
)

// Import outcomes.
const (
	ImportImported = "imported"
	ImportFailed   = "failed"
	ImportCanceled = "canceled"
	ImportIgnored  = "ignored"
)

// Metrics holds the collectors shared by the input and import bridges.
type Metrics struct {
	registry *prometheus.Registry
	ns       string

	KeyEvents      *prometheus.CounterVec
	CharsPolled    prometheus.Counter
	PickerRequests prometheus.Counter
	Imports        *prometheus.CounterVec
	ImportedBytes  prometheus.Counter
	ImportDuration prometheus.Histogram
}

// New creates and registers the collectors on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ns:       namespace,
		KeyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "input",
			Name:      "key_events_total",
			Help:      "Key events seen by the input bridge, by result.",
		}, []string{"result"}),
		CharsPolled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "input",
			Name:      "characters_polled_total",
			Help:      "Characters handed to the application loop.",
		}),
		PickerRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "picker_requests_total",
			Help:      "File picker launches requested.",
		}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "results_total",
			Help:      "Picker results handled, by outcome.",
		}, []string{"outcome"}),
		ImportedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "bytes_total",
			Help:      "Bytes copied into the import directory.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Time from picker result to queued path.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
	}

	reg.MustRegister(m.KeyEvents, m.CharsPolled, m.PickerRequests, m.Imports, m.ImportedBytes, m.ImportDuration)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// KeyEvent counts a key event by result.
func (m *Metrics) KeyEvent(result string) {
	if m == nil {
		return
	}
	m.KeyEvents.WithLabelValues(result).Inc()
}

// CharacterPolled counts a character delivered to the poller.
func (m *Metrics) CharacterPolled() {
	if m == nil {
		return
	}
	m.CharsPolled.Inc()
}

// PickerRequested counts a picker launch request.
func (m *Metrics) PickerRequested() {
	if m == nil {
		return
	}
	m.PickerRequests.Inc()
}

// ImportResult counts a handled picker result.
func (m *Metrics) ImportResult(outcome string) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(outcome).Inc()
}

// ImportCompleted records a successful copy.
func (m *Metrics) ImportCompleted(bytes int64, took time.Duration) {
	if m == nil {
		return
	}
	m.ImportedBytes.Add(float64(bytes))
	m.ImportDuration.Observe(took.Seconds())
}

// TrackQueue registers a gauge sampling a queue backlog on every scrape.
func (m *Metrics) TrackQueue(name string, depth func() int) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   m.ns,
		Subsystem:   "queue",
		Name:        "depth",
		Help:        "Items waiting to be polled.",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 { return float64(depth()) }))
}
