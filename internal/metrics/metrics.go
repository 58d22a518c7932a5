// Package metrics exposes conversion counters through a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geoknoesis/csvw-go/issues"
)

const namespace = "csvw"

// Direction labels.
const (
	TabularToRDF = "csv2rdf"
	RDFToTabular = "rdf2csv"
)

// Metrics holds the counters of one converter instance.
type Metrics struct {
	registry *prometheus.Registry

	quads       prometheus.Counter
	rows        *prometheus.CounterVec
	issues      *prometheus.CounterVec
	evictions   prometheus.Counter
	conversions *prometheus.CounterVec
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quads_emitted_total",
			Help:      "Quads emitted by tabular to RDF conversions.",
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_emitted_total",
			Help:      "Rows processed or produced, by direction.",
		}, []string{"direction"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Validation issues raised, by severity.",
		}, []string{"severity"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_evictions_total",
			Help:      "Quads evicted from the resident window.",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Finished conversions, by direction and outcome.",
		}, []string{"direction", "outcome"}),
	}
	m.registry.MustRegister(m.quads, m.rows, m.issues, m.evictions, m.conversions)
	return m
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the counters in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) QuadEmitted() {
	if m != nil {
		m.quads.Inc()
	}
}

func (m *Metrics) RowEmitted(direction string) {
	if m != nil {
		m.rows.WithLabelValues(direction).Inc()
	}
}

func (m *Metrics) Evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

// Issue counts one issue.
func (m *Metrics) Issue(sev issues.Severity) {
	if m != nil {
		m.issues.WithLabelValues(sev.String()).Inc()
	}
}

// Track counts every issue raised on tr.
func (m *Metrics) Track(tr *issues.Tracker) {
	if m == nil || tr == nil {
		return
	}
	tr.OnIssue(func(i issues.Issue) { m.Issue(i.Severity) })
}

// Finished counts a conversion that ended with err.
func (m *Metrics) Finished(direction string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.conversions.WithLabelValues(direction, outcome).Inc()
}
