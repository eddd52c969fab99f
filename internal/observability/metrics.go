package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer, every observe method is a no-op then.
type Metrics struct {
	flowsTotal        *prometheus.CounterVec
	passesTotal       prometheus.Counter
	ruleResultsTotal  *prometheus.CounterVec
	suppressionsTotal *prometheus.CounterVec
	bodyBytes         *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		flowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rewriteproxy_flows_total", Help: "Completed flows seen by the body hook"},
			[]string{"eligible"},
		),
		passesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "rewriteproxy_passes_total", Help: "Substitution passes run over response bodies"},
		),
		ruleResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rewriteproxy_rule_results_total", Help: "Rule applications by kind and result"},
			[]string{"kind", "result"},
		),
		suppressionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rewriteproxy_cache_suppressions_total", Help: "Header sets stripped of caching directives"},
			[]string{"direction"},
		),
		bodyBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewriteproxy_body_bytes",
				Help:    "Body size before and after a substitution pass",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"stage"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.flowsTotal,
		m.passesTotal,
		m.ruleResultsTotal,
		m.suppressionsTotal,
		m.bodyBytes,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFlow(eligible bool) {
	if m == nil {
		return
	}
	label := "false"
	if eligible {
		label = "true"
	}
	m.flowsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) ObservePass(bytesIn, bytesOut int) {
	if m == nil {
		return
	}
	m.passesTotal.Inc()
	m.bodyBytes.WithLabelValues("in").Observe(float64(bytesIn))
	m.bodyBytes.WithLabelValues("out").Observe(float64(bytesOut))
}

// ObserveRule result is one of "changed", "unchanged" or "error".
func (m *Metrics) ObserveRule(kind, result string) {
	if m == nil {
		return
	}
	m.ruleResultsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveSuppression direction is "request" or "response".
func (m *Metrics) ObserveSuppression(direction string) {
	if m == nil {
		return
	}
	m.suppressionsTotal.WithLabelValues(direction).Inc()
}
