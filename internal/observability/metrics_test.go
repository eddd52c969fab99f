package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFlow(true)
		m.ObservePass(10, 20)
		m.ObserveRule("pattern", "error")
		m.ObserveSuppression("response")
	})
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveFlow(true)
	m.ObserveFlow(false)
	m.ObservePass(100, 120)
	m.ObserveRule("literal", "changed")
	m.ObserveSuppression("request")

	srv := httptest.NewServer(m.Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	for _, want := range []string{
		`rewriteproxy_flows_total{eligible="true"} 1`,
		`rewriteproxy_flows_total{eligible="false"} 1`,
		`rewriteproxy_passes_total 1`,
		`rewriteproxy_rule_results_total{kind="literal",result="changed"} 1`,
		`rewriteproxy_cache_suppressions_total{direction="request"} 1`,
	} {
		assert.True(t, strings.Contains(text, want), "missing %q", want)
	}
}
