package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	gocl "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// MetricChecker gathers the metrics of a registry once, and looks them up for test assertions.
type MetricChecker struct {
	families []*gocl.MetricFamily
	t        require.TestingT
}

func NewMetricChecker(t require.TestingT, reg *prometheus.Registry) *MetricChecker {
	families, err := reg.Gather()
	require.NoError(t, err, "must gather metrics")
	return &MetricChecker{families: families, t: t}
}

// Find returns the single metric with the given family name and labels, failing the test otherwise.
func (m *MetricChecker) Find(name string, labels map[string]string) *gocl.Metric {
	var found *gocl.Metric
	for _, fam := range m.families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.Metric {
			if matchLabels(metric, labels) {
				require.Nil(m.t, found, "duplicate metric %s with labels %v", name, labels)
				found = metric
			}
		}
	}
	require.NotNil(m.t, found, "cannot find metric %s with labels %v", name, labels)
	return found
}

// CounterValue returns the value of the counter with the given name and labels.
func (m *MetricChecker) CounterValue(name string, labels map[string]string) float64 {
	return m.Find(name, labels).GetCounter().GetValue()
}

// GaugeValue returns the value of the gauge with the given name and labels.
func (m *MetricChecker) GaugeValue(name string, labels map[string]string) float64 {
	return m.Find(name, labels).GetGauge().GetValue()
}

func matchLabels(m *gocl.Metric, labels map[string]string) bool {
	for k, v := range labels {
		ok := false
		for _, lab := range m.Label {
			if lab.GetName() == k && lab.GetValue() == v {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
