package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Factory creates metrics that are registered on construction.
type Factory interface {
	NewCounter(opts prometheus.CounterOpts) prometheus.Counter
	NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec
	NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge
	NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec
	NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram
	NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec
}

var _ Factory = promauto.Factory{}

// With returns a Factory registering all metrics on the given registry.
func With(registry *prometheus.Registry) Factory {
	return promauto.With(registry)
}

// NewRegistry creates a private registry; nothing is registered globally.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
