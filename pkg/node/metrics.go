package node

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultEmitted = "emitted"
	resultSkipped = "skipped"
)

// Metrics holds the Prometheus collectors of rect transform nodes.
type Metrics struct {
	packets  *prometheus.CounterVec
	registry *prometheus.Registry
}

// NewMetrics creates node metrics registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.NewRegistry())
}

// NewMetricsWithRegistry creates node metrics registered on registry.
func NewMetricsWithRegistry(namespace string, registry *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "rect_transform"
	}

	m := &Metrics{
		registry: registry,
		packets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packets_total",
				Help:      "Packets processed by rect transform nodes",
			},
			[]string{"kind", "result"},
		),
	}
	registry.MustRegister(m.packets)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
