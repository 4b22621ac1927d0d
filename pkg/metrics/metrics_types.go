package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the topology service
type Registry struct {
	// Topology model metrics
	NodesTotal        prometheus.Gauge
	LinksTotal        prometheus.Gauge
	LinkClosuresTotal prometheus.Counter

	// Sample ingestion metrics
	SamplesIngestedTotal prometheus.Counter

	// Routing metrics
	RouteLookupsTotal *prometheus.CounterVec

	// Relay metrics
	MessagesTotal *prometheus.CounterVec

	// Fork detection metrics
	ForkEventsTotal *prometheus.CounterVec

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initTopologyMetrics()
	r.initRelayMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
