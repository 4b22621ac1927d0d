package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTopologyMetrics() {
	r.NodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_nodes_total",
			Help: "Number of nodes currently in the topology map",
		},
	)

	r.LinksTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_links_total",
			Help: "Number of link records in the topology map, including soft-deleted links",
		},
	)

	r.LinkClosuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "topology_link_closures_total",
			Help: "Total number of link closure (soft delete) events",
		},
	)

	r.SamplesIngestedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "topology_samples_ingested_total",
			Help: "Total number of link samples folded into the metrics model",
		},
	)

	r.RouteLookupsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topology_route_lookups_total",
			Help: "Total number of route computations",
		},
		[]string{"result"},
	)
}
