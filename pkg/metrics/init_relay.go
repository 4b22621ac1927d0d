package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRelayMetrics() {
	r.MessagesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topology_messages_total",
			Help: "Total number of topology messages by action",
		},
		[]string{"action"},
	)

	r.ForkEventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topology_fork_events_total",
			Help: "Total number of detected block-production anomalies by kind",
		},
		[]string{"kind"},
	)
}
