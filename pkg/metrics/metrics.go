package metrics

// Message actions recorded by RecordMessage.
const (
	ActionForwarded = "forwarded"
	ActionDropped   = "dropped"
	ActionPublished = "published"
)

// Route lookup results recorded by RecordRouteLookup.
const (
	RouteFound    = "found"
	RouteNotFound = "not_found"
)

// UpdateTopologySize sets the current node and link gauges
func (r *Registry) UpdateTopologySize(nodes, links int) {
	r.NodesTotal.Set(float64(nodes))
	r.LinksTotal.Set(float64(links))
}

// RecordLinkClosure records a link soft-delete
func (r *Registry) RecordLinkClosure() {
	r.LinkClosuresTotal.Inc()
}

// RecordSample records one ingested link sample
func (r *Registry) RecordSample() {
	r.SamplesIngestedTotal.Inc()
}

// RecordRouteLookup records a route computation and its outcome
func (r *Registry) RecordRouteLookup(result string) {
	r.RouteLookupsTotal.WithLabelValues(result).Inc()
}

// RecordMessage records a relay decision for a topology message
func (r *Registry) RecordMessage(action string) {
	r.MessagesTotal.WithLabelValues(action).Inc()
}

// RecordForkEvent records a detected production anomaly by kind
// ("overage", "deficit" or "depth")
func (r *Registry) RecordForkEvent(kind string) {
	r.ForkEventsTotal.WithLabelValues(kind).Inc()
}
