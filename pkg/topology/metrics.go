package topology

// MetricKind enumerates the per-link measurements carried by link samples.
type MetricKind uint8

const (
	QueueDepth MetricKind = iota
	QueueMaxDepth
	QueueLatency
	NetLatency
	BytesSent
	MessagesSent
	BytesPerSecond
	MessagesPerSecond
	ForkInstances
	ForkDepth
	ForkMaxDepth
)

// String returns the metric name as used in reports.
func (k MetricKind) String() string {
	switch k {
	case QueueDepth:
		return "queue_depth"
	case QueueMaxDepth:
		return "queue_max_depth"
	case QueueLatency:
		return "queue_latency (us)"
	case NetLatency:
		return "net_latency (us)"
	case BytesSent:
		return "bytes_sent"
	case MessagesSent:
		return "messages_sent"
	case BytesPerSecond:
		return "bytes_per_second"
	case MessagesPerSecond:
		return "messages_per_second"
	case ForkInstances:
		return "fork_instances"
	case ForkDepth:
		return "fork_depth"
	case ForkMaxDepth:
		return "fork_max_depth"
	default:
		return "error"
	}
}

// metricKinds is the report ordering of all metric kinds.
var metricKinds = []MetricKind{
	QueueDepth, QueueMaxDepth, QueueLatency, NetLatency,
	BytesSent, MessagesSent, BytesPerSecond, MessagesPerSecond,
	ForkInstances, ForkDepth, ForkMaxDepth,
}

// MetricKinds returns every metric kind in report order.
func MetricKinds() []MetricKind {
	out := make([]MetricKind, len(metricKinds))
	copy(out, metricKinds)
	return out
}

// Aggregate is the running statistic for one metric kind on one flow
// direction. Count only ever increases; Avg is an incremental running mean,
// not an exact time series.
type Aggregate struct {
	Count uint64  `json:"count"`
	Last  uint64  `json:"last"`
	Min   uint64  `json:"min"`
	Max   uint64  `json:"max"`
	Avg   float64 `json:"avg"`
}

func (a *Aggregate) observe(v uint64) {
	if a.Count == 0 {
		a.Min = v
		a.Max = v
	} else {
		if v < a.Min {
			a.Min = v
		}
		if v > a.Max {
			a.Max = v
		}
	}
	a.Count++
	a.Last = v
	a.Avg += (float64(v) - a.Avg) / float64(a.Count)
}

// SampleBundle is the raw per-direction readings carried by one link sample.
type SampleBundle map[MetricKind]uint64

// LinkSample is one periodic measurement of a link, as reported by one of its
// endpoints. Up is the reporter's active→passive view; receivers on the other
// side flip the bundles before aggregation.
type LinkSample struct {
	Link LinkID       `json:"link"`
	Up   SampleBundle `json:"up,omitempty"`
	Down SampleBundle `json:"down,omitempty"`
}

// LinkMetrics aggregates samples for one flow direction of one link.
type LinkMetrics struct {
	Measurements map[MetricKind]Aggregate `json:"measurements"`

	// Link-level totals across all samples.
	TotalBytes    uint64 `json:"total_bytes"`
	TotalMessages uint64 `json:"total_messages"`

	// Unix seconds. FirstSample is set exactly once, by the first bundle
	// ever aggregated.
	FirstSample int64 `json:"first_sample"`
	LastSample  int64 `json:"last_sample"`
}

func newLinkMetrics() LinkMetrics {
	return LinkMetrics{Measurements: make(map[MetricKind]Aggregate)}
}

// sample folds one raw bundle into the running aggregates.
func (m *LinkMetrics) sample(b SampleBundle, now int64) {
	if len(b) == 0 {
		return
	}
	for kind, value := range b {
		agg := m.Measurements[kind]
		agg.observe(value)
		m.Measurements[kind] = agg
	}
	if v, ok := b[BytesSent]; ok {
		m.TotalBytes += v
	}
	if v, ok := b[MessagesSent]; ok {
		m.TotalMessages += v
	}
	if m.FirstSample == 0 {
		m.FirstSample = now
	}
	m.LastSample = now
}
