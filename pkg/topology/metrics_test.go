package topology

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestAggregateObserve(t *testing.T) {
	var a Aggregate
	for _, v := range []uint64{10, 2, 7} {
		a.observe(v)
	}

	if a.Count != 3 {
		t.Errorf("count = %d, want 3", a.Count)
	}
	if a.Last != 7 {
		t.Errorf("last = %d, want 7", a.Last)
	}
	if a.Min != 2 || a.Max != 10 {
		t.Errorf("min/max = %d/%d, want 2/10", a.Min, a.Max)
	}
	want := (10.0 + 2.0 + 7.0) / 3.0
	if diff := a.Avg - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg = %f, want %f", a.Avg, want)
	}
}

func TestAggregateFirstObservationSetsBounds(t *testing.T) {
	var a Aggregate
	a.observe(0)

	if a.Count != 1 || a.Min != 0 || a.Max != 0 {
		t.Errorf("after observing zero: %+v", a)
	}
}

func TestAggregateInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("min <= avg <= max after any sequence", prop.ForAll(
		func(values []uint64) bool {
			if len(values) == 0 {
				return true
			}
			var a Aggregate
			for _, v := range values {
				a.observe(v)
			}
			return a.Avg >= float64(a.Min)-1e-6 &&
				a.Avg <= float64(a.Max)+1e-6 &&
				a.Count == uint64(len(values)) &&
				a.Last == values[len(values)-1]
		},
		gen.SliceOf(gen.UInt64Range(0, 1<<32)),
	))

	properties.TestingRun(t)
}

func TestLinkMetricsSample(t *testing.T) {
	m := newLinkMetrics()

	m.sample(SampleBundle{BytesSent: 512, MessagesSent: 4, QueueDepth: 2}, 1000)
	m.sample(SampleBundle{BytesSent: 256, MessagesSent: 1}, 2000)

	if m.TotalBytes != 768 {
		t.Errorf("total bytes = %d, want 768", m.TotalBytes)
	}
	if m.TotalMessages != 5 {
		t.Errorf("total messages = %d, want 5", m.TotalMessages)
	}
	if m.FirstSample != 1000 {
		t.Errorf("first sample = %d, want 1000", m.FirstSample)
	}
	if m.LastSample != 2000 {
		t.Errorf("last sample = %d, want 2000", m.LastSample)
	}
	if m.Measurements[BytesSent].Count != 2 {
		t.Errorf("bytes_sent count = %d, want 2", m.Measurements[BytesSent].Count)
	}
	if m.Measurements[QueueDepth].Count != 1 {
		t.Errorf("queue_depth count = %d, want 1", m.Measurements[QueueDepth].Count)
	}
}

func TestLinkMetricsEmptyBundle(t *testing.T) {
	m := newLinkMetrics()
	m.sample(SampleBundle{}, 1000)

	if m.FirstSample != 0 || m.LastSample != 0 {
		t.Error("empty bundle must not touch sample timestamps")
	}
}

func TestMetricKindNames(t *testing.T) {
	cases := map[MetricKind]string{
		QueueDepth:        "queue_depth",
		QueueLatency:      "queue_latency (us)",
		NetLatency:        "net_latency (us)",
		BytesPerSecond:    "bytes_per_second",
		MessagesPerSecond: "messages_per_second",
		ForkMaxDepth:      "fork_max_depth",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("kind %d = %q, want %q", kind, kind.String(), want)
		}
	}
	if MetricKind(200).String() != "error" {
		t.Error("out-of-range kind must render as error")
	}
}

func TestMetricKindsOrdering(t *testing.T) {
	kinds := MetricKinds()
	if len(kinds) != 11 {
		t.Fatalf("kinds = %d, want 11", len(kinds))
	}
	if kinds[0] != QueueDepth || kinds[len(kinds)-1] != ForkMaxDepth {
		t.Error("report ordering changed")
	}
}
