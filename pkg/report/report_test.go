package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/forks"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

type scheduleChain struct {
	producers []string
}

func (c *scheduleChain) HeadProducer() (string, error)      { return c.producers[0], nil }
func (c *scheduleChain) PendingProducer() (string, error)   { return c.producers[1], nil }
func (c *scheduleChain) ActiveProducers() ([]string, error) { return c.producers, nil }

func buildSource(t *testing.T) (Source, topology.LinkID) {
	t.Helper()
	reg := topology.NewRegistry(nil)

	a := reg.AddNode(topology.NodeDescriptor{
		Location: "us-east", Role: topology.RoleProducer, Version: "2.1",
		Producers: []string{"alpha"},
	})
	p := reg.AddNode(topology.NodeDescriptor{
		Location: "eu-west", Role: topology.RoleProducer, Version: "2.1",
		Producers: []string{"beta"},
	})
	ab := reg.AddLink(topology.LinkDescriptor{Active: a, Passive: p, Role: topology.LinkCombined})

	det := forks.NewDetector(&scheduleChain{producers: []string{"alpha", "beta"}}, 12, nil)
	det.Apply(&forks.ForkInfo{
		Producer:   "beta",
		Descriptor: forks.ForkDescriptor{FromLink: ab, ForkBase: "b42", Deficit: 2},
	})

	return Source{
		Registry:       reg,
		Detector:       det,
		LocalID:        a,
		LocalProducers: []string{"alpha"},
	}, ab
}

func TestRenderHeaderAndProducers(t *testing.T) {
	src, _ := buildSource(t)
	out := src.Render(time.Unix(1700000000, 0))

	for _, want := range []string{
		"# Link Performance Metrics",
		"reporting node: us-east",
		"## Local Producers",
		"alpha",
		"total nodes 2",
		"schedule has 2 producers",
		"| Producer Account | Location | Id | Hops | Episodes |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderForkEpisodes(t *testing.T) {
	src, _ := buildSource(t)
	out := src.Render(time.Now())

	if !strings.Contains(out, "Number of producers indicating microforks: 1") {
		t.Error("microfork producer count missing")
	}
	if !strings.Contains(out, "Producer beta has 1 episodes reported") {
		t.Error("per-producer episode line missing")
	}
	if !strings.Contains(out, "production deficit of 2 blocks") {
		t.Error("deficit symptom missing")
	}
}

func TestRenderLinkMetrics(t *testing.T) {
	src, ab := buildSource(t)
	src.Registry.RecordSample(&topology.LinkSample{
		Link: ab,
		Up: topology.SampleBundle{
			topology.QueueDepth: 4,
			topology.BytesSent:  1024,
		},
	}, false)

	out := src.Render(time.Now())
	if !strings.Contains(out, "## Link 1") {
		t.Error("link section missing")
	}
	if !strings.Contains(out, "active connector: us-east") {
		t.Error("active connector missing")
	}
	if !strings.Contains(out, "queue_depth") {
		t.Error("metric row missing")
	}
	if strings.Contains(out, "closure count") {
		t.Error("closure count must only appear after a drop")
	}

	src.Registry.DropLink(ab)
	out = src.Render(time.Now())
	if !strings.Contains(out, "closure count: 1") {
		t.Error("closure count missing after drop")
	}
}

func TestRenderSkipsAnonymousLinks(t *testing.T) {
	src, _ := buildSource(t)
	ghost := src.Registry.AddNode(topology.NodeDescriptor{Version: "2.1"})
	other := src.Registry.AddNode(topology.NodeDescriptor{Location: "sa-east", Version: "2.1"})
	src.Registry.AddLink(topology.LinkDescriptor{Active: ghost, Passive: other})

	out := src.Render(time.Now())
	if !strings.Contains(out, "skipped 1 anonymous links") {
		t.Error("anonymous link skip count missing")
	}
}

func TestGrid(t *testing.T) {
	src, _ := buildSource(t)
	out := src.Grid()

	if !strings.Contains(out, "digraph G") || !strings.Contains(out, "layout=\"circo\"") {
		t.Errorf("grid header malformed:\n%s", out)
	}
	if !strings.Contains(out, "us-east(") || !strings.Contains(out, "eu-west(") {
		t.Errorf("grid edge labels missing:\n%s", out)
	}
	if !strings.Contains(out, "[dir=\"forward\"]") {
		t.Error("edge direction attribute missing")
	}
}

func TestSampleJSON(t *testing.T) {
	src, ab := buildSource(t)
	src.Registry.RecordSample(&topology.LinkSample{
		Link: ab,
		Up:   topology.SampleBundle{topology.MessagesSent: 9},
	}, false)

	out, err := src.SampleJSON()
	if err != nil {
		t.Fatalf("SampleJSON failed: %v", err)
	}

	var parsed struct {
		Links map[string]topology.Link `json:"links"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("dump is not valid JSON: %v", err)
	}
	if len(parsed.Links) != 1 {
		t.Fatalf("dump has %d links, want 1", len(parsed.Links))
	}
}
