// Package report renders human-readable views of the topology model: a
// markdown performance report, a Graphviz grid of the link map, and a raw
// JSON dump for debugging. Rendering only reads the model.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/forks"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// Source bundles the model handles a report is rendered from.
type Source struct {
	Registry       *topology.Registry
	Detector       *forks.Detector
	LocalID        topology.NodeID
	LocalProducers []string
}

// Render produces the markdown link-performance report.
func (s Source) Render(now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Link Performance Metrics\ngenerated %s\n", now.UTC().Format(time.UnixDate))
	if local, ok := s.Registry.NodeInfo(s.LocalID); ok {
		fmt.Fprintf(&b, "<br>reporting node: %s\n", local.Location)
	}

	b.WriteString("\n# Active Producer List\n")
	if len(s.LocalProducers) > 0 {
		b.WriteString("## Local Producers\n")
		for _, lp := range s.LocalProducers {
			fmt.Fprintf(&b, "%s\n", lp)
		}
	}
	fmt.Fprintf(&b, "total nodes %d\n", s.Registry.NodeCount())

	s.renderSchedule(&b)
	s.renderForks(&b)
	s.renderLinks(&b)

	return b.String()
}

func (s Source) renderSchedule(b *strings.Builder) {
	schedule, err := s.Detector.Schedule()
	if err != nil || len(schedule) == 0 {
		b.WriteString("\ncannot retrieve active producers list\n")
		return
	}

	fmt.Fprintf(b, "\nschedule has %d producers\n", len(schedule))

	// hop distances are measured from each producer's schedule predecessor,
	// wrapping around so the first row measures from the last
	prev, ok := s.Registry.FindProducerNode(schedule[len(schedule)-1])
	if !ok {
		fmt.Fprintf(b, "\ncannot resolve producer %s\n", schedule[len(schedule)-1])
		return
	}

	b.WriteString("\n| Producer Account | Location | Id | Hops | Episodes |\n")
	b.WriteString("|------------------|----------|----|------|----------|\n")
	prevID := prev.ID
	for _, name := range schedule {
		node, ok := s.Registry.FindProducerNode(name)
		if !ok {
			fmt.Fprintf(b, "\ncannot resolve producer %s\n", name)
			break
		}
		location := node.Location
		if location == "" {
			location = "unknown"
		}
		hops := s.Registry.FindRoute(prevID, node.ID)
		episodes := len(s.Detector.Episodes(name))
		fmt.Fprintf(b, "| %s | %s | %d | %d | %d |\n", name, location, node.ID, hops, episodes)
		prevID = node.ID
	}
}

func (s Source) renderForks(b *strings.Builder) {
	records := s.Detector.Snapshot()
	fmt.Fprintf(b, "\nNumber of producers indicating microforks: %d\n", len(records))

	for _, rec := range records {
		episodes := s.Detector.Episodes(rec.Name)
		fmt.Fprintf(b, "\nProducer %s has %d episodes reported\n", rec.Name, len(episodes))
		for _, fd := range episodes {
			fmt.Fprintf(b, " from link %d symptom ", fd.FromLink)
			switch {
			case fd.Depth > 0:
				fmt.Fprintf(b, "fork of %d blocks", fd.Depth)
			case fd.Deficit > 0:
				fmt.Fprintf(b, "production deficit of %d blocks", fd.Deficit)
			case fd.Overage > 0:
				fmt.Fprintf(b, "produced %d too many blocks", fd.Overage)
			default:
				b.WriteString("reporting failure, no fork symptom recorded")
			}
			b.WriteString("\n")
		}
	}
}

func (s Source) renderLinks(b *strings.Builder) {
	n := 1
	anon := 0
	for _, link := range s.Registry.LinkRecords() {
		active, _ := s.Registry.NodeInfo(link.Info.Active)
		passive, _ := s.Registry.NodeInfo(link.Info.Passive)
		if active.Location == "" {
			anon++
			continue
		}

		fmt.Fprintf(b, "\n## Link %d\n", n)
		n++
		fmt.Fprintf(b, "active connector: %s\n", active.Location)
		fmt.Fprintf(b, "<br>passive connector: %s\n", passive.Location)
		if link.Closures > 0 {
			fmt.Fprintf(b, "<br>closure count: %d\n", link.Closures)
		}

		b.WriteString("### Measurements from passive to active\n")
		if link.Down.LastSample == 0 && link.Up.LastSample == 0 {
			b.WriteString("\nno measurements available\n")
			continue
		}
		renderDirection(b, &link.Down)
		b.WriteString("\n### Measurements from active to passive\n")
		renderDirection(b, &link.Up)
	}
	if anon > 0 {
		fmt.Fprintf(b, "\nskipped %d anonymous links\n", anon)
	}
}

func renderDirection(b *strings.Builder, m *topology.LinkMetrics) {
	if m.LastSample == 0 {
		b.WriteString("\nno measurements available\n")
		return
	}
	fmt.Fprintf(b, "last sample time %s\n", time.Unix(m.LastSample, 0).UTC().Format(time.UnixDate))
	fmt.Fprintf(b, "<br>first sample time %s\n", time.Unix(m.FirstSample, 0).UTC().Format(time.UnixDate))
	fmt.Fprintf(b, "<br>total bytes %d\n", m.TotalBytes)
	fmt.Fprintf(b, "<br>total messages %d\n\n", m.TotalMessages)

	b.WriteString("| metric name | sample count | last reading | min value | avg value | max value |\n")
	b.WriteString("|-------------|--------------|--------------|-----------|-----------|-----------|\n")
	for _, kind := range topology.MetricKinds() {
		agg, ok := m.Measurements[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(b, "| %s | %d | %d | %d | %.2f | %d |\n",
			kind, agg.Count, agg.Last, agg.Min, agg.Avg, agg.Max)
	}
}

// Grid renders the link map as a Graphviz digraph in circo layout, one edge
// per link.
func (s Source) Grid() string {
	var b strings.Builder
	b.WriteString(" digraph G\n{\nlayout=\"circo\";\n")

	for _, link := range s.Registry.LinkRecords() {
		active, _ := s.Registry.NodeInfo(link.Info.Active)
		passive, _ := s.Registry.NodeInfo(link.Info.Passive)
		fmt.Fprintf(&b, "%q -> %q [dir=\"forward\"];\n",
			dotLabel(active), dotLabel(passive))
	}

	b.WriteString("}\n")
	return b.String()
}

func dotLabel(n topology.NodeDescriptor) string {
	return fmt.Sprintf("%s(%d)", n.Location, n.ID)
}

// SampleJSON dumps every link record as indented JSON, keyed by link ID.
func (s Source) SampleJSON() (string, error) {
	links := s.Registry.LinkRecords()
	keyed := make(map[string]topology.Link, len(links))
	for _, l := range links {
		keyed[fmt.Sprintf("%d", l.Info.ID)] = l
	}

	data, err := json.MarshalIndent(map[string]any{"links": keyed}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal link dump: %w", err)
	}
	return string(data), nil
}
