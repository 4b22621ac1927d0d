// Package forks watches the stream of received blocks and infers
// block-production anomalies: a producer running past its scheduled slot
// count (overage), the schedule switching to the next producer too early
// (deficit), or a competing branch (depth). Episodes are recorded per
// producer for the reporting layer.
package forks

import (
	"sort"
	"sync"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// ForkDescriptor describes one detected anomaly. Exactly one of Depth,
// Deficit or Overage is non-zero per instance.
type ForkDescriptor struct {
	FromLink topology.LinkID `json:"from_link"`
	ForkBase string          `json:"fork_base"`
	Depth    uint16          `json:"depth"`
	Deficit  uint16          `json:"deficit"`
	Overage  uint16          `json:"overage"`
}

func (f ForkDescriptor) zero() bool {
	return f.FromLink == 0
}

// Kind names the anomaly this descriptor records.
func (f ForkDescriptor) Kind() string {
	switch {
	case f.Overage > 0:
		return "overage"
	case f.Deficit > 0:
		return "deficit"
	default:
		return "depth"
	}
}

// ForkInfo is a fork report gossiped between peers.
type ForkInfo struct {
	Producer   string         `json:"producer"`
	Descriptor ForkDescriptor `json:"descriptor"`
}

// ProducerRecord accumulates the fork episodes attributed to one producer.
// Current is the in-flight episode, still open until the next handoff closes
// it into History. Records are created lazily on first detection and never
// destroyed.
type ProducerRecord struct {
	Name    string           `json:"name"`
	Current ForkDescriptor   `json:"current"`
	History []ForkDescriptor `json:"history"`
}

// ChainInfo supplies producer-schedule facts from the chain execution engine.
// Failures are tolerated: the detector logs and leaves its state unchanged.
type ChainInfo interface {
	HeadProducer() (string, error)
	PendingProducer() (string, error)
	ActiveProducers() ([]string, error)
}

// Detector tracks block-production cadence across the producer schedule.
type Detector struct {
	mu sync.Mutex

	chain       ChainInfo
	maxProduced uint16

	blockCount   uint16
	prevProducer string
	producers    map[string]*ProducerRecord

	log logging.Logger
}

// NewDetector creates a detector. maxProduced is the number of consecutive
// blocks one producer is scheduled to produce before handing off.
func NewDetector(chain ChainInfo, maxProduced uint16, log logging.Logger) *Detector {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Detector{
		chain:       chain,
		maxProduced: maxProduced,
		producers:   make(map[string]*ProducerRecord),
		log:         log.With(logging.Component("forks")),
	}
}

// OnBlock processes one received-block notification: the link it arrived on,
// the block identifier, and the block's declared producer. Both the overage
// and the deficit condition record a ForkDescriptor, one consistent policy
// for every anomaly kind.
func (d *Detector) OnBlock(src topology.LinkID, blockID, producer string) {
	head, err := d.chain.HeadProducer()
	if err != nil {
		d.log.Error("unable to resolve head producer", logging.Error(err))
		return
	}
	pending, err := d.chain.PendingProducer()
	if err != nil {
		d.log.Error("unable to resolve pending producer", logging.Error(err))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch producer {
	case head:
		d.blockCount++
		if d.blockCount > d.maxProduced {
			overage := d.blockCount - d.maxProduced
			d.log.Error("producer overproduced",
				logging.Producer(head), logging.Count(int(overage)))
			d.recordLocked(head, ForkDescriptor{
				FromLink: src,
				ForkBase: blockID,
				Overage:  overage,
			})
		}

	case pending:
		if d.blockCount < d.maxProduced {
			deficit := d.maxProduced - d.blockCount
			d.log.Error("producer switched too soon",
				logging.Producer(pending),
				logging.String("from", head),
				logging.Count(int(deficit)))
			d.openLocked(head, ForkDescriptor{
				FromLink: src,
				ForkBase: blockID,
				Depth:    d.blockCount,
				Deficit:  deficit,
			})
			if prev, ok := d.producers[d.prevProducer]; ok && !prev.Current.zero() {
				prev.History = append(prev.History, prev.Current)
				prev.Current = ForkDescriptor{}
			}
			d.prevProducer = head
		}
		d.blockCount = 1

	case d.prevProducer:
		d.log.Warn("block from previous producer after the switch",
			logging.Producer(producer))
	}
}

// Apply merges a gossiped fork report into the producer table.
func (d *Detector) Apply(fi *ForkInfo) {
	if fi == nil || fi.Producer == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recordLocked(fi.Producer, fi.Descriptor)
}

// recordLocked appends an episode to a producer's history, creating the
// record on first use. Caller holds the lock.
func (d *Detector) recordLocked(producer string, desc ForkDescriptor) {
	rec, ok := d.producers[producer]
	if !ok {
		rec = &ProducerRecord{Name: producer}
		d.producers[producer] = rec
	}
	rec.History = append(rec.History, desc)
}

// openLocked starts an in-flight episode on a producer's record, closing any
// episode already open there. Caller holds the lock.
func (d *Detector) openLocked(producer string, desc ForkDescriptor) {
	rec, ok := d.producers[producer]
	if !ok {
		rec = &ProducerRecord{Name: producer}
		d.producers[producer] = rec
	}
	if !rec.Current.zero() {
		rec.History = append(rec.History, rec.Current)
	}
	rec.Current = desc
}

// Episodes returns every episode attributed to one producer, the in-flight
// one included.
func (d *Detector) Episodes(producer string) []ForkDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.producers[producer]
	if !ok {
		return nil
	}
	out := make([]ForkDescriptor, 0, len(rec.History)+1)
	out = append(out, rec.History...)
	if !rec.Current.zero() {
		out = append(out, rec.Current)
	}
	return out
}

// ProducerCount returns the number of producers with recorded anomalies.
func (d *Detector) ProducerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.producers)
}

// Snapshot returns a copy of every producer record, ordered by name so report
// output is stable.
func (d *Detector) Snapshot() []ProducerRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]ProducerRecord, 0, len(d.producers))
	for _, rec := range d.producers {
		cp := ProducerRecord{Name: rec.Name, Current: rec.Current}
		cp.History = make([]ForkDescriptor, len(rec.History))
		copy(cp.History, rec.History)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schedule returns the currently scheduled producer identities.
func (d *Detector) Schedule() ([]string, error) {
	return d.chain.ActiveProducers()
}
