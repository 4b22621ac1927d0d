package topology

import (
	"sort"
	"sync"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/logging"
)

// Registry owns the node and link tables. One lock serializes every mutation,
// including metric aggregation and route-cache writes, so samples and route
// fills cannot race with structural changes.
//
// Lookup misses are never fatal: a link whose endpoint was dropped, or a
// sample for a link that was never announced, degrades to a logged no-op so
// the topology service stays live on a partially-known network.
type Registry struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	links map[LinkID]*Link

	log logging.Logger
}

// NewRegistry creates an empty topology registry.
func NewRegistry(log logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Registry{
		nodes: make(map[NodeID]*Node),
		links: make(map[LinkID]*Link),
		log:   log.With(logging.Component("topology")),
	}
}

// AddNode inserts a node, deriving its content-based ID when the descriptor
// carries none. Re-adding an existing ID is a no-op that returns the ID:
// duplicate announcements are expected and must not disturb the incident-link
// set or the route cache of the existing entry.
func (r *Registry) AddNode(desc NodeDescriptor) NodeID {
	if desc.ID == 0 {
		desc.ID = desc.DeriveID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[desc.ID]; exists {
		return desc.ID
	}
	r.nodes[desc.ID] = newNode(desc)
	r.invalidateRoutesLocked()
	return desc.ID
}

// DropNode removes the node entry outright. Links referencing it are left in
// place; the dangling endpoint is tolerated at lookup time.
func (r *Registry) DropNode(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.nodes, id)
	r.invalidateRoutesLocked()
}

// AddLink inserts a link, deriving its ID from the endpoint pair and role
// when the caller passes zero, and registers the ID on both endpoints'
// incident sets. An endpoint that is not yet known is logged and skipped; the
// link record is stored regardless. On a repeat announcement the stored
// descriptor is overwritten (last write wins) but accumulated metrics and the
// closure count are preserved.
func (r *Registry) AddLink(desc LinkDescriptor) LinkID {
	if desc.ID == 0 {
		desc.ID = desc.DeriveID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, end := range []NodeID{desc.Active, desc.Passive} {
		if n, ok := r.nodes[end]; ok {
			n.Links[desc.ID] = struct{}{}
		} else {
			r.log.Info("no node entry for link endpoint",
				logging.LinkID(uint64(desc.ID)), logging.NodeID(uint64(end)))
		}
	}

	if existing, ok := r.links[desc.ID]; ok {
		existing.Info = desc
	} else {
		r.links[desc.ID] = newLink(desc)
	}
	r.invalidateRoutesLocked()
	return desc.ID
}

// DropLink soft-deletes a link: the closure counter is incremented and the
// record, with all its accumulated metrics, is retained for reporting.
func (r *Registry) DropLink(id LinkID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.links[id]
	if !ok {
		r.log.Warn("drop for unknown link", logging.LinkID(uint64(id)))
		return
	}
	l.Closures++
	r.invalidateRoutesLocked()
}

// PeerNode returns the endpoint of a link opposite to the given node, or zero
// when the link is unknown.
func (r *Registry) PeerNode(onLink LinkID, from NodeID) NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[onLink]
	if !ok {
		r.log.Warn("peer lookup on unknown link", logging.LinkID(uint64(onLink)))
		return 0
	}
	if l.Info.Active == from {
		return l.Info.Passive
	}
	return l.Info.Active
}

// ApplyMapUpdate applies one batch of topology changes: added nodes first,
// then added links, then dropped nodes, then dropped links. The ordering
// guarantees endpoints exist before links reference them within the batch.
// Across batches arriving from different peers, last writer wins.
func (r *Registry) ApplyMapUpdate(mu *MapUpdate) {
	for _, nd := range mu.AddNodes {
		r.AddNode(nd)
	}
	for _, ld := range mu.AddLinks {
		r.AddLink(ld)
	}
	for _, id := range mu.DropNodes {
		r.DropNode(id)
	}
	for _, id := range mu.DropLinks {
		r.DropLink(id)
	}
}

// RecordSample folds a link sample into the link's directional metrics. When
// flip is set the sample came from the link's passive endpoint and the up and
// down bundles are swapped first, so that "up" always means active→passive.
// Samples for unknown links are dropped.
func (r *Registry) RecordSample(ls *LinkSample, flip bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.links[ls.Link]
	if !ok {
		r.log.Debug("sample for unknown link", logging.LinkID(uint64(ls.Link)))
		return
	}

	now := time.Now().Unix()
	up, down := ls.Up, ls.Down
	if flip {
		up, down = down, up
	}
	l.Up.sample(up, now)
	l.Down.sample(down, now)
}

// HasNode reports whether a node is currently registered.
func (r *Registry) HasNode(id NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[id]
	return ok
}

// NodeCount returns the number of registered nodes.
func (r *Registry) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// LinkCount returns the number of link records, including soft-deleted ones.
func (r *Registry) LinkCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

// SnapshotNodes returns the descriptors of all nodes whose role intersects the
// filter. A zero filter matches every node.
func (r *Registry) SnapshotNodes(roleFilter NodeRole) []NodeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NodeDescriptor, 0, len(r.nodes))
	for _, n := range r.nodes {
		if roleFilter == 0 || n.Info.Role&roleFilter != 0 {
			out = append(out, n.Info)
		}
	}
	return out
}

// SnapshotLinks returns the descriptors of all links incident to the given
// node, or every link when the node is zero.
func (r *Registry) SnapshotLinks(nodeID NodeID) []LinkDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LinkDescriptor, 0, len(r.links))
	for _, l := range r.links {
		if nodeID == 0 || l.Info.Active == nodeID || l.Info.Passive == nodeID {
			out = append(out, l.Info)
		}
	}
	return out
}

// NodeInfo returns the descriptor of one node.
func (r *Registry) NodeInfo(id NodeID) (NodeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	if !ok {
		return NodeDescriptor{}, false
	}
	return n.Info, true
}

// LinkRecords returns a copy of every link record, metrics included, ordered
// by link ID so report output is stable.
func (r *Registry) LinkRecords() []Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Link, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, copyLink(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info.ID < out[j].Info.ID })
	return out
}

// LinkSnapshot returns a copy of one link record, metrics included.
func (r *Registry) LinkSnapshot(id LinkID) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[id]
	if !ok {
		return Link{}, false
	}
	return copyLink(l), true
}

// IncidentLinks returns the incident link IDs of a node.
func (r *Registry) IncidentLinks(id NodeID) []LinkID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	if !ok {
		return nil
	}
	out := make([]LinkID, 0, len(n.Links))
	for lid := range n.Links {
		out = append(out, lid)
	}
	return out
}

// FindProducerNode returns the descriptor of the node hosting the named
// producer account, if any node announced it.
func (r *Registry) FindProducerNode(producer string) (NodeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.nodes {
		for _, p := range n.Info.Producers {
			if p == producer {
				return n.Info, true
			}
		}
	}
	return NodeDescriptor{}, false
}

// invalidateRoutesLocked clears every node's route cache. Any structural
// change can alter shortest paths, and a stale cached route would silently
// misdirect relay decisions; whole-cache invalidation trades recomputation
// cost for correctness. Caller holds the write lock.
func (r *Registry) invalidateRoutesLocked() {
	for _, n := range r.nodes {
		for k := range n.Routes {
			delete(n.Routes, k)
		}
	}
}

func copyLink(l *Link) Link {
	out := Link{
		Info:     l.Info,
		Up:       copyMetrics(&l.Up),
		Down:     copyMetrics(&l.Down),
		Closures: l.Closures,
	}
	return out
}

func copyMetrics(m *LinkMetrics) LinkMetrics {
	out := *m
	out.Measurements = make(map[MetricKind]Aggregate, len(m.Measurements))
	for k, v := range m.Measurements {
		out.Measurements[k] = v
	}
	return out
}
