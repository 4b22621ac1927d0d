package topology

import (
	"github.com/dd0wney/cluso-topology/pkg/logging"
)

// FindRoute returns the shortest hop count between two nodes, or NotFound
// when either node is unknown or the graph is disconnected between them.
// A self-route is zero hops. Answers are memoized in the per-node route
// caches, which the registry clears on every topology change, so a cached
// answer is always current.
func (r *Registry) FindRoute(from, to NodeID) int16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.nodes[from]
	if !ok {
		r.log.Error("no table entry for source node", logging.NodeID(uint64(from)))
		return NotFound
	}
	if _, ok := r.nodes[to]; !ok {
		r.log.Error("no table entry for target node", logging.NodeID(uint64(to)))
		return NotFound
	}

	if from == to {
		src.Routes[to] = RouteEntry{Length: 0, Path: LinkID(to)}
		return 0
	}

	if e, ok := src.Routes[to]; ok && e.Known() {
		return e.Length
	}

	return r.fillRoutesLocked(from, to)
}

// RouteEntryFor returns the cached route entry at a node for a destination,
// without triggering a computation.
func (r *Registry) RouteEntryFor(at, to NodeID) (RouteEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[at]
	if !ok {
		return RouteEntry{}, false
	}
	e, ok := n.Routes[to]
	return e, ok
}

// fillRoutesLocked is an explicit-worklist breadth-first traversal outward
// from the destination. Each node reached at distance d is labeled with a
// RouteEntry {d, first-hop link toward the destination}; by the time the
// source is reached, every traversed node carries the exact answer, which is
// what makes later queries for the same destination O(1). The visited set
// and the node-count guard bound the walk on any topology, cyclic or not.
// Caller holds the write lock.
func (r *Registry) fillRoutesLocked(from, to NodeID) int16 {
	type frontier struct {
		node NodeID
		dist int16
	}

	visited := map[NodeID]struct{}{to: {}}
	queue := []frontier{{to, 0}}
	guard := len(r.nodes)

	for len(queue) > 0 && guard > 0 {
		guard--
		cur := queue[0]
		queue = queue[1:]

		for lid := range r.nodes[cur.node].Links {
			l, ok := r.links[lid]
			if !ok {
				r.log.Error("incident link not found", logging.LinkID(uint64(lid)))
				continue
			}
			peer := l.Info.Passive
			if peer == cur.node {
				peer = l.Info.Active
			}
			if _, seen := visited[peer]; seen {
				continue
			}
			visited[peer] = struct{}{}

			pn, ok := r.nodes[peer]
			if !ok {
				// Dangling endpoint of a link whose node was dropped.
				continue
			}

			d := cur.dist + 1
			pn.Routes[to] = RouteEntry{Length: d, Path: lid}
			if peer == from {
				return d
			}
			queue = append(queue, frontier{peer, d})
		}
	}

	return NotFound
}
