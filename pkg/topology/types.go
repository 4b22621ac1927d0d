// Package topology is the in-memory model of the peer network: which nodes
// exist, which links connect them, how healthy each link is, and how many hops
// separate any two nodes. The model is fed by map-update and link-sample
// events from the network layer and read by the reporting layer.
package topology

import (
	"strings"

	"github.com/dd0wney/cluso-topology/pkg/identity"
)

// NodeID identifies a node. Zero means "unknown".
type NodeID = identity.NodeID

// LinkID identifies a link. Zero means "unknown".
type LinkID = identity.LinkID

// NotFound is the route length sentinel for an unreachable or unknown target.
const NotFound int16 = -1

// NodeRole describes what a node does in the network. Roles are a bit-set and
// combinable: a host can be both a producer and an API endpoint.
type NodeRole uint64

const (
	RoleProducer NodeRole = 1 << iota
	RoleBackup
	RoleAPI
	RoleFull
	RoleGateway
	RoleSpecial
)

var nodeRoleNames = []struct {
	role NodeRole
	name string
}{
	{RoleProducer, "producer"},
	{RoleBackup, "backup"},
	{RoleAPI, "api"},
	{RoleFull, "full"},
	{RoleGateway, "gateway"},
	{RoleSpecial, "special"},
}

// String renders the role set as a pipe-joined list.
func (r NodeRole) String() string {
	if r == 0 {
		return "none"
	}
	parts := make([]string, 0, len(nodeRoleNames))
	for _, n := range nodeRoleNames {
		if r&n.role != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// ParseNodeRole converts a role name to its bit. Unknown names map to zero.
func ParseNodeRole(s string) NodeRole {
	for _, n := range nodeRoleNames {
		if n.name == s {
			return n.role
		}
	}
	return 0
}

// LinkRole describes which traffic class a link carries. Link identity
// includes the role, so the same endpoint pair can have one link per role.
type LinkRole uint8

const (
	LinkBlocks LinkRole = iota
	LinkTransactions
	LinkControl
	LinkCombined
)

// String returns the link role name.
func (r LinkRole) String() string {
	switch r {
	case LinkBlocks:
		return "blocks"
	case LinkTransactions:
		return "transactions"
	case LinkControl:
		return "control"
	case LinkCombined:
		return "combined"
	default:
		return "error"
	}
}

// NodeStatus is the announced operational state of a node.
type NodeStatus uint8

const (
	StatusRunning NodeStatus = iota
	StatusStopped
	StatusDegraded
)

// String returns the status name.
func (s NodeStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// NodeDescriptor is the announced identity of a node. Once an ID has been
// assigned the descriptor is immutable: the ID is derived from location, role,
// version and the hosted producer list, so changing any of those is a new node.
type NodeDescriptor struct {
	ID        NodeID     `json:"id"`
	Location  string     `json:"location"`
	Role      NodeRole   `json:"role"`
	Status    NodeStatus `json:"status"`
	Version   string     `json:"version"`
	Producers []string   `json:"producers,omitempty"`
}

// DeriveID returns the content-derived ID for the descriptor.
func (d *NodeDescriptor) DeriveID() NodeID {
	return identity.ForNode(d.Location, uint64(d.Role), d.Version, d.Producers)
}

// LinkDescriptor is the announced identity of a link. Active is the initiating
// ("client") endpoint, Passive the accepting ("server") endpoint. Hops counts
// intermediate relay devices between them.
type LinkDescriptor struct {
	ID      LinkID   `json:"id"`
	Active  NodeID   `json:"active"`
	Passive NodeID   `json:"passive"`
	Role    LinkRole `json:"role"`
	Hops    uint16   `json:"hops"`
}

// DeriveID returns the content-derived ID for the descriptor.
func (d *LinkDescriptor) DeriveID() LinkID {
	return identity.ForLink(d.Active, d.Passive, d.Role.String())
}

// RouteEntry is a cached routing answer at some node: the hop count to a
// destination and the first-hop link toward it. Length < 1 with Path == 0
// means no route is known yet.
type RouteEntry struct {
	Length int16  `json:"length"`
	Path   LinkID `json:"path"`
}

// Known reports whether the entry holds a computed route.
func (e RouteEntry) Known() bool {
	return e.Path != 0
}

// Node is a registry entry: the announced descriptor plus the node's incident
// link set (back-references, not ownership) and its route cache.
type Node struct {
	Info   NodeDescriptor
	Links  map[LinkID]struct{}
	Routes map[NodeID]RouteEntry
}

func newNode(info NodeDescriptor) *Node {
	return &Node{
		Info:   info,
		Links:  make(map[LinkID]struct{}),
		Routes: make(map[NodeID]RouteEntry),
	}
}

// Link is a registry entry: the announced descriptor plus one metrics bundle
// per flow direction and the closure counter. Up is always active→passive.
// Dropping a link increments Closures instead of deleting the record, so
// historical reporting keeps working after a disconnect.
type Link struct {
	Info     LinkDescriptor
	Up       LinkMetrics
	Down     LinkMetrics
	Closures uint32
}

func newLink(info LinkDescriptor) *Link {
	return &Link{
		Info: info,
		Up:   newLinkMetrics(),
		Down: newLinkMetrics(),
	}
}

// MapUpdate is one batch of topology changes. Within a batch the registry
// applies additions before drops and nodes before links, so links never
// reference endpoints the same batch has not introduced yet.
type MapUpdate struct {
	AddNodes  []NodeDescriptor `json:"add_nodes,omitempty"`
	AddLinks  []LinkDescriptor `json:"add_links,omitempty"`
	DropNodes []NodeID         `json:"drop_nodes,omitempty"`
	DropLinks []LinkID         `json:"drop_links,omitempty"`
}
