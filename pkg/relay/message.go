// Package relay implements the topology message model and the relay
// controller that decides whether messages arriving from peers are
// applied locally and forwarded onward.
package relay

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-topology/pkg/forks"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// EventKind tags the active member of an Event.
type EventKind uint8

const (
	KindMapUpdate EventKind = iota
	KindLinkSample
	KindForkInfo
)

func (k EventKind) String() string {
	switch k {
	case KindMapUpdate:
		return "map_update"
	case KindLinkSample:
		return "link_sample"
	case KindForkInfo:
		return "fork_info"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event is a tagged union over the payload types a topology message can
// carry. Exactly one member matching Kind is non-nil.
type Event struct {
	Kind       EventKind             `json:"kind"`
	MapUpdate  *topology.MapUpdate   `json:"map_update,omitempty"`
	LinkSample *topology.LinkSample  `json:"link_sample,omitempty"`
	ForkInfo   *forks.ForkInfo       `json:"fork_info,omitempty"`
}

// Valid reports whether the member matching Kind is set.
func (e *Event) Valid() bool {
	switch e.Kind {
	case KindMapUpdate:
		return e.MapUpdate != nil
	case KindLinkSample:
		return e.LinkSample != nil
	case KindForkInfo:
		return e.ForkInfo != nil
	default:
		return false
	}
}

// Message is the unit of gossip between topology peers. Destination 0
// means broadcast. Forwards counts hops taken so far; a message stops
// propagating once Forwards reaches TTL.
type Message struct {
	ID          string          `json:"id"`
	Origin      topology.NodeID `json:"origin"`
	Destination topology.NodeID `json:"destination,omitempty"`
	TTL         uint16          `json:"ttl"`
	Forwards    uint16          `json:"forwards"`
	Payload     []Event         `json:"payload"`
}

// NewMessage builds a message originating at the local node.
func NewMessage(origin, destination topology.NodeID, ttl uint16, events ...Event) *Message {
	return &Message{
		ID:          uuid.New().String(),
		Origin:      origin,
		Destination: destination,
		TTL:         ttl,
		Payload:     events,
	}
}
