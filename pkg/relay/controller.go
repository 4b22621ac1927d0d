package relay

import (
	"github.com/dd0wney/cluso-topology/pkg/forks"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
	"github.com/dd0wney/cluso-topology/pkg/topology"
	"github.com/dd0wney/cluso-topology/pkg/validation"
)

// Publisher sends a topology message to connected peers, skipping the
// link it arrived on when exclude is non-zero.
type Publisher interface {
	Publish(msg *Message, exclude topology.LinkID) error
}

// Controller applies incoming topology messages to local state and
// decides which of them travel onward.
type Controller struct {
	registry *topology.Registry
	detector *forks.Detector
	stats    *metrics.Registry
	pub      Publisher
	localID  topology.NodeID
	maxHops  uint16
	log      logging.Logger
}

func NewController(
	reg *topology.Registry,
	det *forks.Detector,
	stats *metrics.Registry,
	pub Publisher,
	localID topology.NodeID,
	maxHops uint16,
	log logging.Logger,
) *Controller {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Controller{
		registry: reg,
		detector: det,
		stats:    stats,
		pub:      pub,
		localID:  localID,
		maxHops:  maxHops,
		log:      log,
	}
}

// ShouldForward reports whether a message arriving on inbound should be
// accepted and relayed. A message we originated ourselves that has
// already been forwarded is a loop. A message that has traveled more
// hops than the shortest path back to its origin took a detour and a
// fresher copy has already arrived the short way. When the origin is
// not yet routable the message is accepted, so announcements from nodes
// we have not mapped yet can still bootstrap the graph.
func (c *Controller) ShouldForward(msg *Message, inbound topology.LinkID) bool {
	if msg.Origin == c.localID && msg.Forwards > 0 {
		c.log.Debug("rejecting looped message",
			logging.String("msg_id", msg.ID),
			logging.Hops(int16(msg.Forwards)))
		return false
	}
	dist := c.registry.FindRoute(c.localID, msg.Origin)
	if dist == topology.NotFound {
		c.stats.RecordRouteLookup(metrics.RouteNotFound)
		return true
	}
	c.stats.RecordRouteLookup(metrics.RouteFound)
	if dist < int16(msg.Forwards) {
		c.log.Debug("rejecting detoured message",
			logging.String("msg_id", msg.ID),
			logging.NodeID(uint64(msg.Origin)),
			logging.Hops(dist))
		return false
	}
	return true
}

// Handle processes one message received on inbound. Accepted messages
// have every payload event applied to local state; the message is then
// republished on the remaining links while its TTL allows.
func (c *Controller) Handle(msg *Message, inbound topology.LinkID) {
	if !c.ShouldForward(msg, inbound) {
		c.stats.RecordMessage(metrics.ActionDropped)
		return
	}

	for i := range msg.Payload {
		c.apply(&msg.Payload[i], inbound)
	}

	msg.Forwards++
	if msg.TTL > msg.Forwards {
		if err := c.pub.Publish(msg, inbound); err != nil {
			c.log.Warn("republish failed",
				logging.String("msg_id", msg.ID),
				logging.Error(err))
			return
		}
		c.stats.RecordMessage(metrics.ActionForwarded)
	} else {
		c.stats.RecordMessage(metrics.ActionDropped)
	}
}

func (c *Controller) apply(ev *Event, inbound topology.LinkID) {
	if !ev.Valid() {
		c.log.Warn("malformed event in payload", logging.String("kind", ev.Kind.String()))
		return
	}
	switch ev.Kind {
	case KindMapUpdate:
		if err := validation.ValidateMapUpdate(ev.MapUpdate); err != nil {
			c.log.Warn("rejecting invalid map update",
				logging.LinkID(uint64(inbound)), logging.Error(err))
			return
		}
		c.registry.ApplyMapUpdate(ev.MapUpdate)
		for range ev.MapUpdate.DropLinks {
			c.stats.RecordLinkClosure()
		}
		c.stats.UpdateTopologySize(c.registry.NodeCount(), c.registry.LinkCount())
	case KindLinkSample:
		// the sender measured from its side of the link, so the
		// bundles swap direction on arrival
		c.registry.RecordSample(ev.LinkSample, true)
		c.stats.RecordSample()
	case KindForkInfo:
		c.detector.Apply(ev.ForkInfo)
		c.stats.RecordForkEvent(ev.ForkInfo.Descriptor.Kind())
	}
}

// Send wraps one locally generated event in a message and publishes it.
// Link samples are applied locally and sent point-to-point across the
// sampled link; everything else is broadcast.
func (c *Controller) Send(ev Event) error {
	if !ev.Valid() {
		c.log.Warn("refusing to send malformed event", logging.String("kind", ev.Kind.String()))
		return nil
	}

	var msg *Message
	switch ev.Kind {
	case KindLinkSample:
		c.registry.RecordSample(ev.LinkSample, false)
		c.stats.RecordSample()
		peer := c.registry.PeerNode(ev.LinkSample.Link, c.localID)
		msg = NewMessage(c.localID, peer, 1, ev)
	default:
		msg = NewMessage(c.localID, 0, c.maxHops, ev)
	}

	if err := c.pub.Publish(msg, 0); err != nil {
		return err
	}
	c.stats.RecordMessage(metrics.ActionPublished)
	return nil
}
