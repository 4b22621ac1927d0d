package gossip

import (
	"log"
	"sync"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/relay"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// Handler consumes messages received from a peer together with the link they
// arrived on. The relay controller is the production handler.
type Handler interface {
	Handle(msg *relay.Message, inbound topology.LinkID)
}

// Subscriber receives topology messages from one peer's publisher.
// Single responsibility: own the SUB socket and its receive loop.
type Subscriber struct {
	socket      SubscribeSocket
	peerAddr    string
	inboundLink topology.LinkID
	handler     Handler
	recvTimeout time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
	running     bool
	runningMu   sync.Mutex
}

// SubscriberConfig configures a gossip subscriber. InboundLink is the
// registry ID of the link connecting us to this peer.
type SubscriberConfig struct {
	PeerAddr    string
	InboundLink topology.LinkID
	RecvTimeout time.Duration
}

// NewSubscriber creates a gossip subscriber.
func NewSubscriber(factory SocketFactory, config SubscriberConfig, handler Handler) (*Subscriber, error) {
	socket, err := factory.NewSubSocket()
	if err != nil {
		return nil, err
	}

	timeout := config.RecvTimeout
	if timeout <= 0 {
		timeout = 1 * time.Second
	}

	return &Subscriber{
		socket:      socket,
		peerAddr:    config.PeerAddr,
		inboundLink: config.InboundLink,
		handler:     handler,
		recvTimeout: timeout,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start connects to the peer and begins receiving.
func (s *Subscriber) Start() error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if s.running {
		return nil
	}

	if err := s.socket.Dial(s.peerAddr); err != nil {
		return err
	}

	if err := s.socket.Subscribe(topicPrefix); err != nil {
		s.socket.Close()
		return err
	}

	if err := s.socket.SetRecvDeadline(s.recvTimeout); err != nil {
		s.socket.Close()
		return err
	}

	s.running = true
	s.wg.Add(1)
	go s.subscribeLoop()

	log.Printf("Gossip subscriber connected to %s", s.peerAddr)
	return nil
}

// Stop stops the subscriber.
func (s *Subscriber) Stop() error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if !s.running {
		return nil
	}

	close(s.stopCh)
	s.running = false
	s.wg.Wait()
	s.socket.Close()

	log.Printf("Gossip subscriber stopped")
	return nil
}

// Running reports whether the receive loop is active.
func (s *Subscriber) Running() bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	return s.running
}

// InboundLink returns the registry ID of the link this subscriber listens on.
func (s *Subscriber) InboundLink() topology.LinkID {
	return s.inboundLink
}

func (s *Subscriber) subscribeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		raw, err := s.socket.Recv()
		if err != nil {
			continue // Timeout
		}

		msg, skip, err := decodeFrame(raw)
		if err != nil {
			log.Printf("Failed to decode topology frame: %v", err)
			continue
		}

		// the publisher asked the peer on this link to discard
		if skip != 0 && skip == s.inboundLink {
			continue
		}

		s.handler.Handle(msg, s.inboundLink)
	}
}
