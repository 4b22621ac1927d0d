package gossip

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/cluso-topology/pkg/relay"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// outbound is one queued publish.
type outbound struct {
	msg  *relay.Message
	skip topology.LinkID
}

// Publisher fans topology messages out to subscribed peers.
// Single responsibility: own the PUB socket and its send loop.
type Publisher struct {
	socket    ListenSocket
	addr      string
	stream    chan outbound
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	runningMu sync.Mutex

	// counters since the last TakeCounters call
	sentMessages atomic.Uint64
	sentBytes    atomic.Uint64
}

// PublisherConfig configures the gossip publisher.
type PublisherConfig struct {
	Address    string
	BufferSize int
}

// NewPublisher creates a gossip publisher.
func NewPublisher(factory SocketFactory, config PublisherConfig) (*Publisher, error) {
	socket, err := factory.NewPubSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	bufSize := config.BufferSize
	if bufSize <= 0 {
		bufSize = 1000
	}

	return &Publisher{
		socket: socket,
		addr:   config.Address,
		stream: make(chan outbound, bufSize),
		stopCh: make(chan struct{}),
	}, nil
}

// Start binds the socket and begins publishing.
func (p *Publisher) Start() error {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return fmt.Errorf("gossip publisher already running")
	}

	if err := p.socket.Listen(p.addr); err != nil {
		return fmt.Errorf("failed to bind PUB socket to %s: %w", p.addr, err)
	}

	p.running = true
	p.wg.Add(1)
	go p.publishLoop()

	log.Printf("Gossip publisher started on %s", p.addr)
	return nil
}

// Stop stops the publisher.
func (p *Publisher) Stop() error {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if !p.running {
		return nil
	}

	close(p.stopCh)
	p.running = false
	p.wg.Wait()

	if err := p.socket.Close(); err != nil {
		log.Printf("Warning: Failed to close gossip publisher socket: %v", err)
	}

	log.Printf("Gossip publisher stopped")
	return nil
}

// Publish queues a message for fan-out. The excluded link travels in the
// frame; the peer on that link drops the message on receipt.
func (p *Publisher) Publish(msg *relay.Message, exclude topology.LinkID) error {
	select {
	case p.stream <- outbound{msg: msg, skip: exclude}:
		return nil
	case <-p.stopCh:
		return fmt.Errorf("gossip publisher stopped")
	}
}

func (p *Publisher) publishLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case out := <-p.stream:
			data, err := encodeFrame(out.msg, out.skip)
			if err != nil {
				log.Printf("Failed to encode topology message: %v", err)
				continue
			}
			if err := p.socket.Send(data); err != nil {
				log.Printf("Failed to publish topology message: %v", err)
				continue
			}
			p.sentMessages.Add(1)
			p.sentBytes.Add(uint64(len(data)))
		}
	}
}

// Running reports whether the publish loop is active.
func (p *Publisher) Running() bool {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()
	return p.running
}

// TakeCounters returns the messages and bytes sent since the previous call
// and resets both counters. The sampling loop turns these into link samples.
func (p *Publisher) TakeCounters() (messages, bytes uint64) {
	return p.sentMessages.Swap(0), p.sentBytes.Swap(0)
}

// Ensure Publisher satisfies the relay controller's port.
var _ relay.Publisher = (*Publisher)(nil)
