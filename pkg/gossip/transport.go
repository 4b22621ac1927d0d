// Package gossip moves topology messages between peers over a pub/sub
// transport. The socket layer is an interface so tests can swap the real
// mangos implementation for in-memory fakes.
package gossip

import (
	"io"
	"time"
)

// Socket is a messaging socket that can send and receive framed messages.
type Socket interface {
	io.Closer
	Send([]byte) error
	Recv() ([]byte, error)
	SetRecvDeadline(d time.Duration) error
	SetSendDeadline(d time.Duration) error
}

// ListenSocket is a socket that binds to an address and accepts connections.
type ListenSocket interface {
	Socket
	Listen(addr string) error
}

// DialSocket is a socket that connects to a remote address.
type DialSocket interface {
	Socket
	Dial(addr string) error
}

// SubscribeSocket is a SUB socket that can filter on topics.
type SubscribeSocket interface {
	DialSocket
	Subscribe(topic []byte) error
}

// SocketFactory creates sockets for the gossip patterns in use.
type SocketFactory interface {
	NewPubSocket() (ListenSocket, error)
	NewSubSocket() (SubscribeSocket, error)
}
