package gossip

import (
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// mangosSocket wraps a mangos.Socket to implement our Socket interface.
type mangosSocket struct {
	sock mangos.Socket
}

func (s *mangosSocket) Send(data []byte) error {
	return s.sock.Send(data)
}

func (s *mangosSocket) Recv() ([]byte, error) {
	return s.sock.Recv()
}

func (s *mangosSocket) Close() error {
	return s.sock.Close()
}

func (s *mangosSocket) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionRecvDeadline, d)
}

func (s *mangosSocket) SetSendDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionSendDeadline, d)
}

func (s *mangosSocket) Listen(addr string) error {
	return s.sock.Listen(addr)
}

func (s *mangosSocket) Dial(addr string) error {
	return s.sock.Dial(addr)
}

// mangosSubSocket adds subscription capability.
type mangosSubSocket struct {
	mangosSocket
}

func (s *mangosSubSocket) Subscribe(topic []byte) error {
	return s.sock.SetOption(mangos.OptionSubscribe, topic)
}

// MangosSocketFactory creates mangos pub/sub sockets.
type MangosSocketFactory struct{}

// NewMangosSocketFactory creates a new mangos socket factory.
func NewMangosSocketFactory() *MangosSocketFactory {
	return &MangosSocketFactory{}
}

func (f *MangosSocketFactory) NewPubSocket() (ListenSocket, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, err
	}
	return &mangosSocket{sock: sock}, nil
}

func (f *MangosSocketFactory) NewSubSocket() (SubscribeSocket, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, err
	}
	return &mangosSubSocket{mangosSocket{sock: sock}}, nil
}

// Ensure MangosSocketFactory implements SocketFactory
var _ SocketFactory = (*MangosSocketFactory)(nil)
