package gossip

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-topology/pkg/relay"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// topicPrefix lets SUB sockets filter topology traffic at the socket layer.
var topicPrefix = []byte("TOPO:")

// frame is the wire envelope around a topology message. Skip names the link
// the message is not meant for: pub/sub fans every send out to all peers, so
// the exclusion travels with the frame and the excluded peer discards it.
type frame struct {
	Skip    topology.LinkID `json:"skip,omitempty"`
	Message *relay.Message  `json:"message"`
}

// encodeFrame renders topic prefix + snappy-compressed JSON.
func encodeFrame(msg *relay.Message, skip topology.LinkID) ([]byte, error) {
	data, err := json.Marshal(frame{Skip: skip, Message: msg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal topology message: %w", err)
	}
	compressed := snappy.Encode(nil, data)
	out := make([]byte, 0, len(topicPrefix)+len(compressed))
	out = append(out, topicPrefix...)
	return append(out, compressed...), nil
}

// decodeFrame reverses encodeFrame. Payloads without the topic prefix are a
// caller error.
func decodeFrame(raw []byte) (*relay.Message, topology.LinkID, error) {
	if !bytes.HasPrefix(raw, topicPrefix) {
		return nil, 0, fmt.Errorf("frame missing topic prefix")
	}
	data, err := snappy.Decode(nil, raw[len(topicPrefix):])
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decompress frame: %w", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal topology message: %w", err)
	}
	if f.Message == nil {
		return nil, 0, fmt.Errorf("frame carries no message")
	}
	return f.Message, f.Skip, nil
}
