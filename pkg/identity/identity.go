// Package identity derives stable, content-based identifiers for nodes and
// links in the topology map. Equal descriptor content always yields the same
// identifier, which is what makes add operations idempotent when the same
// announcement arrives over multiple paths.
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"
)

// NodeID identifies a node in the topology. Zero is the "unknown" sentinel and
// is never produced by the generator.
type NodeID uint64

// LinkID identifies a link in the topology. Zero is the "unknown" sentinel.
type LinkID uint64

// Digest is the full 256-bit content hash of a node descriptor. Node IDs are a
// fixed-width prefix of this digest; the truncation reintroduces a collision
// risk proportional to network size, which is accepted here. Callers that need
// collision-free identity should carry the full digest.
type Digest [sha256.Size]byte

// LongNodeID hashes the canonical string form of a node announcement:
// location, role bits, version, then every hosted producer name in declared
// order.
func LongNodeID(location string, role uint64, version string, producers []string) Digest {
	var b strings.Builder
	b.WriteString(location)
	b.WriteString(strconv.FormatUint(role, 10))
	b.WriteString(version)
	for _, p := range producers {
		b.WriteString(p)
	}
	return sha256.Sum256([]byte(b.String()))
}

// NodeIDFromDigest truncates a digest to the fixed node ID width.
func NodeIDFromDigest(d Digest) NodeID {
	return NodeID(binary.BigEndian.Uint64(d[:8]))
}

// ForNode is the composition of LongNodeID and NodeIDFromDigest.
func ForNode(location string, role uint64, version string, producers []string) NodeID {
	return NodeIDFromDigest(LongNodeID(location, role, version, producers))
}

// ForLink hashes the endpoint pair plus the link role name. The pair is
// canonicalized before hashing so both ends of a physical link derive the
// same identifier no matter which endpoint announces it; orientation lives
// only in the descriptor, where it names the metric directions. The same
// endpoints with a different role form a distinct link.
func ForLink(active, passive NodeID, role string) LinkID {
	if passive < active {
		active, passive = passive, active
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(active))
	binary.BigEndian.PutUint64(buf[8:], uint64(passive))
	h := sha256.New()
	h.Write(buf[:])
	h.Write([]byte(role))
	sum := h.Sum(nil)
	return LinkID(binary.BigEndian.Uint64(sum[:8]))
}
