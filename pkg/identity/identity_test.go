package identity

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestLongNodeIDDeterministic(t *testing.T) {
	a := LongNodeID("dc1:host-a", 1, "v2.0.1", []string{"prodone", "prodtwo"})
	b := LongNodeID("dc1:host-a", 1, "v2.0.1", []string{"prodone", "prodtwo"})

	if a != b {
		t.Error("equal descriptors produced different digests")
	}
}

func TestLongNodeIDSensitivity(t *testing.T) {
	base := LongNodeID("dc1:host-a", 1, "v2.0.1", []string{"prodone"})

	if LongNodeID("dc1:host-b", 1, "v2.0.1", []string{"prodone"}) == base {
		t.Error("location change did not change digest")
	}
	if LongNodeID("dc1:host-a", 2, "v2.0.1", []string{"prodone"}) == base {
		t.Error("role change did not change digest")
	}
	if LongNodeID("dc1:host-a", 1, "v2.0.2", []string{"prodone"}) == base {
		t.Error("version change did not change digest")
	}
	if LongNodeID("dc1:host-a", 1, "v2.0.1", nil) == base {
		t.Error("producer list change did not change digest")
	}
}

func TestNodeIDFromDigestNonZero(t *testing.T) {
	id := ForNode("dc1:host-a", 1, "v2.0.1", nil)
	if id == 0 {
		t.Error("expected non-zero node ID")
	}
}

func TestForLinkRoleDistinguishesLinks(t *testing.T) {
	a, b := NodeID(11), NodeID(22)

	blocks := ForLink(a, b, "blocks")
	txns := ForLink(a, b, "transactions")

	if blocks == txns {
		t.Error("same endpoint pair with different roles must have distinct link IDs")
	}
	if blocks == 0 || txns == 0 {
		t.Error("expected non-zero link IDs")
	}
}

// Each end of a configured peer pair registers the link with itself as the
// active endpoint; both registrations must land on the same identifier or
// per-link exclusion and deduplication fall apart.
func TestForLinkAgreesAcrossEndpoints(t *testing.T) {
	atA := ForNode("us-east", 1, "v1", nil)
	atB := ForNode("eu-west", 1, "v1", nil)

	seenByA := ForLink(atA, atB, "combined")
	seenByB := ForLink(atB, atA, "combined")

	if seenByA != seenByB {
		t.Fatalf("one physical link, two IDs: %d at one end, %d at the other",
			seenByA, seenByB)
	}
}

// TestIdentityProperties verifies the generator contract with randomized
// inputs: purity (same input, same output) and role sensitivity.
func TestIdentityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("node identity is a pure function", prop.ForAll(
		func(location, version string, role uint64, producers []string) bool {
			return ForNode(location, role, version, producers) ==
				ForNode(location, role, version, producers)
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.UInt64(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("link identity is a pure function", prop.ForAll(
		func(active, passive uint64, role string) bool {
			return ForLink(NodeID(active), NodeID(passive), role) ==
				ForLink(NodeID(active), NodeID(passive), role)
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.AlphaString(),
	))

	properties.Property("link identity ignores orientation", prop.ForAll(
		func(active, passive uint64) bool {
			return ForLink(NodeID(active), NodeID(passive), "blocks") ==
				ForLink(NodeID(passive), NodeID(active), "blocks")
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
