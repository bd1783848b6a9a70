package sevnup

import (
	"reflect"
	"testing"
)

func TestComputeOwnedVNodes(t *testing.T) {
	ring := newFakeRing("A", 4)
	ring.setOwner(0, "A")
	ring.setOwner(1, "B")
	ring.setOwner(2, "A")
	ring.setOwner(3, "B")

	owned, err := computeOwnedVNodes(ring, 4)
	if err != nil {
		t.Fatalf("computeOwnedVNodes: %v", err)
	}
	if !reflect.DeepEqual(owned, []int{0, 2}) {
		t.Fatalf("unexpected owned set: %v", owned)
	}
}

func TestComputeOwnedVNodesEmpty(t *testing.T) {
	ring := newFakeRing("A", 4)
	ring.setOwner(0, "B")
	ring.setOwner(1, "B")
	ring.setOwner(2, "B")
	ring.setOwner(3, "B")

	owned, err := computeOwnedVNodes(ring, 4)
	if err != nil {
		t.Fatalf("computeOwnedVNodes: %v", err)
	}
	if len(owned) != 0 {
		t.Fatalf("expected no owned vnodes, got %v", owned)
	}
}
