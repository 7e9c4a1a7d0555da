package mmr

import (
	"testing"

	"github.com/andes-chain/basenode/pkg/types"
)

func leafAt(seed byte) types.Hash {
	var h types.Hash
	h[0] = seed
	return h
}

func TestMMR_EmptyRootIsZero(t *testing.T) {
	m := New()
	if m.Root() != (types.Hash{}) {
		t.Fatal("empty MMR should have zero root")
	}
}

func TestMMR_AppendChangesRoot(t *testing.T) {
	m := New()
	r0 := m.Root()
	m.Append(leafAt(1))
	r1 := m.Root()
	if r0 == r1 {
		t.Fatal("root should change after append")
	}
	m.Append(leafAt(2))
	r2 := m.Root()
	if r1 == r2 {
		t.Fatal("root should change after second append")
	}
}

func TestMMR_DeterministicAcrossEquivalentBuilds(t *testing.T) {
	a := New()
	b := New()
	for i := byte(1); i <= 7; i++ {
		a.Append(leafAt(i))
		b.Append(leafAt(i))
	}
	if a.Root() != b.Root() {
		t.Fatal("two MMRs built from the same leaves should have equal roots")
	}
	if a.Size() != 7 {
		t.Fatalf("size = %d, want 7", a.Size())
	}
}

func TestMMR_DifferentOrderDifferentRoot(t *testing.T) {
	a := New()
	a.Append(leafAt(1))
	a.Append(leafAt(2))

	b := New()
	b.Append(leafAt(2))
	b.Append(leafAt(1))

	if a.Root() == b.Root() {
		t.Fatal("leaf order should affect the root")
	}
}

func TestChangeTracker_RewindRestoresRoot(t *testing.T) {
	ct := NewChangeTracker(2, 4)
	ct.Append(1, leafAt(1))
	rootAt1 := ct.Root()
	ct.Append(2, leafAt(2))
	ct.Append(3, leafAt(3))

	if err := ct.Rewind(1); err != nil {
		t.Fatalf("Rewind(1) error: %v", err)
	}
	if ct.Root() != rootAt1 {
		t.Fatal("rewind should restore the root as of height 1")
	}
	if ct.Size() != 1 {
		t.Fatalf("size after rewind = %d, want 1", ct.Size())
	}
}

func TestChangeTracker_PrunesBeyondMaxHistory(t *testing.T) {
	ct := NewChangeTracker(2, 3)
	for h := uint64(1); h <= 5; h++ {
		ct.Append(h, leafAt(byte(h)))
	}
	oldest, ok := ct.OldestRetainedHeight()
	if !ok {
		t.Fatal("expected a retained height")
	}
	if oldest < 3 {
		t.Fatalf("oldest retained height = %d, want >= 3 after pruning to maxHistory=3", oldest)
	}
}

func TestChangeTracker_RewindBeyondHorizonFails(t *testing.T) {
	ct := NewChangeTracker(2, 3)
	for h := uint64(1); h <= 5; h++ {
		ct.Append(h, leafAt(byte(h)))
	}
	if err := ct.Rewind(1); err == nil {
		t.Fatal("expected ErrBeyondPrunedHorizon for a pruned height")
	}
}
