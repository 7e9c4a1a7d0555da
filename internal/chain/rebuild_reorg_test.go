package chain

import (
	"testing"

	"github.com/andes-chain/basenode/pkg/crypto"
)

// TestRebuildReorg_MissingUndo verifies that a reorg still succeeds, via a
// full rebuild from genesis, when the old branch's undo data is missing —
// the crash-recovery path for a reorg interrupted mid-write.
func TestRebuildReorg_MissingUndo(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	chA, engineA := newChainWithEngine(t, key)
	chB, engineB := newChainWithEngine(t, key)

	for i := 0; i < 2; i++ {
		blk := mineBlock(t, chA, engineA, byte(i+1), uint64(1700000003+i*3))
		if err := chB.ProcessBlock(blk); err != nil {
			t.Fatalf("replay common block %d on B: %v", i, err)
		}
	}

	orphanBlk := mineBlock(t, chA, engineA, 99, 1700000042)
	if err := chA.blocks.DeleteUndo(orphanBlk.Hash()); err != nil {
		t.Fatalf("DeleteUndo: %v", err)
	}

	mineBlock(t, chB, engineB, 10, 1700000100)
	mineBlock(t, chB, engineB, 11, 1700000103)

	for h := uint64(3); h <= chB.Height(); h++ {
		blk, err := chB.GetBlockByHeight(h)
		if err != nil {
			t.Fatalf("GetBlockByHeight(%d) on B: %v", h, err)
		}
		if err := chA.ProcessBlock(blk); err != nil {
			t.Fatalf("feed fork block height %d to A: %v", h, err)
		}
	}

	if chA.Height() != chB.Height() {
		t.Fatalf("A did not rebuild-reorg to B's height: A=%d B=%d", chA.Height(), chB.Height())
	}
	if chA.TipHash() != chB.TipHash() {
		t.Fatal("A did not rebuild-reorg to B's tip")
	}

	newCommitment := coinbaseBody(10, 3, 1000).Outputs[0].Commitment
	has, err := chA.outputs.Has(newCommitment)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatal("expected B's height-3 output present after rebuild reorg")
	}

	orphanedCommitment := coinbaseBody(99, 3, 1000).Outputs[0].Commitment
	has, err = chA.outputs.Has(orphanedCommitment)
	if err != nil {
		t.Fatalf("Has (orphaned): %v", err)
	}
	if has {
		t.Fatal("expected orphaned output absent after rebuild reorg")
	}
}
