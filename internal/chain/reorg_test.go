package chain

import (
	"testing"

	"github.com/andes-chain/basenode/internal/consensus"
	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// newChainWithEngine builds a fresh chain and its own proof-of-work engine
// instance, initialized from the shared test genesis. key is accepted only
// so callers share a single random source with the rest of the suite.
func newChainWithEngine(t *testing.T, key *crypto.PrivateKey) (*Chain, *consensus.PoW) {
	t.Helper()
	engine, err := consensus.NewPoW(1, 0, 3)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}
	db := storage.NewMemory()
	ch, err := New(types.ChainID{}, db, utxo.NewStore(db), engine)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ch.InitFromGenesis(testGenesisConfig()); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	return ch, engine
}

// TestReorg_SwitchesToHeavierBranch builds two proof-of-work chains sharing
// the same genesis, grows both through identical blocks up to height 2,
// then diverges: chain A mines one more block of its own while chain B
// mines two. Feeding B's two extra blocks to A — which already has a
// competing block at height 3 — must detect the fork and reorg onto B's
// heavier branch.
func TestReorg_SwitchesToHeavierBranch(t *testing.T) {
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
	if chA.TipHash() != chB.TipHash() {
		t.Fatal("chains diverged during common history setup")
	}

	// A's own, soon-to-be-orphaned branch.
	mineBlock(t, chA, engineA, 99, 1700000042)

	// B's heavier branch: two blocks of its own past the fork point.
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
		t.Fatalf("A did not reorg to B's height: A=%d B=%d", chA.Height(), chB.Height())
	}
	if chA.TipHash() != chB.TipHash() {
		t.Fatal("A did not reorg to B's tip")
	}

	orphanedCommitment := coinbaseBody(99, 3, 1000).Outputs[0].Commitment
	has, err := chA.outputs.Has(orphanedCommitment)
	if err != nil {
		t.Fatalf("Has (orphaned): %v", err)
	}
	if has {
		t.Fatal("expected A's orphaned height-3 output to be reverted")
	}

	newCommitment := coinbaseBody(10, 3, 1000).Outputs[0].Commitment
	has, err = chA.outputs.Has(newCommitment)
	if err != nil {
		t.Fatalf("Has (new branch): %v", err)
	}
	if !has {
		t.Fatal("expected B's height-3 output to be present after reorg")
	}
}

// TestReorg_EqualWorkKeepsCurrentChain verifies that a competing branch
// with no more cumulative difficulty than the current tip does not trigger
// a reorg, avoiding flip-flopping between equally-weighted branches.
func TestReorg_EqualWorkKeepsCurrentChain(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	chA, engineA := newChainWithEngine(t, key)
	chB, engineB := newChainWithEngine(t, key)

	blk := mineBlock(t, chA, engineA, 1, 1700000003)
	if err := chB.ProcessBlock(blk); err != nil {
		t.Fatalf("replay common block on B: %v", err)
	}

	mineBlock(t, chA, engineA, 2, 1700000006)
	competingBlk := mineBlock(t, chB, engineB, 3, 1700000009)

	wantTip := chA.TipHash()
	if err := chA.ProcessBlock(competingBlk); err != nil {
		t.Fatalf("feed competing block: %v", err)
	}
	if chA.TipHash() != wantTip {
		t.Fatal("equal-work competing branch should not have triggered a reorg")
	}
}
