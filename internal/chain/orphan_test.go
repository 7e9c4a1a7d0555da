package chain

import (
	"testing"

	"github.com/andes-chain/basenode/internal/consensus"
	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// newTestChain builds a fresh proof-of-work test chain initialized from the
// same deterministic genesis config every caller uses, so two chains built
// this way produce byte-identical genesis blocks and will accept each
// other's blocks. key is not used.
func newTestChain(t *testing.T, key *crypto.PrivateKey) (*Chain, *consensus.PoW) {
	t.Helper()
	engine, err := consensus.NewPoW(1, 0, 3)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}

	db := storage.NewMemory()
	outputs := utxo.NewStore(db)
	ch, err := New(types.ChainID{}, db, outputs, engine)
	if err != nil {
		t.Fatalf("New chain: %v", err)
	}
	gen := testGenesisConfig()
	if err := ch.InitFromGenesis(gen); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	ch.SetConsensusRules(gen.Protocol.Consensus)
	return ch, engine
}

// TestAddBlock_ParksOrphanOnUnknownParent verifies that a block whose
// parent the chain has never seen is parked rather than rejected outright,
// and that it connects automatically once its parent actually arrives.
func TestAddBlock_ParksOrphanOnUnknownParent(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	// Build the real two-block chain on a throwaway replica so blk2 carries
	// correct roots and a real prev-hash to blk1.
	replica, replicaEngine := newTestChain(t, key)
	blk1 := mineBlock(t, replica, replicaEngine, 1, 1700000010)
	blk2 := buildBlock(t, replica, replicaEngine, coinbaseBody(2, 2, 1000), 1700000020)

	// A second chain from the same key/genesis has never seen blk1.
	ch, _ := newTestChain(t, key)

	result, err := ch.AddBlock(blk2)
	if err != nil {
		t.Fatalf("AddBlock(blk2) unexpected error: %v", err)
	}
	if result != AddResultOrphan {
		t.Fatalf("AddBlock(blk2) = %v, want AddResultOrphan", result)
	}
	if ch.OrphanCount() != 1 {
		t.Fatalf("OrphanCount() = %d, want 1", ch.OrphanCount())
	}
	if ch.Height() != 0 {
		t.Fatalf("Height() = %d, want 0 (still genesis)", ch.Height())
	}

	result, err = ch.AddBlock(blk1)
	if err != nil {
		t.Fatalf("AddBlock(blk1) unexpected error: %v", err)
	}
	if result != AddResultOk {
		t.Fatalf("AddBlock(blk1) = %v, want AddResultOk", result)
	}

	// blk2 should have connected automatically behind blk1.
	if ch.Height() != 2 {
		t.Fatalf("Height() = %d, want 2 (orphan auto-connected)", ch.Height())
	}
	if ch.OrphanCount() != 0 {
		t.Fatalf("OrphanCount() = %d, want 0 after connection", ch.OrphanCount())
	}
}

func TestAddBlock_BlockExists(t *testing.T) {
	ch, engine := testChainWithKeyWrapper(t)
	blk1 := mineBlock(t, ch, engine, 1, 1700000010)

	result, err := ch.AddBlock(blk1)
	if err != nil {
		t.Fatalf("AddBlock re-add: unexpected error %v", err)
	}
	if result != AddResultBlockExists {
		t.Fatalf("AddBlock on known block = %v, want AddResultBlockExists", result)
	}
}

func TestAddBlock_Ok(t *testing.T) {
	ch, engine := testChainWithKeyWrapper(t)
	blk1 := buildBlock(t, ch, engine, coinbaseBody(1, 1, 1000), 1700000010)

	result, err := ch.AddBlock(blk1)
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if result != AddResultOk {
		t.Fatalf("AddBlock = %v, want AddResultOk", result)
	}
}

// testChainWithKeyWrapper adapts testChainWithKey's three-value return for
// tests here that don't need the signing key itself.
func testChainWithKeyWrapper(t *testing.T) (*Chain, *consensus.PoW) {
	t.Helper()
	ch, _, engine := testChainWithKey(t)
	return ch, engine
}

func TestOrphanPool_CapsPerParent(t *testing.T) {
	p := NewOrphanPool()
	ch, engine := testChainWithKeyWrapper(t)

	var blocks []*block.Block
	for i := 0; i < maxOrphansPerParent+4; i++ {
		blk := buildBlock(t, ch, engine, coinbaseBody(byte(i+10), 1, 1000), uint64(1700000000+i))
		blocks = append(blocks, blk)
	}
	accepted := 0
	for _, blk := range blocks {
		if p.Add(blk) {
			accepted++
		}
	}
	if accepted != maxOrphansPerParent {
		t.Fatalf("accepted %d orphans behind one parent, want %d", accepted, maxOrphansPerParent)
	}
}
