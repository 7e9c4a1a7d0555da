package chain

import (
	"errors"
	"testing"

	"github.com/andes-chain/basenode/internal/consensus"
	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

func TestInitFromGenesis(t *testing.T) {
	ch, _, _ := testChainWithKey(t)

	if ch.Height() != 0 {
		t.Fatalf("expected height 0, got %d", ch.Height())
	}
	if ch.TipHash().IsZero() {
		t.Fatal("expected non-zero genesis tip hash")
	}

	has, err := ch.outputs.Has(testGenesisConfig().Coinbase.Commitment)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatal("expected genesis coinbase commitment in output set")
	}
}

func TestInitFromGenesis_AlreadyInitialized(t *testing.T) {
	ch, _, _ := testChainWithKey(t)
	if err := ch.InitFromGenesis(testGenesisConfig()); err == nil {
		t.Fatal("expected error re-initializing a non-genesis chain")
	}
}

func TestProcessBlock_ExtendsTip(t *testing.T) {
	ch, key, engine := testChainWithKey(t)

	blk := mineBlock(t, ch, engine, key.PublicKey()[0], 1700000003)

	if ch.Height() != 1 {
		t.Fatalf("expected height 1, got %d", ch.Height())
	}
	if ch.TipHash() != blk.Hash() {
		t.Fatal("tip hash does not match mined block")
	}

	has, err := ch.outputs.Has(blk.Body.Outputs[0].Commitment)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatal("expected new coinbase commitment in output set")
	}
}

func TestProcessBlock_RejectsKnownBlock(t *testing.T) {
	ch, key, engine := testChainWithKey(t)
	blk := mineBlock(t, ch, engine, key.PublicKey()[0]+1, 1700000003)
	if err := ch.ProcessBlock(blk); !errors.Is(err, ErrBlockKnown) {
		t.Fatalf("expected ErrBlockKnown, got %v", err)
	}
}

func TestProcessBlock_RejectsBadPrevHash(t *testing.T) {
	ch, _, engine := testChainWithKey(t)
	body := coinbaseBody(1, 1, 1000)
	blk := buildBlock(t, ch, engine, body, 1700000003)
	blk.Header.PrevHash = types.Hash{0xAB}

	err := ch.ProcessBlock(blk)
	if err == nil {
		t.Fatal("expected error for bad prev hash")
	}
}

func TestProcessBlock_RejectsImmatureSpend(t *testing.T) {
	ch, _, engine := testChainWithKey(t)

	blk1 := mineBlock(t, ch, engine, 1, 1700000003)
	spent := blk1.Body.Outputs[0].Commitment

	body := coinbaseBody(2, ch.Height()+1, 1000)
	body.Inputs = []tx.TransactionInput{{Features: blk1.Body.Outputs[0].Features, Commitment: spent}}
	body.Sort()
	blk2 := buildBlock(t, ch, engine, body, 1700000006)

	if err := ch.ProcessBlock(blk2); !errors.Is(err, ErrOutputNotMature) && !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("expected maturity or not-found rejection, got %v", err)
	}
}

func TestRebuildState(t *testing.T) {
	ch, _, engine := testChainWithKey(t)
	for i := 0; i < 3; i++ {
		mineBlock(t, ch, engine, byte(i+1), uint64(1700000003+i*3))
	}

	wantHeight := ch.Height()
	wantTip := ch.TipHash()

	if err := ch.RebuildState(); err != nil {
		t.Fatalf("RebuildState: %v", err)
	}
	if ch.Height() != wantHeight || ch.TipHash() != wantTip {
		t.Fatal("RebuildState changed chain tip")
	}

	tipBlk, err := ch.GetBlockByHeight(wantHeight)
	if err != nil {
		t.Fatalf("GetBlockByHeight: %v", err)
	}
	for _, out := range tipBlk.Body.Outputs {
		has, err := ch.outputs.Has(out.Commitment)
		if err != nil {
			t.Fatalf("Has: %v", err)
		}
		if !has {
			t.Fatalf("output %s missing after rebuild", out.Commitment)
		}
	}
}

func TestNew_RecoversFromExistingStore(t *testing.T) {
	db := storage.NewMemory()
	outputs := utxo.NewStore(db)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	engine, err := consensus.NewPoW(1, 0, 3)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}

	ch1, err := New(types.ChainID{}, db, outputs, engine)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ch1.InitFromGenesis(testGenesisConfig()); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	mineBlock(t, ch1, engine, key.PublicKey()[0], 1700000003)

	ch2, err := New(types.ChainID{}, db, outputs, engine)
	if err != nil {
		t.Fatalf("New (recover): %v", err)
	}
	if ch2.Height() != ch1.Height() {
		t.Fatalf("recovered height %d, want %d", ch2.Height(), ch1.Height())
	}
	if ch2.TipHash() != ch1.TipHash() {
		t.Fatal("recovered tip hash mismatch")
	}
}
