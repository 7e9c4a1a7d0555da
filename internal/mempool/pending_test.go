package mempool

import (
	"testing"

	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// TestPendingPool_UnlockOnBlock reproduces the literal pending-unlock
// scenario: six transactions with distinct lock-heights/input-maturities
// inserted into a capacity-10 pool, then a block at height 1500 confirming
// tx6 is published. Exactly the transactions whose unlock height has been
// reached are returned for resubmission; the rest, plus anything the block
// itself confirmed, are gone.
func TestPendingPool_UnlockOnBlock(t *testing.T) {
	p := NewPendingPool(10)

	// (lockHeight, maturity) per transaction; unlockHeight is the larger of
	// the two, computed by the caller the same way Insert's doc describes.
	specs := []struct {
		lockHeight, maturity uint64
	}{
		{500, 0},    // tx1: unlock 500
		{0, 2150},   // tx2: unlock 2150
		{0, 1000},   // tx3: unlock 1000
		{2450, 0},   // tx4: unlock 2450
		{1000, 0},   // tx5: unlock 1000
		{1450, 1400}, // tx6: unlock 1450
	}

	txs := make([]*tx.Transaction, len(specs))
	for i, s := range specs {
		txs[i] = tx.NewTestTransaction(byte(i+1), types.MicroTari(10), s.lockHeight, s.maturity)
		unlockHeight := s.lockHeight
		if s.maturity > unlockHeight {
			unlockHeight = s.maturity
		}
		if err := p.Insert(txs[i], unlockHeight); err != nil {
			t.Fatalf("insert tx%d: %v", i+1, err)
		}
	}

	blk := &block.Block{
		Header: &block.Header{Height: 1500},
		Body: tx.AggregateBody{
			Kernels: []tx.TransactionKernel{txs[5].Body.Kernels[0]},
		},
	}

	unlocked := p.RemoveUnlockedAndDiscardDoubleSpends(blk)
	if len(unlocked) != 3 {
		t.Fatalf("unlocked set has %d txs, want 3", len(unlocked))
	}
	wantUnlocked := map[types.Signature]bool{}
	for _, i := range []int{0, 2, 4} { // tx1, tx3, tx5
		sig, err := primarySig(txs[i])
		if err != nil {
			t.Fatalf("primarySig: %v", err)
		}
		wantUnlocked[sig] = true
	}
	for _, u := range unlocked {
		sig, err := primarySig(u)
		if err != nil {
			t.Fatalf("primarySig: %v", err)
		}
		if !wantUnlocked[sig] {
			t.Fatalf("unexpected transaction in unlocked set: %x", sig)
		}
	}

	if p.Len() != 2 {
		t.Fatalf("remaining pool len = %d, want 2", p.Len())
	}
	for _, i := range []int{1, 3} { // tx2, tx4 remain
		sig, err := primarySig(txs[i])
		if err != nil {
			t.Fatalf("primarySig: %v", err)
		}
		if !p.HasTx(sig) {
			t.Fatalf("tx%d should remain pooled", i+1)
		}
	}

	if !p.CheckStatus() {
		t.Fatal("CheckStatus false after unlock")
	}
}

// TestPendingPool_CheckStatusAfterInsertsAndRemovals exercises the
// invariant property across an arbitrary sequence of inserts and a
// block-triggered removal.
func TestPendingPool_CheckStatusAfterInsertsAndRemovals(t *testing.T) {
	p := NewPendingPool(4)
	for i := 0; i < 4; i++ {
		transaction := tx.NewTestTransaction(byte(i+1), types.MicroTari(10*(i+1)), uint64(100*(i+1)), 0)
		if err := p.Insert(transaction, uint64(100*(i+1))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if !p.CheckStatus() {
			t.Fatalf("CheckStatus false after insert %d", i)
		}
	}

	blk := &block.Block{Header: &block.Header{Height: 250}}
	p.RemoveUnlockedAndDiscardDoubleSpends(blk)
	if !p.CheckStatus() {
		t.Fatal("CheckStatus false after partial unlock")
	}
}
