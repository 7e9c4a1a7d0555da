package mempool

import (
	"testing"

	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// TestUnconfirmedPool_LRUEviction exercises the literal eviction scenario:
// capacity 3, six transactions with fees {50,20,100,30,50,75} inserted in
// order s1..s6. Because every test transaction has identical signing-byte
// weight, fee order is priority order, so the survivors are exactly the
// three highest-fee transactions seen at each point a lower one can still
// be displaced: s1, s3 and s6.
func TestUnconfirmedPool_LRUEviction(t *testing.T) {
	p := NewUnconfirmedPool(3)

	fees := []uint64{50, 20, 100, 30, 50, 75}
	txs := make([]*tx.Transaction, len(fees))
	for i, fee := range fees {
		txs[i] = tx.NewTestTransaction(byte(i+1), types.MicroTari(fee), 0, 0)
		if err := p.Insert(txs[i]); err != nil {
			t.Logf("insert s%d: %v", i+1, err) // eviction rejections are expected, not failures
		}
	}

	if p.Len() != 3 {
		t.Fatalf("expected len 3, got %d", p.Len())
	}

	wantPresent := map[int]bool{0: true, 2: true, 5: true}
	for i, transaction := range txs {
		sig, err := primarySig(transaction)
		if err != nil {
			t.Fatalf("primarySig: %v", err)
		}
		has := p.HasTx(sig)
		if has != wantPresent[i] {
			t.Errorf("s%d: has_tx = %v, want %v", i+1, has, wantPresent[i])
		}
	}

	if !p.CheckStatus() {
		t.Fatal("expected CheckStatus true after LRU eviction")
	}
}

func TestUnconfirmedPool_RejectsDuplicate(t *testing.T) {
	p := NewUnconfirmedPool(3)
	txA := tx.NewTestTransaction(1, 50, 0, 0)
	if err := p.Insert(txA); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := p.Insert(txA); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
