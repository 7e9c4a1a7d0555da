package validation

import (
	"errors"
	"testing"

	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/tx"
)

func newTestUTXOs(outs ...*utxo.Output) *utxo.Store {
	db := storage.NewMemory()
	s := utxo.NewStore(db)
	for _, o := range outs {
		if err := s.Put(o); err != nil {
			panic(err)
		}
	}
	return s
}

func TestStatelessTxValidator_IgnoresChainState(t *testing.T) {
	txn := tx.NewTestTransaction(1, 10, 0, 0)
	if err := (StatelessTxValidator{}).Validate(txn, 0); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	txn.Body.Kernels = nil
	if err := (StatelessTxValidator{}).Validate(txn, 0); err == nil {
		t.Fatal("expected error for a kernel-less transaction")
	}
}

func TestFullTxValidator_RejectsUnknownInput(t *testing.T) {
	utxos := newTestUTXOs() // empty: input commitment will not be found
	txn := tx.NewTestTransaction(1, 10, 0, 0)

	v := FullTxValidator{UTXOs: utxos}
	err := v.Validate(txn, 100)
	if !errors.Is(err, ErrUnknownInput) {
		t.Fatalf("expected ErrUnknownInput, got %v", err)
	}
}

func TestFullTxValidator_AcceptsKnownMatureInput(t *testing.T) {
	txn := tx.NewTestTransaction(1, 10, 0, 0)
	in := txn.Body.Inputs[0]

	utxos := newTestUTXOs(&utxo.Output{
		Commitment: in.Commitment,
		Features:   in.Features,
		Maturity:   50,
	})

	v := FullTxValidator{UTXOs: utxos}
	if err := v.Validate(txn, 100); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestTxInputAndMaturityValidator_RejectsImmatureInput(t *testing.T) {
	txn := tx.NewTestTransaction(1, 10, 0, 0)
	in := txn.Body.Inputs[0]

	utxos := newTestUTXOs(&utxo.Output{
		Commitment: in.Commitment,
		Features:   in.Features,
		Maturity:   200, // spendable once tip+1 reaches 200
	})

	v := TxInputAndMaturityValidator{UTXOs: utxos}
	err := v.Validate(txn, 50)
	if !errors.Is(err, ErrImmature) {
		t.Fatalf("expected ErrImmature, got %v", err)
	}

	if err := v.Validate(txn, 200); err != nil {
		t.Fatalf("expected valid once tip catches up, got %v", err)
	}
}

func TestTxInputAndMaturityValidator_RejectsUnexpiredLockHeight(t *testing.T) {
	txn := tx.NewTestTransaction(1, 10, 5000, 0)
	in := txn.Body.Inputs[0]

	utxos := newTestUTXOs(&utxo.Output{
		Commitment: in.Commitment,
		Features:   in.Features,
	})

	v := TxInputAndMaturityValidator{UTXOs: utxos}
	if err := v.Validate(txn, 10); !errors.Is(err, ErrImmature) {
		t.Fatalf("expected ErrImmature from kernel lock height, got %v", err)
	}
	if err := v.Validate(txn, 4999); err != nil {
		t.Fatalf("expected valid at tip 4999 (min spendable 5000), got %v", err)
	}
}

func TestVerifyInputsKnown_SkipsTimelockCheck(t *testing.T) {
	txn := tx.NewTestTransaction(1, 10, 9999, 0)
	in := txn.Body.Inputs[0]

	utxos := newTestUTXOs(&utxo.Output{Commitment: in.Commitment, Features: in.Features})
	if err := VerifyInputsKnown(txn, utxos); err != nil {
		t.Fatalf("expected input-existence check alone to pass, got %v", err)
	}
}
