package tx

import "testing"

func TestTransaction_Validate(t *testing.T) {
	txn := NewTestTransaction(1, 50, 0, 0)
	if err := txn.Validate(); err != nil {
		t.Fatalf("expected valid transaction, got %v", err)
	}
}

func TestTransaction_Validate_NoKernels(t *testing.T) {
	txn := NewTestTransaction(1, 50, 0, 0)
	txn.Body.Kernels = nil
	if err := txn.Validate(); err != ErrNoKernels {
		t.Fatalf("expected ErrNoKernels, got %v", err)
	}
}

func TestTransaction_Validate_DuplicateOutput(t *testing.T) {
	txn := NewTestTransaction(1, 50, 0, 0)
	txn.Body.Outputs = append(txn.Body.Outputs, txn.Body.Outputs[0])
	if err := txn.Validate(); err == nil {
		t.Fatal("expected error for duplicate output commitment")
	}
}

func TestTransaction_Hash_Deterministic(t *testing.T) {
	a := NewTestTransaction(7, 10, 0, 0)
	b := NewTestTransaction(7, 10, 0, 0)
	if a.Hash() != b.Hash() {
		t.Fatal("identical transactions should hash identically")
	}

	c := NewTestTransaction(8, 10, 0, 0)
	if a.Hash() == c.Hash() {
		t.Fatal("differing transactions should not hash identically")
	}
}

func TestAggregateBody_SortIdempotent(t *testing.T) {
	txn := NewTestTransaction(3, 10, 0, 0)
	before := txn.Body
	txn.Body.Sort()
	if !txn.Body.IsSorted() {
		t.Fatal("body should be sorted after Sort()")
	}
	if len(before.Inputs) != len(txn.Body.Inputs) {
		t.Fatal("sort should not change element counts")
	}
}
