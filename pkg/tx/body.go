package tx

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/andes-chain/basenode/pkg/types"
)

// AggregateBody is the set of inputs, outputs and kernels that make up a
// transaction or a block's combined transaction set. Components are kept in
// canonical order (inputs and outputs ascending by commitment bytes, kernels
// by excess-signature bytes) so that two semantically
// identical bodies always serialize identically.
type AggregateBody struct {
	Inputs  []TransactionInput  `json:"inputs"`
	Outputs []TransactionOutput `json:"outputs"`
	Kernels []TransactionKernel `json:"kernels"`
}

// Sort reorders inputs, outputs and kernels into canonical order in place.
func (b *AggregateBody) Sort() {
	sort.Slice(b.Inputs, func(i, j int) bool {
		return bytes.Compare(b.Inputs[i].Commitment[:], b.Inputs[j].Commitment[:]) < 0
	})
	sort.Slice(b.Outputs, func(i, j int) bool {
		return bytes.Compare(b.Outputs[i].Commitment[:], b.Outputs[j].Commitment[:]) < 0
	})
	sort.Slice(b.Kernels, func(i, j int) bool {
		return bytes.Compare(b.Kernels[i].ExcessSig.Bytes(), b.Kernels[j].ExcessSig.Bytes()) < 0
	})
}

// IsSorted reports whether inputs, outputs and kernels are each in
// canonical ascending order.
func (b *AggregateBody) IsSorted() bool {
	for i := 1; i < len(b.Inputs); i++ {
		if bytes.Compare(b.Inputs[i-1].Commitment[:], b.Inputs[i].Commitment[:]) >= 0 {
			return false
		}
	}
	for i := 1; i < len(b.Outputs); i++ {
		if bytes.Compare(b.Outputs[i-1].Commitment[:], b.Outputs[i].Commitment[:]) >= 0 {
			return false
		}
	}
	for i := 1; i < len(b.Kernels); i++ {
		if bytes.Compare(b.Kernels[i-1].ExcessSig.Bytes(), b.Kernels[i].ExcessSig.Bytes()) >= 0 {
			return false
		}
	}
	return true
}

// TotalFees sums the fees of all non-coinbase kernels.
func (b *AggregateBody) TotalFees() types.MicroTari {
	var total types.MicroTari
	for _, k := range b.Kernels {
		if !k.IsCoinbase() {
			total += k.Fee
		}
	}
	return total
}

// CheckNoDuplicates verifies inputs don't reference the same commitment
// twice and outputs don't mint the same commitment twice within this body.
func (b *AggregateBody) CheckNoDuplicates() error {
	seenIn := make(map[string]struct{}, len(b.Inputs))
	for _, in := range b.Inputs {
		k := string(in.Commitment[:])
		if _, ok := seenIn[k]; ok {
			return fmt.Errorf("duplicate input commitment %s", in.Commitment)
		}
		seenIn[k] = struct{}{}
	}
	seenOut := make(map[string]struct{}, len(b.Outputs))
	for _, out := range b.Outputs {
		k := string(out.Commitment[:])
		if _, ok := seenOut[k]; ok {
			return fmt.Errorf("duplicate output commitment %s", out.Commitment)
		}
		seenOut[k] = struct{}{}
	}
	return nil
}
