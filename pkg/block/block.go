package block

import (
	"errors"
	"fmt"

	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// Structural validation errors.
var (
	ErrNilHeader       = errors.New("block has no header")
	ErrZeroTimestamp   = errors.New("block has zero timestamp")
	ErrBodyNotSorted   = errors.New("block body is not in canonical order")
	ErrTooManyCoinbase = errors.New("block has more than one coinbase kernel")
	ErrMissingCoinbase = errors.New("block has no coinbase kernel")
)

// Block is a header plus the aggregate body of every transaction's inputs,
// outputs and kernels folded into it. Unlike a transaction-oriented chain, a
// mined block carries one combined body rather than a list of individual
// transactions: once included, a transaction's components are
// indistinguishable from its neighbors', which is what lets cut-through
// collapse spent-and-recreated outputs within the same block.
type Block struct {
	Header *Header          `json:"header"`
	Body   tx.AggregateBody `json:"body"`
}

// Validate checks the block's structural consistency: it must have a
// header, a non-zero timestamp, a canonically sorted and duplicate-free
// body, and exactly one coinbase kernel. It does not check proof of work
// (the consensus engine's VerifyHeader does), MMR root correctness (chain
// block processing does), or any cryptographic property of the body
// (nothing in the node checks those).
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}
	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}
	if !b.Body.IsSorted() {
		return ErrBodyNotSorted
	}
	if err := b.Body.CheckNoDuplicates(); err != nil {
		return fmt.Errorf("%w: %v", ErrBodyNotSorted, err)
	}
	coinbaseKernels := 0
	for _, k := range b.Body.Kernels {
		if k.IsCoinbase() {
			coinbaseKernels++
		}
	}
	if coinbaseKernels > 1 {
		return ErrTooManyCoinbase
	}
	if coinbaseKernels == 0 {
		return ErrMissingCoinbase
	}
	return nil
}

// Hash returns the hash of the block's header, which is the block's
// identity on the chain.
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}
