package tx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// Transaction is the unit of propagation: one or more inputs/outputs bound
// together by one or more kernels, plus the kernel offset that, together
// with the kernel excesses, lets a verifier confirm the transaction sums to
// zero without learning any individual value.
type Transaction struct {
	Offset [32]byte      `json:"offset"`
	Body   AggregateBody `json:"body"`
}

// Structural validation errors.
var (
	ErrNoKernels      = errors.New("transaction has no kernels")
	ErrNotSorted      = errors.New("transaction body is not in canonical order")
	ErrDuplicateInOut = errors.New("transaction has duplicate input or output commitments")
	ErrZeroCommitment = errors.New("transaction contains a zero commitment")
)

// SigningBytes returns the canonical byte encoding used to hash the
// transaction: the offset followed by every input, output and kernel in
// their (already canonical) body order.
func (t *Transaction) SigningBytes() []byte {
	buf := make([]byte, 0, 32+256)
	buf = append(buf, t.Offset[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Body.Inputs)))
	for _, in := range t.Body.Inputs {
		buf = append(buf, in.SigningBytes()...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Body.Outputs)))
	for _, out := range t.Body.Outputs {
		buf = append(buf, out.SigningBytes()...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Body.Kernels)))
	for _, k := range t.Body.Kernels {
		buf = append(buf, k.SigningBytes()...)
	}
	return buf
}

// Hash computes the transaction ID.
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.SigningBytes())
}

// ExcessSignatures returns the excess signatures of every kernel in the
// transaction, in body order. For the common single-kernel case this is
// the transaction's unique identity in the mempool.
func (t *Transaction) ExcessSignatures() []types.Signature {
	sigs := make([]types.Signature, len(t.Body.Kernels))
	for i, k := range t.Body.Kernels {
		sigs[i] = k.ExcessSig
	}
	return sigs
}

// TotalFee sums the fees of all non-coinbase kernels in the transaction.
func (t *Transaction) TotalFee() types.MicroTari {
	return t.Body.TotalFees()
}

// MaxLockHeight returns the largest LockHeight across all kernels (0 if
// none are time-locked).
func (t *Transaction) MaxLockHeight() uint64 {
	var max uint64
	for _, k := range t.Body.Kernels {
		if k.LockHeight > max {
			max = k.LockHeight
		}
	}
	return max
}

// MaxOutputMaturity returns the largest Maturity across all outputs.
func (t *Transaction) MaxOutputMaturity() uint64 {
	var max uint64
	for _, out := range t.Body.Outputs {
		if out.Maturity > max {
			max = out.Maturity
		}
	}
	return max
}

// Validate checks the transaction's internal structural consistency: it
// must carry at least one kernel, its body must already be in canonical
// order, and it must not reference the same commitment twice. This does not
// check cryptographic validity (balance, signatures, range proofs), and no
// validator in this node checks those either.
func (t *Transaction) Validate() error {
	if len(t.Body.Kernels) == 0 {
		return ErrNoKernels
	}
	if !t.Body.IsSorted() {
		return ErrNotSorted
	}
	if err := t.Body.CheckNoDuplicates(); err != nil {
		return fmt.Errorf("%w: %v", ErrDuplicateInOut, err)
	}
	for _, in := range t.Body.Inputs {
		if in.Commitment.IsZero() {
			return ErrZeroCommitment
		}
	}
	for _, out := range t.Body.Outputs {
		if out.Commitment.IsZero() {
			return ErrZeroCommitment
		}
	}
	for _, k := range t.Body.Kernels {
		if k.Excess.IsZero() {
			return ErrZeroCommitment
		}
	}
	return nil
}
