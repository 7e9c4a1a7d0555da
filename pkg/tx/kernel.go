// Package tx defines the transaction data model: inputs, outputs and
// kernels committed in a Pedersen-commitment scheme, aggregated into
// transactions and block bodies.
package tx

import (
	"encoding/binary"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// KernelFeatures flags the role a kernel plays in a transaction.
type KernelFeatures uint8

const (
	// KernelFeaturesDefault marks an ordinary transaction kernel.
	KernelFeaturesDefault KernelFeatures = 0
	// KernelFeaturesCoinbase marks the kernel balancing a coinbase output.
	// Coinbase kernels carry no fee and are exempt from the block weight fee check.
	KernelFeaturesCoinbase KernelFeatures = 1
)

// TransactionKernel is the public, permanently-retained excess of a
// transaction's blinding factors: it proves the transaction's inputs and
// outputs balance without revealing their values. The excess signature is
// the transaction's identity — it is unique per transaction and is what the
// mempool indexes on.
type TransactionKernel struct {
	Features   KernelFeatures   `json:"features"`
	Fee        types.MicroTari  `json:"fee"`
	LockHeight uint64           `json:"lock_height"`
	Excess     types.Commitment `json:"excess"`
	ExcessSig  types.Signature  `json:"excess_sig"`
}

// SigningBytes returns the canonical byte encoding used to hash the kernel.
func (k TransactionKernel) SigningBytes() []byte {
	buf := make([]byte, 0, 1+8+8+types.CommitmentSize+types.CommitmentSize+types.ScalarSize)
	buf = append(buf, byte(k.Features))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(k.Fee))
	buf = binary.LittleEndian.AppendUint64(buf, k.LockHeight)
	buf = append(buf, k.Excess[:]...)
	buf = append(buf, k.ExcessSig.Bytes()...)
	return buf
}

// Hash returns the kernel's content hash, used as a leaf in the kernel MMR.
func (k TransactionKernel) Hash() types.Hash {
	return crypto.Hash(k.SigningBytes())
}

// IsCoinbase returns true if this kernel balances a coinbase output.
func (k TransactionKernel) IsCoinbase() bool {
	return k.Features&KernelFeaturesCoinbase != 0
}
