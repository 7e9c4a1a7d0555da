package tx

import (
	"encoding/binary"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// TransactionInput spends a prior output identified by its commitment. It
// carries a copy of the spent output's features so that structural and
// maturity checks do not require a UTXO lookup to know what is being
// claimed; the chain storage layer still confirms the commitment was
// actually an unspent output with matching features before accepting it.
type TransactionInput struct {
	Features   OutputFeatures   `json:"features"`
	Commitment types.Commitment `json:"commitment"`
}

// SigningBytes returns the canonical byte encoding used to hash the input.
func (in TransactionInput) SigningBytes() []byte {
	buf := make([]byte, 0, 1+types.CommitmentSize)
	buf = append(buf, byte(in.Features))
	buf = append(buf, in.Commitment[:]...)
	return buf
}

// Hash returns the input's content hash.
func (in TransactionInput) Hash() types.Hash {
	return crypto.Hash(in.SigningBytes())
}

// OutputHash returns the hash the referenced output would have produced,
// for matching against the UTXO MMR leaf at the given maturity.
func (in TransactionInput) OutputHash(maturity uint64) types.Hash {
	buf := make([]byte, 0, 1+types.CommitmentSize+8)
	buf = append(buf, byte(in.Features))
	buf = append(buf, in.Commitment[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, maturity)
	return crypto.Hash(buf)
}
