// Package utxo manages the set of unspent transaction outputs: Pedersen
// commitments that have been created by a confirmed output and not yet
// claimed by a confirmed input. There is no outpoint or address to index
// by here — a commitment is the output's entire on-chain identity.
package utxo

import (
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// Output is an entry in the unspent output set: enough of the original
// TransactionOutput to check maturity and features against a spending
// input without re-fetching the block that created it.
type Output struct {
	Commitment types.Commitment  `json:"commitment"`
	Features   tx.OutputFeatures `json:"features"`
	Maturity   uint64            `json:"maturity"`
	Height     uint64            `json:"height"` // height of the block that created it
}

// Set is the interface for unspent-output storage.
type Set interface {
	Get(commitment types.Commitment) (*Output, error)
	Put(o *Output) error
	Delete(commitment types.Commitment) error
	Has(commitment types.Commitment) (bool, error)
}
