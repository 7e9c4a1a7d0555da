package mempool

import (
	"fmt"

	"github.com/andes-chain/basenode/config"
	"github.com/andes-chain/basenode/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in bytes (signing bytes).
const DefaultMaxTxSize = 100_000

// Policy defines transaction acceptance rules, separate from consensus
// validation so they can vary per node without a hard fork.
type Policy struct {
	MaxTxSize int // Maximum transaction size in signing bytes.
	MinFeeRate float64 // Minimum fee per byte of signing bytes (0 = no minimum).
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize: DefaultMaxTxSize,
	}
}

// Check validates a transaction against policy rules. It also re-enforces
// consensus-critical limits as defense-in-depth, rejecting early before the
// full validator pipeline runs.
func (p *Policy) Check(t *tx.Transaction) error {
	size := len(t.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if len(t.Body.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("too many inputs: %d, max %d", len(t.Body.Inputs), config.MaxTxInputs)
	}
	if len(t.Body.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("too many outputs: %d, max %d", len(t.Body.Outputs), config.MaxTxOutputs)
	}
	if p.MinFeeRate > 0 && size > 0 {
		rate := float64(t.TotalFee()) / float64(size)
		if rate < p.MinFeeRate {
			return fmt.Errorf("fee rate %.4f below policy minimum %.4f", rate, p.MinFeeRate)
		}
	}
	return nil
}
