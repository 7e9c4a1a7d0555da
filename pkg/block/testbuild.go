package block

import "github.com/andes-chain/basenode/pkg/tx"

// NewTestBlock builds a minimal, structurally valid block at the given
// height carrying a single test transaction's body, plus the single
// coinbase kernel every block needs to pass Validate.
func NewTestBlock(seed byte, height uint64, prevHash [32]byte, difficulty uint64) *Block {
	txn := tx.NewTestTransaction(seed, 10, 0, 0)
	txn.Body.Kernels[0].Features = tx.KernelFeaturesCoinbase
	txn.Body.Sort()
	return &Block{
		Header: &Header{
			Version:    HeaderVersion,
			PrevHash:   prevHash,
			Height:     height,
			Timestamp:  1700000000 + height,
			Difficulty: difficulty,
		},
		Body: txn.Body,
	}
}
