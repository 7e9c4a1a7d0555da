package chain

import "github.com/andes-chain/basenode/pkg/types"

// State holds the current chain tip state. Unlike a plaintext-value UTXO
// chain, output amounts here are hidden behind Pedersen commitments, so the
// chain has no running "total supply" counter to maintain — cumulative
// difficulty and the aggregate kernel offset are the only running totals
// fork choice and balance verification need.
type State struct {
	Height               uint64
	TipHash              types.Hash
	TipTimestamp         uint64     // Timestamp of the current tip block.
	CumulativeDifficulty uint64     // Sum of all block difficulties (PoW fork choice).
	TotalKernelOffset    types.Hash // Running sum of every kernel offset since genesis.
}

// IsGenesis returns true if no blocks have been processed yet.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}
