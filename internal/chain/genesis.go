package chain

import (
	"fmt"

	"github.com/andes-chain/basenode/config"
	"github.com/andes-chain/basenode/internal/mmr"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// CreateGenesisBlock builds the genesis block from the genesis
// configuration. The genesis block has height 0, a zero PrevHash, and a
// single coinbase output/kernel pair from the pre-computed genesis
// coinbase — there is no address->value allocation map in a commitment
// scheme, since output values are never visible on-chain.
func CreateGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}

	body := tx.AggregateBody{
		Outputs: []tx.TransactionOutput{{
			Features:   tx.OutputFeaturesCoinbase,
			Commitment: gen.Coinbase.Commitment,
			RangeProof: gen.Coinbase.RangeProof,
			Maturity:   config.CoinbaseMaturity,
		}},
		Kernels: []tx.TransactionKernel{{
			Features:  tx.KernelFeaturesCoinbase,
			Excess:    gen.Coinbase.Excess,
			ExcessSig: gen.Coinbase.ExcessSig,
		}},
	}
	body.Sort()

	outTree := mmr.New()
	for _, out := range body.Outputs {
		outTree.Append(out.Hash())
	}
	rpTree := mmr.New()
	for _, out := range body.Outputs {
		rpTree.Append(rangeProofLeaf(out))
	}
	kTree := mmr.New()
	for _, k := range body.Kernels {
		kTree.Append(k.Hash())
	}

	header := &block.Header{
		Version:           block.HeaderVersion,
		PrevHash:          types.Hash{},
		Height:            0,
		Timestamp:         gen.Timestamp,
		OutputMMRRoot:     outTree.Root(),
		RangeProofMMRRoot: rpTree.Root(),
		KernelMMRRoot:     kTree.Root(),
		HeaderMMRRoot:     types.Hash{}, // No prior headers.
		TotalKernelOffset: types.Hash{}, // Coinbase-only kernel carries no offset.
		Difficulty:        gen.Protocol.Consensus.InitialDifficulty,
	}

	return &block.Block{Header: header, Body: body}, nil
}
