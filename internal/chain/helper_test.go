package chain

import (
	"testing"

	"github.com/andes-chain/basenode/config"
	"github.com/andes-chain/basenode/internal/consensus"
	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// testGenesisConfig returns a minimal valid genesis configuration for a
// single-difficulty proof-of-work test chain.
func testGenesisConfig() *config.Genesis {
	g := &config.Genesis{
		ChainID:   "chain-test-1",
		ChainName: "Chain Test",
		Timestamp: 1700000000,
		Protocol: config.ProtocolConfig{
			Consensus: config.ConsensusRules{
				TargetBlockTime:   3,
				InitialDifficulty: 1,
				BlockWindow:       10,
				BlockReward:       1000,
			},
		},
	}
	g.Coinbase.Commitment[0] = 0xfe
	g.Coinbase.Excess[0] = 0xfd
	g.Coinbase.ExcessSig.PublicNonce[0] = 0xfc
	return g
}

// testChainWithKey creates a single-difficulty proof-of-work chain
// initialized from genesis, returning the chain, a throwaway key (used only
// as a convenient source of distinct per-test seed bytes), and the PoW
// engine so tests can build and seal further blocks.
func testChainWithKey(t *testing.T) (*Chain, *crypto.PrivateKey, *consensus.PoW) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	engine, err := consensus.NewPoW(1, 0, 3)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}

	db := storage.NewMemory()
	outputs := utxo.NewStore(db)
	ch, err := New(types.ChainID{}, db, outputs, engine)
	if err != nil {
		t.Fatalf("New chain: %v", err)
	}

	gen := testGenesisConfig()
	if err := ch.InitFromGenesis(gen); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	ch.SetConsensusRules(gen.Protocol.Consensus)

	return ch, key, engine
}

// coinbaseBody returns a single-output, single-kernel coinbase body for the
// block at the given height, with seed distinguishing otherwise-identical
// test bodies across heights/forks.
func coinbaseBody(seed byte, height, reward uint64) tx.AggregateBody {
	var outCommit, excess types.Commitment
	outCommit[0] = seed
	outCommit[1] = 0xc0
	excess[0] = seed
	excess[1] = 0xc1

	var sig types.Signature
	sig.PublicNonce[0] = seed
	sig.PublicNonce[1] = 0xc2

	body := tx.AggregateBody{
		Outputs: []tx.TransactionOutput{{
			Features:   tx.OutputFeaturesCoinbase,
			Commitment: outCommit,
			Maturity:   height + config.CoinbaseMaturity,
		}},
		Kernels: []tx.TransactionKernel{{
			Features:  tx.KernelFeaturesCoinbase,
			Excess:    excess,
			ExcessSig: sig,
		}},
	}
	body.Sort()
	return body
}

// buildBlock builds, roots, and seals a block extending ch's current tip
// with the given body, using engine to set difficulty and mine a valid
// nonce. It computes the block's MMR roots by speculatively appending to
// the chain's own trees and rewinding back, so the returned block always
// carries the roots ProcessBlock will independently recompute.
func buildBlock(t *testing.T, ch *Chain, engine *consensus.PoW, body tx.AggregateBody, timestamp uint64) *block.Block {
	t.Helper()

	height := ch.Height() + 1
	header := &block.Header{
		Version:           block.HeaderVersion,
		PrevHash:          ch.TipHash(),
		Height:            height,
		Timestamp:         timestamp,
		HeaderMMRRoot:     ch.headerTree.Root(),
		TotalKernelOffset: ch.state.TotalKernelOffset,
	}

	for _, out := range body.Outputs {
		ch.outputTree.Append(height, out.Hash())
		ch.rangeProofTree.Append(height, rangeProofLeaf(out))
	}
	for _, k := range body.Kernels {
		ch.kernelTree.Append(height, k.Hash())
	}
	header.OutputMMRRoot = ch.outputTree.Root()
	header.RangeProofMMRRoot = ch.rangeProofTree.Root()
	header.KernelMMRRoot = ch.kernelTree.Root()

	if err := ch.outputTree.Rewind(height - 1); err != nil {
		t.Fatalf("rewind output tree: %v", err)
	}
	if err := ch.rangeProofTree.Rewind(height - 1); err != nil {
		t.Fatalf("rewind range-proof tree: %v", err)
	}
	if err := ch.kernelTree.Rewind(height - 1); err != nil {
		t.Fatalf("rewind kernel tree: %v", err)
	}

	if err := engine.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	blk := &block.Block{Header: header, Body: body}
	if err := engine.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return blk
}

// mineBlock builds a coinbase-only block at the given timestamp, processes
// it onto the chain, and fails the test on any error.
func mineBlock(t *testing.T, ch *Chain, engine *consensus.PoW, seed byte, timestamp uint64) *block.Block {
	t.Helper()
	body := coinbaseBody(seed, ch.Height()+1, 1000)
	blk := buildBlock(t, ch, engine, body, timestamp)
	if err := ch.ProcessBlock(blk); err != nil {
		t.Fatalf("ProcessBlock height %d: %v", blk.Header.Height, err)
	}
	return blk
}
