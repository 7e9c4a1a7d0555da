// Package chain implements the blockchain state machine: block storage,
// the unspent-output set, the four commitment trees a header's roots are
// checked against, and the proof-of-work validation and reorg logic that
// ties them together.
package chain

import (
	"fmt"
	"sync"

	"github.com/andes-chain/basenode/config"
	"github.com/andes-chain/basenode/internal/consensus"
	"github.com/andes-chain/basenode/internal/mmr"
	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// Chain represents a blockchain instance with state, storage, and consensus.
type Chain struct {
	mu        sync.Mutex // Protects all state mutations (ProcessBlock, Reorg).
	ID        types.ChainID
	state     *State
	blocks    *BlockStore
	outputs   utxo.Set
	engine    consensus.Engine
	validator *consensus.Validator

	// Commitment trees. These are rebuilt from block store data on every
	// startup rather than persisted — they are a derived cache over the
	// canonical per-block records in blocks, the same way the UTXO set
	// itself can always be rebuilt from genesis.
	outputTree     *mmr.ChangeTracker
	rangeProofTree *mmr.ChangeTracker
	kernelTree     *mmr.ChangeTracker
	headerTree     *mmr.ChangeTracker

	blockReward     uint64 // Base subsidy in base units, before halving.
	halvingInterval uint64 // Blocks between reward halvings (0 = no halving).
	minFeeRate      uint64 // Minimum fee rate (base units per byte of SigningBytes).

	genesisHash types.Hash // Hash of the genesis block (immutable).

	// diffAdj, when set, supplies LWMA-based difficulty verification
	// instead of the engine's own ratio-based ExpectedDifficulty. It is
	// late-bound via SetDiffAdjManager after construction, breaking the
	// cycle where the manager needs a HeaderSource the chain only becomes
	// once it exists.
	diffAdj *consensus.DiffAdjManager

	orphans *OrphanPool

	revertedKernelHandler RevertedKernelHandler
}

// RevertedKernelHandler is called after a reorg with the excess signatures
// of kernels from reverted blocks that are not present in the new branch,
// so the mempool can reconsider them.
type RevertedKernelHandler func(sigs []types.Signature)

// New creates a new chain with the given components.
func New(id types.ChainID, db storage.DB, outputs utxo.Set, engine consensus.Engine) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if outputs == nil {
		return nil, fmt.Errorf("output set is nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("consensus engine is nil")
	}

	blocks := NewBlockStore(db)

	tipHash, height, err := blocks.GetTip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}
	cumDiff := blocks.GetCumulativeDifficulty()
	totalOffset := blocks.GetTotalKernelOffset()

	var genesisHash types.Hash
	if genBlk, err := blocks.GetBlockByHeight(0); err == nil {
		genesisHash = genBlk.Hash()
	}

	ch := &Chain{
		ID: id,
		state: &State{
			TipHash:              tipHash,
			Height:               height,
			CumulativeDifficulty: cumDiff,
			TotalKernelOffset:    totalOffset,
		},
		blocks:         blocks,
		outputs:        outputs,
		engine:         engine,
		validator:      consensus.NewValidator(engine),
		outputTree:     mmr.NewChangeTracker(0, 0),
		rangeProofTree: mmr.NewChangeTracker(0, 0),
		kernelTree:     mmr.NewChangeTracker(0, 0),
		headerTree:     mmr.NewChangeTracker(0, 0),
		genesisHash:    genesisHash,
		orphans:        NewOrphanPool(),
	}

	// The output set and all four trees are in-memory derived state, so
	// every restart past genesis needs a replay to reconstruct them —
	// there is no "clean shutdown" fast path that skips it.
	if !ch.state.IsGenesis() {
		if err := ch.RebuildState(); err != nil {
			return nil, fmt.Errorf("rebuild state: %w", err)
		}
	}

	return ch, nil
}

// InitFromGenesis initializes a fresh chain from genesis configuration.
// Returns an error if the chain already has blocks.
func (c *Chain) InitFromGenesis(gen *config.Genesis) error {
	if !c.state.IsGenesis() {
		return fmt.Errorf("chain already initialized at height %d", c.state.Height)
	}

	blk, err := CreateGenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("create genesis: %w", err)
	}

	// Genesis bypasses consensus validation (no PoW, no parent to check).
	if err := c.appendTrees(blk); err != nil {
		return fmt.Errorf("seed trees from genesis: %w", err)
	}
	if err := c.applyOutputs(blk, nil); err != nil {
		return fmt.Errorf("apply genesis outputs: %w", err)
	}

	hash := blk.Hash()
	if err := c.blocks.CommitBlock(blk, nil, blk.Header.Difficulty, blk.Header.TotalKernelOffset); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}

	c.state.TipHash = hash
	c.state.Height = 0
	c.state.TipTimestamp = blk.Header.Timestamp
	c.state.CumulativeDifficulty = blk.Header.Difficulty
	c.state.TotalKernelOffset = blk.Header.TotalKernelOffset
	c.genesisHash = hash

	c.blockReward = gen.Protocol.Consensus.BlockReward
	c.halvingInterval = gen.Protocol.Consensus.HalvingInterval
	c.minFeeRate = gen.Protocol.Consensus.MinFeeRate

	return nil
}

// SetConsensusRules configures consensus economic limits for runtime
// validation. Call this on startup for both fresh and resumed chains.
func (c *Chain) SetConsensusRules(r config.ConsensusRules) {
	c.blockReward = r.BlockReward
	c.halvingInterval = r.HalvingInterval
	c.minFeeRate = r.MinFeeRate
}

// SetDiffAdjManager late-binds an LWMA-backed difficulty manager into the
// chain and the PoW engine it wraps. Call once after New, passing a manager
// constructed with this same chain as its HeaderSource — the construction
// order (store, then manager, then this call) is what breaks the
// consensus-manager/diff-adjustment-manager cycle.
func (c *Chain) SetDiffAdjManager(m *consensus.DiffAdjManager) error {
	if err := m.Refresh(); err != nil {
		return fmt.Errorf("initial diffadj refresh: %w", err)
	}
	c.diffAdj = m
	if pow, ok := c.engine.(*consensus.PoW); ok {
		m.BindTo(pow)
	}
	return nil
}

// HeaderAt implements consensus.HeaderSource, giving a DiffAdjManager bound
// to this chain the three values it needs to rebuild its LWMA window: the
// block's timestamp, its own difficulty, and the cumulative difficulty up
// to and including it.
func (c *Chain) HeaderAt(height uint64) (timestamp int64, difficulty uint64, cumulativeDifficulty uint64, err error) {
	blk, err := c.blocks.GetBlockByHeight(height)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("header at height %d: %w", height, err)
	}
	var cum uint64
	for h := uint64(0); h <= height; h++ {
		b, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("cumulative difficulty at height %d: %w", h, err)
		}
		cum += b.Header.Difficulty
	}
	return int64(blk.Header.Timestamp), blk.Header.Difficulty, cum, nil
}

// SetRevertedKernelHandler sets the callback fired with the excess
// signatures of kernels from blocks reverted by a reorg.
func (c *Chain) SetRevertedKernelHandler(fn RevertedKernelHandler) {
	c.revertedKernelHandler = fn
}

// State returns a copy of the current chain state.
func (c *Chain) State() State {
	return *c.state
}

// GetBlock retrieves a block by its hash.
func (c *Chain) GetBlock(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlock(hash)
}

// GetBlockByHeight retrieves a block by its height.
func (c *Chain) GetBlockByHeight(height uint64) (*block.Block, error) {
	return c.blocks.GetBlockByHeight(height)
}

// Height returns the current chain height.
func (c *Chain) Height() uint64 {
	return c.state.Height
}

// TipHash returns the hash of the current chain tip.
func (c *Chain) TipHash() types.Hash {
	return c.state.TipHash
}

// getBlockTimestamp returns the timestamp of a block at the given height.
// Used for PoW difficulty verification.
func (c *Chain) getBlockTimestamp(height uint64) (uint64, error) {
	blk, err := c.blocks.GetBlockByHeight(height)
	if err != nil {
		return 0, err
	}
	return blk.Header.Timestamp, nil
}

// verifyDifficulty checks that a PoW block's stated difficulty matches the
// expected value computed from chain history. No-op for non-PoW engines.
func (c *Chain) verifyDifficulty(blk *block.Block) error {
	pow, ok := c.engine.(*consensus.PoW)
	if !ok {
		return nil
	}

	if c.diffAdj != nil {
		expected := c.diffAdj.DifficultyFn(blk.Header.Height)
		if blk.Header.Difficulty != expected {
			return fmt.Errorf("%w: height %d has difficulty %d, want %d (lwma)",
				consensus.ErrBadDifficulty, blk.Header.Height, blk.Header.Difficulty, expected)
		}
		return nil
	}

	var prevDifficulty uint64
	if blk.Header.Height > 1 {
		prevBlk, err := c.blocks.GetBlockByHeight(blk.Header.Height - 1)
		if err != nil {
			return fmt.Errorf("get prev block for difficulty: %w", err)
		}
		prevDifficulty = prevBlk.Header.Difficulty
	}

	return pow.VerifyDifficulty(blk.Header, prevDifficulty, c.getBlockTimestamp)
}

// isPoWEngine returns true if the chain uses proof-of-work consensus.
func (c *Chain) isPoWEngine() bool {
	_, ok := c.engine.(*consensus.PoW)
	return ok
}

// RebuildState clears the output set and all four commitment trees, then
// replays every block from genesis to the current tip to reconstruct them.
// Used both on startup (trees are never persisted) and to recover from a
// crash mid-reorg, where the output set may be inconsistent.
func (c *Chain) RebuildState() error {
	store, ok := c.outputs.(*utxo.Store)
	if !ok {
		return fmt.Errorf("output set does not support ClearAll (not *utxo.Store)")
	}
	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("clear output set: %w", err)
	}

	c.outputTree = mmr.NewChangeTracker(0, 0)
	c.rangeProofTree = mmr.NewChangeTracker(0, 0)
	c.kernelTree = mmr.NewChangeTracker(0, 0)
	c.headerTree = mmr.NewChangeTracker(0, 0)

	for h := uint64(0); h <= c.state.Height; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load block at height %d: %w", h, err)
		}
		if err := c.appendTrees(blk); err != nil {
			return fmt.Errorf("replay trees at height %d: %w", h, err)
		}
		if err := c.applyOutputs(blk, nil); err != nil {
			return fmt.Errorf("replay outputs at height %d: %w", h, err)
		}
	}

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}
	return nil
}

// GetKernel looks up a confirmed kernel by its excess signature via the
// kernel index, returning the kernel and the hash of the block it is in.
func (c *Chain) GetKernel(sig types.Signature) (*tx.TransactionKernel, types.Hash, error) {
	_, blockHash, err := c.blocks.GetKernelLocation(sig)
	if err != nil {
		return nil, types.Hash{}, err
	}
	blk, err := c.blocks.GetBlock(blockHash)
	if err != nil {
		return nil, types.Hash{}, fmt.Errorf("load block for kernel: %w", err)
	}
	for i := range blk.Body.Kernels {
		if blk.Body.Kernels[i].ExcessSig == sig {
			return &blk.Body.Kernels[i], blockHash, nil
		}
	}
	return nil, types.Hash{}, fmt.Errorf("kernel %s not found in block %s (index corrupt)", sig, blockHash)
}

// computeBlockReward returns the coinbase subsidy for the given height,
// applying the configured halving schedule.
func (c *Chain) computeBlockReward(height uint64) uint64 {
	if c.halvingInterval == 0 {
		return c.blockReward
	}
	halvings := height / c.halvingInterval
	if halvings >= 64 {
		return 0
	}
	return c.blockReward >> halvings
}
