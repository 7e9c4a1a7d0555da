package chain

import (
	"encoding/json"
	"fmt"

	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/types"
)

// UndoData stores the information needed to revert a block's effect on the
// output set: every output it deleted (to be restored) and the commitments
// of every output it created (to be deleted), plus the excess signatures of
// its kernels so a reorg can hand reverted transactions back to the caller.
type UndoData struct {
	SpentOutputs       []utxo.Output      `json:"spent_outputs"`
	CreatedCommitments []types.Commitment `json:"created_commitments"`
	KernelSigs         []types.Signature  `json:"kernel_sigs"`
}

// ErrForkDetected indicates a valid block whose parent is known but is not the
// current tip. The caller should decide whether to reorg.
var ErrForkDetected = fmt.Errorf("fork detected")

// ErrReorgTooDeep is returned when a reorg exceeds MaxReorgDepth.
var ErrReorgTooDeep = fmt.Errorf("reorg too deep")

// ErrGenesisReorg is returned when a reorg would replace the genesis block.
var ErrGenesisReorg = fmt.Errorf("reorg would replace genesis block")

// MaxReorgDepth is the maximum number of blocks that can be reverted in a reorg.
const MaxReorgDepth = 1000

// encodeUndo marshals undo data, preserving nil (genesis and rebuilt blocks
// pass no undo data at all) as an empty result rather than the literal
// string "null".
func encodeUndo(undo *UndoData) ([]byte, error) {
	if undo == nil {
		return nil, nil
	}
	return json.Marshal(undo)
}

func decodeUndo(data []byte) (*UndoData, error) {
	if len(data) == 0 {
		return &UndoData{}, nil
	}
	var undo UndoData
	if err := json.Unmarshal(data, &undo); err != nil {
		return nil, fmt.Errorf("unmarshal undo: %w", err)
	}
	return &undo, nil
}

// applyOutputs applies a block's inputs and outputs to the output set:
// every input's commitment is deleted, every output is inserted. If undo is
// non-nil, the outputs deleted and created are recorded into it so the
// change can be reverted later; genesis seeding and full-chain replay pass
// a nil undo since there is nothing to revert back past them.
func (c *Chain) applyOutputs(blk *block.Block, undo *UndoData) error {
	for _, in := range blk.Body.Inputs {
		if undo != nil {
			spent, err := c.outputs.Get(in.Commitment)
			if err != nil {
				return fmt.Errorf("get spent output %s: %w", in.Commitment, err)
			}
			undo.SpentOutputs = append(undo.SpentOutputs, *spent)
		}
		if err := c.outputs.Delete(in.Commitment); err != nil {
			return fmt.Errorf("delete spent output %s: %w", in.Commitment, err)
		}
	}

	height := blk.Header.Height
	for _, out := range blk.Body.Outputs {
		o := &utxo.Output{
			Commitment: out.Commitment,
			Features:   out.Features,
			Maturity:   out.Maturity,
			Height:     height,
		}
		if err := c.outputs.Put(o); err != nil {
			return fmt.Errorf("put output %s: %w", out.Commitment, err)
		}
		if undo != nil {
			undo.CreatedCommitments = append(undo.CreatedCommitments, out.Commitment)
		}
	}

	if undo != nil {
		for _, k := range blk.Body.Kernels {
			undo.KernelSigs = append(undo.KernelSigs, k.ExcessSig)
		}
	}
	return nil
}

// applyOutputsWithUndo applies a block's inputs and outputs to the output
// set and returns the undo data needed to revert it.
func (c *Chain) applyOutputsWithUndo(blk *block.Block) (*UndoData, error) {
	undo := &UndoData{}
	if err := c.applyOutputs(blk, undo); err != nil {
		return nil, err
	}
	return undo, nil
}

// revertBlock undoes a block's output-set changes using stored undo data:
// created outputs are deleted and spent outputs are restored.
func (c *Chain) revertBlock(undo *UndoData) error {
	for i := len(undo.CreatedCommitments) - 1; i >= 0; i-- {
		if err := c.outputs.Delete(undo.CreatedCommitments[i]); err != nil {
			return fmt.Errorf("delete created output %s: %w", undo.CreatedCommitments[i], err)
		}
	}
	for i := range undo.SpentOutputs {
		if err := c.outputs.Put(&undo.SpentOutputs[i]); err != nil {
			return fmt.Errorf("restore output %s: %w", undo.SpentOutputs[i].Commitment, err)
		}
	}
	return nil
}

// Reorg switches the chain from the current tip to the new tip. It finds
// the common ancestor, reverts old blocks back to it, and replays the new
// branch with full validation. The reorg only proceeds if the new branch
// carries more cumulative difficulty than the branch it replaces.
func (c *Chain) Reorg(newTipHash types.Hash) error {
	newBranch, err := c.collectBranch(newTipHash)
	if err != nil {
		return fmt.Errorf("collect new branch: %w", err)
	}
	if len(newBranch) == 0 {
		return fmt.Errorf("empty new branch")
	}

	forkHeight := newBranch[0].Header.Height - 1
	oldHeight := c.state.Height

	var newBranchWork, oldBranchWork uint64
	for _, blk := range newBranch {
		newBranchWork += blk.Header.Difficulty
	}
	for h := forkHeight + 1; h <= oldHeight; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load old block for work comparison at height %d: %w", h, err)
		}
		oldBranchWork += blk.Header.Difficulty
	}
	if newBranchWork <= oldBranchWork {
		return nil // New branch doesn't have more work — keep current chain.
	}

	if err := c.blocks.PutReorgCheckpoint(forkHeight); err != nil {
		return fmt.Errorf("write reorg checkpoint: %w", err)
	}

	var revertedSigs []types.Signature

	// Revert old blocks from the current tip down to the fork point.
	for h := oldHeight; h > forkHeight; h-- {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load old block at height %d: %w", h, err)
		}
		bHash := blk.Hash()
		undoBytes, err := c.blocks.GetUndo(bHash)
		if err != nil {
			// Undo data missing — fall back to a full rebuild from genesis.
			return c.rebuildReorg(newBranch, forkHeight)
		}
		undo, err := decodeUndo(undoBytes)
		if err != nil {
			return fmt.Errorf("decode undo for block %s: %w", bHash, err)
		}
		if err := c.revertBlock(undo); err != nil {
			return fmt.Errorf("revert block %s: %w", bHash, err)
		}

		for _, k := range blk.Body.Kernels {
			if !k.IsCoinbase() {
				revertedSigs = append(revertedSigs, k.ExcessSig)
			}
		}

		c.state.CumulativeDifficulty -= blk.Header.Difficulty

		if err := c.blocks.DeleteUndo(bHash); err != nil {
			return fmt.Errorf("delete undo for block %s: %w", bHash, err)
		}
	}

	if err := c.outputTree.Rewind(forkHeight); err != nil {
		return fmt.Errorf("rewind output tree: %w", err)
	}
	if err := c.rangeProofTree.Rewind(forkHeight); err != nil {
		return fmt.Errorf("rewind range-proof tree: %w", err)
	}
	if err := c.kernelTree.Rewind(forkHeight); err != nil {
		return fmt.Errorf("rewind kernel tree: %w", err)
	}
	if err := c.headerTree.Rewind(forkHeight); err != nil {
		return fmt.Errorf("rewind header tree: %w", err)
	}

	// Replay new branch blocks with full validation.
	for _, blk := range newBranch {
		if err := c.validator.ValidateBlock(blk); err != nil {
			return fmt.Errorf("validate replay block at height %d: %w", blk.Header.Height, err)
		}
		if err := c.verifyDifficulty(blk); err != nil {
			return fmt.Errorf("difficulty check replay block at height %d: %w", blk.Header.Height, err)
		}
		if err := c.validateBlockState(blk); err != nil {
			return fmt.Errorf("state validation replay block at height %d: %w", blk.Header.Height, err)
		}
		if err := c.checkHeaderTreeRoot(blk); err != nil {
			return fmt.Errorf("header root replay block at height %d: %w", blk.Header.Height, err)
		}
		if err := c.appendAndVerifyBodyTrees(blk); err != nil {
			return fmt.Errorf("body trees replay block at height %d: %w", blk.Header.Height, err)
		}

		undo, err := c.applyOutputsWithUndo(blk)
		if err != nil {
			return fmt.Errorf("apply new block at height %d: %w", blk.Header.Height, err)
		}
		c.appendHeaderTree(blk)

		undoBytes, err := encodeUndo(undo)
		if err != nil {
			return fmt.Errorf("marshal undo: %w", err)
		}

		newCumDiff := c.state.CumulativeDifficulty + blk.Header.Difficulty
		if err := c.blocks.CommitBlock(blk, undoBytes, newCumDiff, blk.Header.TotalKernelOffset); err != nil {
			return fmt.Errorf("commit replay block at height %d: %w", blk.Header.Height, err)
		}

		c.state.CumulativeDifficulty = newCumDiff
		c.state.TotalKernelOffset = blk.Header.TotalKernelOffset
	}

	tip := newBranch[len(newBranch)-1]
	c.state.TipHash = tip.Hash()
	c.state.Height = tip.Header.Height
	c.state.TipTimestamp = tip.Header.Timestamp

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}

	if c.diffAdj != nil {
		// A reorg can remove and add blocks in ways Push's append-only
		// model can't express, so the window is rebuilt from the new
		// chain rather than patched incrementally.
		if err := c.diffAdj.Refresh(); err != nil {
			return fmt.Errorf("refresh diffadj after reorg: %w", err)
		}
	}

	if c.revertedKernelHandler != nil && len(revertedSigs) > 0 {
		newBranchSigs := make(map[types.Signature]bool)
		for _, blk := range newBranch {
			for _, k := range blk.Body.Kernels {
				newBranchSigs[k.ExcessSig] = true
			}
		}
		var toReturn []types.Signature
		for _, sig := range revertedSigs {
			if !newBranchSigs[sig] {
				toReturn = append(toReturn, sig)
			}
		}
		if len(toReturn) > 0 {
			c.revertedKernelHandler(toReturn)
		}
	}

	return nil
}

// collectBranch collects blocks from the given hash back to the fork point
// (common ancestor with the current main chain). Returns blocks in
// ascending height order (fork+1 ... newTip).
func (c *Chain) collectBranch(tipHash types.Hash) ([]*block.Block, error) {
	var branch []*block.Block
	hash := tipHash

	for {
		blk, err := c.blocks.GetBlock(hash)
		if err != nil {
			return nil, fmt.Errorf("load block %s: %w", hash, err)
		}
		branch = append(branch, blk)

		if len(branch) > MaxReorgDepth {
			return nil, fmt.Errorf("%w: branch exceeds %d blocks", ErrReorgTooDeep, MaxReorgDepth)
		}

		if blk.Header.Height == 0 {
			if !c.genesisHash.IsZero() && blk.Hash() != c.genesisHash {
				return nil, ErrGenesisReorg
			}
			break
		}
		parentHeight := blk.Header.Height - 1
		mainBlock, err := c.blocks.GetBlockByHeight(parentHeight)
		if err == nil && mainBlock.Hash() == blk.Header.PrevHash {
			break // Common ancestor found.
		}
		hash = blk.Header.PrevHash
	}

	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}

	return branch, nil
}

// rebuildReorg handles a reorg when undo data is missing for an old-branch
// block. Instead of reverting individual blocks, it indexes the new branch
// by height, clears the output set and all four commitment trees, and
// replays every block from genesis through the new tip. Slower than
// undo-based reorg but always correct, since it never depends on a
// checkpoint surviving a crash.
func (c *Chain) rebuildReorg(newBranch []*block.Block, forkHeight uint64) error {
	newTip := newBranch[len(newBranch)-1]

	for _, blk := range newBranch {
		if err := c.blocks.PutBlock(blk); err != nil {
			return fmt.Errorf("rebuild reorg: index block at height %d: %w", blk.Header.Height, err)
		}
	}

	// RebuildState clears the output set and trees, then replays every
	// block the store now has from height 0 to the (already-updated)
	// height index — but the persisted tip/height/cumdiff state keys
	// still point at the old branch, so set them to the new tip first.
	if err := c.blocks.SetTip(newTip.Hash(), newTip.Header.Height); err != nil {
		return fmt.Errorf("rebuild reorg: set tip: %w", err)
	}
	c.state.Height = newTip.Header.Height

	if err := c.RebuildState(); err != nil {
		return fmt.Errorf("rebuild reorg: rebuild state: %w", err)
	}

	var cumDiff uint64
	for h := uint64(0); h <= newTip.Header.Height; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("rebuild reorg: load block at height %d: %w", h, err)
		}
		cumDiff += blk.Header.Difficulty
	}
	if err := c.blocks.SetCumulativeDifficulty(cumDiff); err != nil {
		return fmt.Errorf("rebuild reorg: set cumulative difficulty: %w", err)
	}
	if err := c.blocks.SetTotalKernelOffset(newTip.Header.TotalKernelOffset); err != nil {
		return fmt.Errorf("rebuild reorg: set total offset: %w", err)
	}

	c.state.TipHash = newTip.Hash()
	c.state.TipTimestamp = newTip.Header.Timestamp
	c.state.CumulativeDifficulty = cumDiff
	c.state.TotalKernelOffset = newTip.Header.TotalKernelOffset

	if c.diffAdj != nil {
		if err := c.diffAdj.Refresh(); err != nil {
			return fmt.Errorf("rebuild reorg: refresh diffadj: %w", err)
		}
	}

	return nil
}
