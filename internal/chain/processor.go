package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/andes-chain/basenode/pkg/block"
)

// Block processing errors.
var (
	ErrBlockKnown            = errors.New("block already known")
	ErrPrevNotFound          = errors.New("previous block not found")
	ErrBadHeight             = errors.New("block height does not follow parent")
	ErrBadPrevHash           = errors.New("prev_hash does not match current tip")
	ErrInputNotFound         = errors.New("input spends a commitment that is not an unspent output")
	ErrInputFeatureMismatch  = errors.New("input features do not match the output it spends")
	ErrOutputNotMature       = errors.New("input spends an output that has not reached its maturity height")
	ErrTimestampTooFuture    = errors.New("block timestamp too far in the future")
	ErrTimestampBeforeParent = errors.New("block timestamp before parent")
)

// ProcessBlock validates a block and applies it to the chain. It checks
// structural validity, consensus rules, and unspent-output state, then
// updates the output set, the commitment trees, the block store, and the
// chain tip. If the block extends a fork that is heavier than the current
// chain, a reorg is triggered automatically.
func (c *Chain) ProcessBlock(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("structural validation: %w", err)
	}

	hash := blk.Hash()

	known, err := c.blocks.HasBlock(hash)
	if err != nil {
		return fmt.Errorf("check block: %w", err)
	}
	if known {
		return ErrBlockKnown
	}

	parentErr := c.checkParentLink(blk)
	if parentErr != nil && !errors.Is(parentErr, ErrForkDetected) {
		return parentErr
	}

	if !errors.Is(parentErr, ErrForkDetected) {
		if err := c.verifyDifficulty(blk); err != nil {
			return err
		}
	}

	if err := c.validator.ValidateBlock(blk); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	maxTime := uint64(time.Now().Add(2 * time.Minute).Unix())
	if blk.Header.Timestamp > maxTime {
		return fmt.Errorf("%w: block timestamp %d exceeds max %d", ErrTimestampTooFuture, blk.Header.Timestamp, maxTime)
	}
	if blk.Header.Height > 0 {
		if parentBlk, err := c.blocks.GetBlock(blk.Header.PrevHash); err == nil && blk.Header.Timestamp < parentBlk.Header.Timestamp {
			return fmt.Errorf("%w: block timestamp %d < parent timestamp %d",
				ErrTimestampBeforeParent, blk.Header.Timestamp, parentBlk.Header.Timestamp)
		}
	}

	// Fork detected: store the block and decide whether to reorg.
	if errors.Is(parentErr, ErrForkDetected) {
		if err := c.blocks.StoreBlock(blk); err != nil {
			return fmt.Errorf("store fork block: %w", err)
		}
		shouldAttempt := blk.Header.Height >= c.state.Height || c.isPoWEngine()
		if shouldAttempt {
			if err := c.Reorg(hash); err != nil {
				return fmt.Errorf("reorg: %w", err)
			}
		}
		return nil
	}

	// Fast path: block extends current tip.
	if err := c.validateBlockState(blk); err != nil {
		return err
	}
	if err := c.checkHeaderTreeRoot(blk); err != nil {
		return err
	}
	if err := c.appendAndVerifyBodyTrees(blk); err != nil {
		return err
	}

	undo, err := c.applyOutputsWithUndo(blk)
	if err != nil {
		return fmt.Errorf("apply outputs: %w", err)
	}
	c.appendHeaderTree(blk)

	undoBytes, err := encodeUndo(undo)
	if err != nil {
		return fmt.Errorf("marshal undo: %w", err)
	}

	newCumDiff := c.state.CumulativeDifficulty + blk.Header.Difficulty
	if err := c.blocks.CommitBlock(blk, undoBytes, newCumDiff, blk.Header.TotalKernelOffset); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}

	c.state.TipHash = hash
	c.state.Height = blk.Header.Height
	c.state.TipTimestamp = blk.Header.Timestamp
	c.state.CumulativeDifficulty = newCumDiff
	c.state.TotalKernelOffset = blk.Header.TotalKernelOffset

	if c.diffAdj != nil {
		// Best-effort: a Push failure (e.g. non-increasing cumulative
		// difficulty, which verifyDifficulty should already have ruled
		// out) leaves the window stale until the next Refresh rather than
		// failing an already-committed block.
		_ = c.diffAdj.Push(int64(blk.Header.Timestamp), newCumDiff)
	}

	return nil
}

// validateBlockState checks unspent-output-dependent rules: every input
// must spend a currently-unspent, mature output with matching features.
// This does not check cryptographic balance, signatures, or range proofs,
// and neither does any validator the chain runs.
func (c *Chain) validateBlockState(blk *block.Block) error {
	for _, in := range blk.Body.Inputs {
		out, err := c.outputs.Get(in.Commitment)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInputNotFound, in.Commitment)
		}
		if out.Features != in.Features {
			return fmt.Errorf("%w: %s", ErrInputFeatureMismatch, in.Commitment)
		}
		if blk.Header.Height < out.Maturity {
			return fmt.Errorf("%w: commitment %s matures at %d, block height %d",
				ErrOutputNotMature, in.Commitment, out.Maturity, blk.Header.Height)
		}
	}
	return nil
}

// checkParentLink verifies that the block's PrevHash and Height are
// consistent with the current chain tip.
func (c *Chain) checkParentLink(blk *block.Block) error {
	if c.state.IsGenesis() {
		if blk.Header.Height != 0 {
			return fmt.Errorf("%w: genesis must be height 0, got %d", ErrBadHeight, blk.Header.Height)
		}
		if !blk.Header.PrevHash.IsZero() {
			return fmt.Errorf("%w: genesis must have zero prev_hash", ErrBadPrevHash)
		}
		return nil
	}

	if blk.Header.PrevHash == c.state.TipHash {
		expectedHeight := c.state.Height + 1
		if blk.Header.Height != expectedHeight {
			return fmt.Errorf("%w: want %d, got %d", ErrBadHeight, expectedHeight, blk.Header.Height)
		}
		return nil
	}

	parentKnown, err := c.blocks.HasBlock(blk.Header.PrevHash)
	if err != nil {
		return fmt.Errorf("check parent: %w", err)
	}
	if parentKnown {
		parentBlk, err := c.blocks.GetBlock(blk.Header.PrevHash)
		if err != nil {
			return fmt.Errorf("load parent block: %w", err)
		}
		expectedHeight := parentBlk.Header.Height + 1
		if blk.Header.Height != expectedHeight {
			return fmt.Errorf("%w: parent height %d implies %d, got %d",
				ErrBadHeight, parentBlk.Header.Height, expectedHeight, blk.Header.Height)
		}
		return fmt.Errorf("%w: block %d forks from %s", ErrForkDetected, blk.Header.Height, blk.Header.PrevHash)
	}
	return ErrPrevNotFound
}
