package chain

import (
	"fmt"

	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// rangeProofLeaf is the leaf value committed to the range-proof MMR for a
// given output. The range proof itself is bulky, so only its hash is
// committed; an empty proof still produces a deterministic leaf.
func rangeProofLeaf(out tx.TransactionOutput) types.Hash {
	return crypto.Hash(out.RangeProof)
}

// appendTrees appends a block's outputs, range proofs and kernels into the
// chain's three body trees, and the block's hash into the header tree, at
// the block's height, without checking the
// result against the header's stated roots. Used for genesis (which
// bypasses consensus validation) and for replay during RebuildState, where
// every block has already been accepted once.
func (c *Chain) appendTrees(blk *block.Block) error {
	h := blk.Header.Height
	for _, out := range blk.Body.Outputs {
		c.outputTree.Append(h, out.Hash())
		c.rangeProofTree.Append(h, rangeProofLeaf(out))
	}
	for _, k := range blk.Body.Kernels {
		c.kernelTree.Append(h, k.Hash())
	}
	c.headerTree.Append(h, blk.Hash())
	return nil
}

// Errors returned while checking a block's header against the chain's
// commitment trees.
var (
	ErrOutputRootMismatch     = fmt.Errorf("output MMR root mismatch")
	ErrRangeProofRootMismatch = fmt.Errorf("range-proof MMR root mismatch")
	ErrKernelRootMismatch     = fmt.Errorf("kernel MMR root mismatch")
	ErrHeaderRootMismatch     = fmt.Errorf("header MMR root mismatch")
)

// checkHeaderTreeRoot verifies the block's HeaderMMRRoot against the tree
// of all prior accepted headers, before this block's own header is
// appended to it.
func (c *Chain) checkHeaderTreeRoot(blk *block.Block) error {
	if got, want := c.headerTree.Root(), blk.Header.HeaderMMRRoot; got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrHeaderRootMismatch, got, want)
	}
	return nil
}

// appendAndVerifyBodyTrees appends a block's outputs, range proofs and
// kernels into the chain's trees, then checks the resulting roots against
// the header's stated roots. On mismatch it rewinds all three trees back
// to their state before this call and returns an error.
func (c *Chain) appendAndVerifyBodyTrees(blk *block.Block) error {
	h := blk.Header.Height
	var prevHeight uint64
	hasPrev := h > 0
	if hasPrev {
		prevHeight = h - 1
	}

	for _, out := range blk.Body.Outputs {
		c.outputTree.Append(h, out.Hash())
		c.rangeProofTree.Append(h, rangeProofLeaf(out))
	}
	for _, k := range blk.Body.Kernels {
		c.kernelTree.Append(h, k.Hash())
	}

	mismatch := func() error {
		if got, want := c.outputTree.Root(), blk.Header.OutputMMRRoot; got != want {
			return fmt.Errorf("%w: got %s, want %s", ErrOutputRootMismatch, got, want)
		}
		if got, want := c.rangeProofTree.Root(), blk.Header.RangeProofMMRRoot; got != want {
			return fmt.Errorf("%w: got %s, want %s", ErrRangeProofRootMismatch, got, want)
		}
		if got, want := c.kernelTree.Root(), blk.Header.KernelMMRRoot; got != want {
			return fmt.Errorf("%w: got %s, want %s", ErrKernelRootMismatch, got, want)
		}
		return nil
	}()

	if mismatch != nil {
		if hasPrev {
			c.outputTree.Rewind(prevHeight)
			c.rangeProofTree.Rewind(prevHeight)
			c.kernelTree.Rewind(prevHeight)
		}
		return mismatch
	}
	return nil
}

// appendHeaderTree records this block's header hash into the header tree,
// to be committed to by the next block's HeaderMMRRoot.
func (c *Chain) appendHeaderTree(blk *block.Block) {
	c.headerTree.Append(blk.Header.Height, blk.Hash())
}
