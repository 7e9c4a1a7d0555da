package mmr

import (
	"fmt"

	"github.com/andes-chain/basenode/pkg/types"
)

// DefaultMinRetainedHistory and DefaultMaxRetainedHistory bound how many
// recent block heights' MMR checkpoints a ChangeTracker keeps in memory.
// Pruning never drops below the minimum and never lets the window grow
// past the maximum; a rewind target older than the oldest retained
// checkpoint fails with ErrBeyondPrunedHorizon, matching the chain
// storage layer's own pruned-horizon behavior for UTXO data.
const (
	DefaultMinRetainedHistory = 900
	DefaultMaxRetainedHistory = 1000
)

// ChangeTracker wraps an MMR with a bounded-history log of per-height
// snapshots, letting a reorg rewind the tree back to any height still
// within the retained window instead of replaying every leaf from genesis.
// It plays the same role for the output, range-proof, kernel and header
// trees that per-block undo data plays for the UTXO set: a cheap way to
// back out of a block without a full rebuild.
type ChangeTracker struct {
	tree *MMR

	minHistory uint64
	maxHistory uint64

	heights     []uint64 // ascending, oldest first
	checkpoints map[uint64]snapshot
}

// NewChangeTracker creates a tracker retaining between minHistory and
// maxHistory checkpoints. Both default to the package constants when 0.
func NewChangeTracker(minHistory, maxHistory uint64) *ChangeTracker {
	if minHistory == 0 {
		minHistory = DefaultMinRetainedHistory
	}
	if maxHistory == 0 {
		maxHistory = DefaultMaxRetainedHistory
	}
	if maxHistory < minHistory {
		maxHistory = minHistory
	}
	return &ChangeTracker{
		tree:        New(),
		minHistory:  minHistory,
		maxHistory:  maxHistory,
		checkpoints: make(map[uint64]snapshot),
	}
}

// Root returns the tree's current root hash.
func (c *ChangeTracker) Root() types.Hash {
	return c.tree.Root()
}

// Size returns the tree's current leaf count.
func (c *ChangeTracker) Size() uint64 {
	return c.tree.Size()
}

// Append adds a leaf at the given block height and records a checkpoint of
// the tree's state after the append, pruning checkpoints older than
// maxHistory. height must be strictly increasing across calls.
func (c *ChangeTracker) Append(height uint64, leaf types.Hash) uint64 {
	pos := c.tree.Append(leaf)
	c.checkpoints[height] = c.tree.snapshotState()
	c.heights = append(c.heights, height)
	c.prune()
	return pos
}

// prune drops the oldest checkpoints once the window exceeds maxHistory,
// always leaving at least minHistory behind.
func (c *ChangeTracker) prune() {
	for uint64(len(c.heights)) > c.maxHistory {
		oldest := c.heights[0]
		c.heights = c.heights[1:]
		delete(c.checkpoints, oldest)
	}
}

// Rewind restores the tree to its state immediately after the leaf at
// height was appended, discarding every later checkpoint. Returns
// ErrBeyondPrunedHorizon if height's checkpoint has already been pruned.
func (c *ChangeTracker) Rewind(height uint64) error {
	snap, ok := c.checkpoints[height]
	if !ok {
		return fmt.Errorf("%w: height %d", ErrBeyondPrunedHorizon, height)
	}
	c.tree.restore(snap)

	kept := c.heights[:0:0]
	for _, h := range c.heights {
		if h <= height {
			kept = append(kept, h)
		} else {
			delete(c.checkpoints, h)
		}
	}
	c.heights = kept
	return nil
}

// OldestRetainedHeight returns the oldest height whose checkpoint is still
// available for rewind, and false if the tracker has no checkpoints yet.
func (c *ChangeTracker) OldestRetainedHeight() (uint64, bool) {
	if len(c.heights) == 0 {
		return 0, false
	}
	return c.heights[0], true
}
