package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/types"
)

// BlockAddResult classifies the outcome of AddBlock.
type BlockAddResult int

const (
	// AddResultOk means the block was validated and appended to the tip.
	AddResultOk BlockAddResult = iota
	// AddResultOrphan means the block's parent is not yet known; it has
	// been parked and will be retried automatically once its parent
	// arrives.
	AddResultOrphan
	// AddResultChainReorg means the block (and, transitively, any orphans
	// it connected) triggered a reorg onto a heavier branch.
	AddResultChainReorg
	// AddResultBlockExists means the block (by hash) is already known.
	AddResultBlockExists
)

func (r BlockAddResult) String() string {
	switch r {
	case AddResultOk:
		return "Ok"
	case AddResultOrphan:
		return "OrphanBlock"
	case AddResultChainReorg:
		return "ChainReorg"
	case AddResultBlockExists:
		return "BlockExists"
	default:
		return "Unknown"
	}
}

// maxOrphansPerParent bounds how many candidate blocks can be parked behind
// a single unknown parent hash, so a flood of junk blocks claiming the same
// missing ancestor can't grow the pool unboundedly.
const maxOrphansPerParent = 16

// OrphanPool parks blocks whose parent is not yet known to chain storage,
// keyed by the missing parent's hash, so that once a block with that hash
// is accepted the parked children can be retried without the caller having
// to resubmit them.
type OrphanPool struct {
	mu      sync.Mutex
	byHash  map[types.Hash]*block.Block            // orphan's own hash -> block
	parents map[types.Hash]map[types.Hash]struct{} // missing parent hash -> set of orphan hashes waiting on it
}

// NewOrphanPool creates an empty orphan pool.
func NewOrphanPool() *OrphanPool {
	return &OrphanPool{
		byHash:  make(map[types.Hash]*block.Block),
		parents: make(map[types.Hash]map[types.Hash]struct{}),
	}
}

// Add parks blk under its (currently unknown) parent hash. Returns false if
// the parent already has maxOrphansPerParent candidates parked and blk was
// dropped, or if blk is already parked.
func (p *OrphanPool) Add(blk *block.Block) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := blk.Hash()
	if _, exists := p.byHash[hash]; exists {
		return false
	}
	parent := blk.Header.PrevHash
	waiting := p.parents[parent]
	if len(waiting) >= maxOrphansPerParent {
		return false
	}
	if waiting == nil {
		waiting = make(map[types.Hash]struct{})
		p.parents[parent] = waiting
	}
	waiting[hash] = struct{}{}
	p.byHash[hash] = blk
	return true
}

// TakeByParent removes and returns every orphan waiting on parentHash, in no
// particular order. The caller is expected to attempt each one in turn,
// which may itself surface further orphans (a chain of several unknown
// blocks connecting at once).
func (p *OrphanPool) TakeByParent(parentHash types.Hash) []*block.Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	waiting, ok := p.parents[parentHash]
	if !ok {
		return nil
	}
	out := make([]*block.Block, 0, len(waiting))
	for hash := range waiting {
		out = append(out, p.byHash[hash])
		delete(p.byHash, hash)
	}
	delete(p.parents, parentHash)
	return out
}

// Len returns the total number of parked orphans.
func (p *OrphanPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// Has reports whether hash is currently parked.
func (p *OrphanPool) Has(hash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byHash[hash]
	return ok
}

// AddBlock is the spec-level entry point for block ingest: it attempts
// ProcessBlock, translating "parent unknown" into parking the block in the
// orphan pool rather than surfacing a bare error, and on success recursively
// connects any orphans that were waiting on this block's hash. The fork/
// reorg decision itself still happens inside ProcessBlock (via Reorg); this
// wrapper only reports which of the four spec-level outcomes occurred.
func (c *Chain) AddBlock(blk *block.Block) (BlockAddResult, error) {
	hash := blk.Hash()
	known, err := c.blocks.HasBlock(hash)
	if err != nil {
		return AddResultBlockExists, fmt.Errorf("check block: %w", err)
	}
	if known {
		return AddResultBlockExists, nil
	}

	heightBefore := c.state.Height
	tipBefore := c.state.TipHash

	err = c.ProcessBlock(blk)
	if err != nil {
		if errors.Is(err, ErrPrevNotFound) {
			c.orphans.Add(blk)
			return AddResultOrphan, nil
		}
		return AddResultBlockExists, err
	}

	result := AddResultOk
	if c.state.Height != heightBefore+1 || (heightBefore > 0 && blk.Header.PrevHash != tipBefore) {
		result = AddResultChainReorg
	}

	c.connectOrphans(hash)
	return result, nil
}

// connectOrphans retries every orphan parked behind parentHash, and
// recursively every orphan those connections unblock in turn, so a run of
// N sequentially-arriving-out-of-order blocks all connect in one call.
func (c *Chain) connectOrphans(parentHash types.Hash) {
	queue := c.orphans.TakeByParent(parentHash)
	for len(queue) > 0 {
		blk := queue[0]
		queue = queue[1:]

		if err := c.ProcessBlock(blk); err != nil {
			continue // still invalid, or its parent moved on without it; drop.
		}
		queue = append(queue, c.orphans.TakeByParent(blk.Hash())...)
	}
}

// OrphanCount returns the number of blocks currently parked awaiting their
// parent.
func (c *Chain) OrphanCount() int {
	return c.orphans.Len()
}
