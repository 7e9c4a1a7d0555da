package mempool

import (
	"sort"
	"sync"

	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// PendingPool holds transactions that cannot yet enter a block: their lock
// height or the maturity of an input they spend is still in the future.
// Like the unconfirmed pool it evicts by fee/weight priority when full, but
// its second ordered index is by unlock height rather than signature, so a
// published block can cheaply find everything it has just unlocked.
type PendingPool struct {
	mu       sync.RWMutex
	capacity int
	byExcess map[types.Signature]*txEntry
	// priorityIdx is sorted ascending by priority for eviction.
	priorityIdx []types.Signature
	// unlockIdx is sorted ascending by unlockHeight.
	unlockIdx []types.Signature
}

// NewPendingPool creates a pending pool holding at most capacity
// transactions.
func NewPendingPool(capacity int) *PendingPool {
	return &PendingPool{
		capacity: capacity,
		byExcess: make(map[types.Signature]*txEntry),
	}
}

// Insert adds t with the given unlock height — the larger of its kernels'
// lock height and the maturity of the outputs its inputs spend, as computed
// by the caller from the current UTXO set.
func (p *PendingPool) Insert(t *tx.Transaction, unlockHeight uint64) error {
	sig, err := primarySig(t)
	if err != nil {
		return err
	}
	e := newEntry(t, sig, unlockHeight)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byExcess[sig]; exists {
		return ErrAlreadyExists
	}
	if len(p.byExcess) >= p.capacity {
		minSig := p.priorityIdx[0]
		if !higherPriority(e, p.byExcess[minSig]) {
			return ErrPoolFull
		}
		p.removeLocked(minSig)
	}
	p.insertLocked(e)
	return nil
}

func (p *PendingPool) insertLocked(e *txEntry) {
	p.byExcess[e.sig] = e
	p.priorityIdx = append(p.priorityIdx, e.sig)
	sort.Slice(p.priorityIdx, func(i, j int) bool {
		return lessPriority(p.byExcess[p.priorityIdx[i]], p.byExcess[p.priorityIdx[j]])
	})
	p.unlockIdx = append(p.unlockIdx, e.sig)
	sort.Slice(p.unlockIdx, func(i, j int) bool {
		return p.byExcess[p.unlockIdx[i]].unlockHeight < p.byExcess[p.unlockIdx[j]].unlockHeight
	})
}

func (p *PendingPool) removeLocked(sig types.Signature) {
	if _, ok := p.byExcess[sig]; !ok {
		return
	}
	delete(p.byExcess, sig)
	p.priorityIdx = removeSig(p.priorityIdx, sig)
	p.unlockIdx = removeSig(p.unlockIdx, sig)
}

// HasTx reports whether sig is currently pooled.
func (p *PendingPool) HasTx(sig types.Signature) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byExcess[sig]
	return ok
}

// Len returns the number of pooled transactions.
func (p *PendingPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byExcess)
}

// Snapshot returns every pooled transaction.
func (p *PendingPool) Snapshot() []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*tx.Transaction, 0, len(p.byExcess))
	for _, e := range p.byExcess {
		out = append(out, e.tx)
	}
	return out
}

// RemoveUnlockedAndDiscardDoubleSpends processes a newly published block:
// transactions it confirms are removed outright; transactions double-
// spending one of its inputs are discarded as no longer valid; the rest
// whose unlock height is now at or below the block's height are removed and
// returned so the caller can resubmit them to the unconfirmed pool.
func (p *PendingPool) RemoveUnlockedAndDiscardDoubleSpends(blk *block.Block) []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	newHeight := blk.Header.Height
	confirmed := make(map[types.Signature]struct{}, len(blk.Body.Kernels))
	for _, k := range blk.Body.Kernels {
		confirmed[k.ExcessSig] = struct{}{}
	}
	spent := make(map[types.Commitment]struct{}, len(blk.Body.Inputs))
	for _, in := range blk.Body.Inputs {
		spent[in.Commitment] = struct{}{}
	}

	var unlocked []*tx.Transaction
	for _, sig := range snapshotSigs(p.unlockIdx) {
		e, ok := p.byExcess[sig]
		if !ok {
			continue
		}
		if _, isConfirmed := confirmed[sig]; isConfirmed {
			p.removeLocked(sig)
			continue
		}
		if doubleSpendsAny(e.tx, spent) {
			p.removeLocked(sig)
			continue
		}
		if e.unlockHeight <= newHeight {
			unlocked = append(unlocked, e.tx)
			p.removeLocked(sig)
		}
	}
	return unlocked
}

func doubleSpendsAny(t *tx.Transaction, spent map[types.Commitment]struct{}) bool {
	for _, in := range t.Body.Inputs {
		if _, ok := spent[in.Commitment]; ok {
			return true
		}
	}
	return false
}

// CheckStatus verifies the pool's structural invariant.
func (p *PendingPool) CheckStatus() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.byExcess)
	if len(p.priorityIdx) != n || len(p.unlockIdx) != n {
		return false
	}
	return indexMatchesMap(p.priorityIdx, p.byExcess) && indexMatchesMap(p.unlockIdx, p.byExcess)
}
