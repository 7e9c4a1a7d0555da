package mempool

import (
	"sort"
	"sync"

	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// UnconfirmedPool holds transactions immediately eligible for the next
// block, ranked purely by fee/weight priority. When full, an incoming
// transaction evicts the current lowest-priority resident if it outranks
// it; otherwise the incoming transaction is dropped.
type UnconfirmedPool struct {
	mu       sync.RWMutex
	capacity int
	byExcess map[types.Signature]*txEntry
	// priorityIdx is sorted ascending by priority, so index 0 is always the
	// next eviction candidate.
	priorityIdx []types.Signature
	sigIdx      []types.Signature
}

// NewUnconfirmedPool creates an unconfirmed pool holding at most capacity
// transactions.
func NewUnconfirmedPool(capacity int) *UnconfirmedPool {
	return &UnconfirmedPool{
		capacity: capacity,
		byExcess: make(map[types.Signature]*txEntry),
	}
}

// Insert adds t to the pool. If the pool is full, t must outrank the
// current lowest-priority resident or ErrPoolFull is returned.
func (p *UnconfirmedPool) Insert(t *tx.Transaction) error {
	sig, err := primarySig(t)
	if err != nil {
		return err
	}
	e := newEntry(t, sig, 0)

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

func (p *UnconfirmedPool) insertLocked(e *txEntry) {
	p.byExcess[e.sig] = e
	p.priorityIdx = append(p.priorityIdx, e.sig)
	sort.Slice(p.priorityIdx, func(i, j int) bool {
		return lessPriority(p.byExcess[p.priorityIdx[i]], p.byExcess[p.priorityIdx[j]])
	})
	p.sigIdx = append(p.sigIdx, e.sig)
	sortBySig(p.sigIdx)
}

func (p *UnconfirmedPool) removeLocked(sig types.Signature) {
	if _, ok := p.byExcess[sig]; !ok {
		return
	}
	delete(p.byExcess, sig)
	p.priorityIdx = removeSig(p.priorityIdx, sig)
	p.sigIdx = removeSig(p.sigIdx, sig)
}

// Remove deletes a transaction by excess signature, if present.
func (p *UnconfirmedPool) Remove(sig types.Signature) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(sig)
}

// HasTx reports whether sig is currently pooled.
func (p *UnconfirmedPool) HasTx(sig types.Signature) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byExcess[sig]
	return ok
}

// Len returns the number of pooled transactions.
func (p *UnconfirmedPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byExcess)
}

// Snapshot returns every pooled transaction in priority order, highest
// first.
func (p *UnconfirmedPool) Snapshot() []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*tx.Transaction, len(p.priorityIdx))
	for i, sig := range p.priorityIdx {
		out[len(out)-1-i] = p.byExcess[sig].tx
	}
	return out
}

// CalculateWeight sums the signing-byte weight of every pooled transaction.
func (p *UnconfirmedPool) CalculateWeight() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var total int
	for _, e := range p.byExcess {
		total += e.weight
	}
	return total
}

// RemovePublished removes every transaction confirmed by blk, and evicts
// any remaining transaction that now double-spends an input blk consumed or
// whose inputs no longer validate against utxos. It returns the removed
// transactions, confirmed or evicted alike, so a caller can cache the
// confirmed ones for reorg resubmission.
func (p *UnconfirmedPool) RemovePublished(blk *block.Block, utxos utxo.Set) []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	inBlock := make(map[types.Signature]struct{}, len(blk.Body.Kernels))
	for _, k := range blk.Body.Kernels {
		inBlock[k.ExcessSig] = struct{}{}
	}
	spent := make(map[types.Commitment]struct{}, len(blk.Body.Inputs))
	for _, in := range blk.Body.Inputs {
		spent[in.Commitment] = struct{}{}
	}

	var removed []*tx.Transaction
	for _, sig := range snapshotSigs(p.priorityIdx) {
		e, ok := p.byExcess[sig]
		if !ok {
			continue
		}
		switch {
		case inBlockOrSpends(e.tx, inBlock, spent), !stillSpendable(e.tx, utxos):
			removed = append(removed, e.tx)
			p.removeLocked(sig)
		}
	}
	return removed
}

func inBlockOrSpends(t *tx.Transaction, inBlock map[types.Signature]struct{}, spent map[types.Commitment]struct{}) bool {
	for _, k := range t.Body.Kernels {
		if _, ok := inBlock[k.ExcessSig]; ok {
			return true
		}
	}
	for _, in := range t.Body.Inputs {
		if _, ok := spent[in.Commitment]; ok {
			return true
		}
	}
	return false
}

func stillSpendable(t *tx.Transaction, utxos utxo.Set) bool {
	if utxos == nil {
		return true
	}
	for _, in := range t.Body.Inputs {
		has, err := utxos.Has(in.Commitment)
		if err != nil || !has {
			return false
		}
	}
	return true
}

// CheckStatus verifies the pool's structural invariant: the map and both
// ordered indices hold exactly the same set of signatures, each appearing
// exactly once.
func (p *UnconfirmedPool) CheckStatus() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.byExcess)
	if len(p.priorityIdx) != n || len(p.sigIdx) != n {
		return false
	}
	return indexMatchesMap(p.priorityIdx, p.byExcess) && indexMatchesMap(p.sigIdx, p.byExcess)
}

func indexMatchesMap(idx []types.Signature, m map[types.Signature]*txEntry) bool {
	seen := make(map[types.Signature]struct{}, len(idx))
	for _, sig := range idx {
		if _, dup := seen[sig]; dup {
			return false
		}
		seen[sig] = struct{}{}
		if _, ok := m[sig]; !ok {
			return false
		}
	}
	return len(seen) == len(m)
}
