package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// reorgEntry is a transaction held by the reorg pool plus its expiry time.
type reorgEntry struct {
	tx        *tx.Transaction
	expiresAt time.Time
}

// ReorgPool is a time-bounded cache of transactions evicted from the chain
// by a reorg, kept around so they can be resubmitted if their branch — or
// an equivalent spend — becomes valid again. Entries that outlive their TTL
// are dropped by Purge or by the next Take; until then Len and HasTx still
// count them.
type ReorgPool struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[types.Signature]*reorgEntry
	// expiryIdx is sorted ascending by expiry time.
	expiryIdx []types.Signature
	sigIdx    []types.Signature
}

// NewReorgPool creates a reorg pool whose entries expire after ttl.
func NewReorgPool(ttl time.Duration) *ReorgPool {
	return &ReorgPool{
		ttl:     ttl,
		entries: make(map[types.Signature]*reorgEntry),
	}
}

// Insert adds t to the pool with a fresh TTL, replacing any existing entry
// for the same excess signature.
func (p *ReorgPool) Insert(t *tx.Transaction) error {
	sig, err := primarySig(t)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[sig]; exists {
		p.removeLocked(sig)
	}
	p.entries[sig] = &reorgEntry{tx: t, expiresAt: time.Now().Add(p.ttl)}
	p.expiryIdx = append(p.expiryIdx, sig)
	sort.Slice(p.expiryIdx, func(i, j int) bool {
		return p.entries[p.expiryIdx[i]].expiresAt.Before(p.entries[p.expiryIdx[j]].expiresAt)
	})
	p.sigIdx = append(p.sigIdx, sig)
	sortBySig(p.sigIdx)
	return nil
}

func (p *ReorgPool) removeLocked(sig types.Signature) {
	if _, ok := p.entries[sig]; !ok {
		return
	}
	delete(p.entries, sig)
	p.expiryIdx = removeSig(p.expiryIdx, sig)
	p.sigIdx = removeSig(p.sigIdx, sig)
}

// Purge drops every entry whose TTL has elapsed as of now, returning the
// number removed.
func (p *ReorgPool) Purge(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, sig := range snapshotSigs(p.expiryIdx) {
		e, ok := p.entries[sig]
		if !ok {
			continue
		}
		if !e.expiresAt.After(now) {
			p.removeLocked(sig)
			n++
			continue
		}
		break // expiryIdx is sorted ascending; nothing further has expired.
	}
	return n
}

// Take removes and returns every unexpired transaction in the pool, for
// resubmission back into the unconfirmed/pending pools.
func (p *ReorgPool) Take() []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purgeLocked(time.Now())
	out := make([]*tx.Transaction, 0, len(p.entries))
	for _, sig := range snapshotSigs(p.expiryIdx) {
		out = append(out, p.entries[sig].tx)
		p.removeLocked(sig)
	}
	return out
}

func (p *ReorgPool) purgeLocked(now time.Time) {
	for _, sig := range snapshotSigs(p.expiryIdx) {
		e, ok := p.entries[sig]
		if !ok {
			continue
		}
		if !e.expiresAt.After(now) {
			p.removeLocked(sig)
			continue
		}
		break
	}
}

// Len returns the number of pooled (not-yet-purged) transactions.
func (p *ReorgPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// HasTx reports whether sig is currently pooled.
func (p *ReorgPool) HasTx(sig types.Signature) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[sig]
	return ok
}

// CheckStatus verifies the pool's structural invariant.
func (p *ReorgPool) CheckStatus() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.entries)
	if len(p.expiryIdx) != n || len(p.sigIdx) != n {
		return false
	}
	seenExpiry := make(map[types.Signature]struct{}, n)
	for _, sig := range p.expiryIdx {
		if _, dup := seenExpiry[sig]; dup {
			return false
		}
		seenExpiry[sig] = struct{}{}
		if _, ok := p.entries[sig]; !ok {
			return false
		}
	}
	seenSig := make(map[types.Signature]struct{}, n)
	for _, sig := range p.sigIdx {
		if _, dup := seenSig[sig]; dup {
			return false
		}
		seenSig[sig] = struct{}{}
	}
	return len(seenExpiry) == n && len(seenSig) == n
}
