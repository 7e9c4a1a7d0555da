package mempool

import (
	"fmt"
	"time"

	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/internal/validation"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// DefaultReorgTTL is how long an orphaned transaction stays eligible for
// resubmission after its block is reorged away.
const DefaultReorgTTL = 2 * time.Hour

// Stats summarizes the mempool's current contents.
type Stats struct {
	Unconfirmed     int
	Pending         int
	Reorg           int
	UnconfirmedFees types.MicroTari
}

// Mempool is the façade composing the unconfirmed, pending and reorg
// sub-pools behind the public API a node's ingest and block-production
// paths use. Callers never lock a sub-pool directly. Each sub-pool has its
// own lock and façade methods take one sub-pool lock at a time, never two
// together, so a method that touches several pools (ProcessPublishedBlock,
// ProcessReorg) is not atomic with respect to concurrent callers.
type Mempool struct {
	policy      *Policy
	unconfirmed *UnconfirmedPool
	pending     *PendingPool
	reorg       *ReorgPool

	utxos    utxo.Set
	heightFn func() uint64

	// confirmedCache remembers, per height, the exact transactions this
	// mempool removed as newly confirmed — not the block's merged body,
	// which has lost per-transaction boundaries — so that if the block is
	// later reorged away those transactions can be restored to the reorg
	// pool. An entry is removed only when ProcessReorg restores it; nothing
	// prunes old heights, so the cache grows with every confirming block.
	confirmedCache map[uint64][]*tx.Transaction
}

// New creates a mempool backed by utxos for maturity lookups and heightFn
// for the chain's current height.
func New(utxos utxo.Set, heightFn func() uint64, unconfirmedCap, pendingCap int, reorgTTL time.Duration) *Mempool {
	if reorgTTL <= 0 {
		reorgTTL = DefaultReorgTTL
	}
	return &Mempool{
		policy:         DefaultPolicy(),
		unconfirmed:    NewUnconfirmedPool(unconfirmedCap),
		pending:        NewPendingPool(pendingCap),
		reorg:          NewReorgPool(reorgTTL),
		utxos:          utxos,
		heightFn:       heightFn,
		confirmedCache: make(map[uint64][]*tx.Transaction),
	}
}

// SetPolicy replaces the mempool's acceptance policy.
func (m *Mempool) SetPolicy(p *Policy) {
	m.policy = p
}

// Insert validates t and routes it to the unconfirmed or pending pool
// depending on whether its lock height or spent-input maturity has already
// elapsed.
func (m *Mempool) Insert(t *tx.Transaction) error {
	if err := (validation.StatelessTxValidator{}).Validate(t, 0); err != nil {
		return fmt.Errorf("mempool: %w", err)
	}
	if m.utxos != nil {
		if err := validation.VerifyInputsKnown(t, m.utxos); err != nil {
			return fmt.Errorf("mempool: %w", err)
		}
	}
	if err := m.policy.Check(t); err != nil {
		return fmt.Errorf("mempool: %w", err)
	}

	unlockHeight := t.MaxLockHeight()
	if maturity := m.maxInputMaturity(t); maturity > unlockHeight {
		unlockHeight = maturity
	}

	height := m.heightFn()
	if unlockHeight > height {
		return m.pending.Insert(t, unlockHeight)
	}
	return m.unconfirmed.Insert(t)
}

// InsertTxs inserts each transaction independently, collecting one error
// per input slot (nil where insertion succeeded).
func (m *Mempool) InsertTxs(txs []*tx.Transaction) []error {
	errs := make([]error, len(txs))
	for i, t := range txs {
		errs[i] = m.Insert(t)
	}
	return errs
}

func (m *Mempool) maxInputMaturity(t *tx.Transaction) uint64 {
	if m.utxos == nil {
		return 0
	}
	var max uint64
	for _, in := range t.Body.Inputs {
		out, err := m.utxos.Get(in.Commitment)
		if err != nil || out == nil {
			continue
		}
		if out.Maturity > max {
			max = out.Maturity
		}
	}
	return max
}

// HasTxWithExcessSig reports whether sig identifies a transaction in either
// the unconfirmed or pending pool.
func (m *Mempool) HasTxWithExcessSig(sig types.Signature) bool {
	return m.unconfirmed.HasTx(sig) || m.pending.HasTx(sig)
}

// ProcessPublishedBlock removes every transaction blk confirms from the
// unconfirmed pool (evicting any that now double-spend or fail to validate
// against the post-block UTXO set), unlocks pending transactions blk's
// height has matured, and resubmits the newly unlocked ones. Confirmed
// transactions are cached by height for possible reorg resubmission.
func (m *Mempool) ProcessPublishedBlock(blk *block.Block) error {
	confirmedAndEvicted := m.unconfirmed.RemovePublished(blk, m.utxos)
	confirmed := filterConfirmed(confirmedAndEvicted, blk)
	if len(confirmed) > 0 {
		m.confirmedCache[blk.Header.Height] = confirmed
	}

	unlocked := m.pending.RemoveUnlockedAndDiscardDoubleSpends(blk)
	for _, t := range unlocked {
		if err := m.unconfirmed.Insert(t); err != nil {
			continue // pool full or duplicate: drop, per unconfirmed-pool policy.
		}
	}
	return nil
}

func filterConfirmed(txs []*tx.Transaction, blk *block.Block) []*tx.Transaction {
	confirmed := make(map[types.Signature]struct{}, len(blk.Body.Kernels))
	for _, k := range blk.Body.Kernels {
		confirmed[k.ExcessSig] = struct{}{}
	}
	var out []*tx.Transaction
	for _, t := range txs {
		for _, k := range t.Body.Kernels {
			if _, ok := confirmed[k.ExcessSig]; ok {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// ProcessReorg restores the transactions confirmed by removed blocks to the
// reorg pool, applies added blocks exactly as ProcessPublishedBlock would,
// then resubmits everything the reorg pool is still holding.
func (m *Mempool) ProcessReorg(removed, added []*block.Block) error {
	for _, blk := range removed {
		h := blk.Header.Height
		for _, t := range m.confirmedCache[h] {
			_ = m.reorg.Insert(t)
		}
		delete(m.confirmedCache, h)
	}
	for _, blk := range added {
		if err := m.ProcessPublishedBlock(blk); err != nil {
			return err
		}
	}
	for _, t := range m.reorg.Take() {
		_ = m.Insert(t)
	}
	return nil
}

// Snapshot returns every transaction held in the unconfirmed or pending
// pool.
func (m *Mempool) Snapshot() []*tx.Transaction {
	out := m.unconfirmed.Snapshot()
	return append(out, m.pending.Snapshot()...)
}

// Stats reports the current size of each sub-pool.
func (m *Mempool) Stats() Stats {
	var fees types.MicroTari
	for _, t := range m.unconfirmed.Snapshot() {
		fees += t.TotalFee()
	}
	return Stats{
		Unconfirmed:     m.unconfirmed.Len(),
		Pending:         m.pending.Len(),
		Reorg:           m.reorg.Len(),
		UnconfirmedFees: fees,
	}
}

// CalculateWeight returns the total signing-byte weight of the unconfirmed
// pool, an estimate of the next block's candidate body size.
func (m *Mempool) CalculateWeight() int {
	return m.unconfirmed.CalculateWeight()
}

// Len returns the number of transactions immediately or eventually eligible
// for a block: the unconfirmed and pending pools combined.
func (m *Mempool) Len() int {
	return m.unconfirmed.Len() + m.pending.Len()
}
