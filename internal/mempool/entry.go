// Package mempool holds transactions that have been relayed but not yet
// confirmed, organized into the sub-pools a mimblewimble node needs: an
// unconfirmed pool of immediately-spendable candidates, a pending pool of
// time-locked transactions, and a reorg pool of recently-orphaned ones kept
// around in case their branch returns. A fourth "orphan pool" exists only
// conceptually — blocks that cannot yet be connected to the chain are an
// artifact of chain storage, not a transaction pool, so this package does
// not model it.
package mempool

import (
	"bytes"
	"errors"
	"sort"

	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// Pool-level errors, matching the MempoolError taxonomy.
var (
	ErrAlreadyExists = errors.New("mempool: transaction already present")
	ErrPoolFull      = errors.New("mempool: pool full")
	ErrDoubleSpend   = errors.New("mempool: transaction conflicts with a pooled spend")
	ErrNoKernels     = errors.New("mempool: transaction has no kernels to index on")
)

// txEntry is the unit stored by every sub-pool: a transaction plus the
// fields its ordered indices sort on.
type txEntry struct {
	tx           *tx.Transaction
	sig          types.Signature
	fee          types.MicroTari
	weight       int
	unlockHeight uint64 // pending pool only: max(lock_height, max input maturity)
}

// newEntry computes an entry's cached priority fields from t. unlockHeight
// is supplied by the caller since it depends on a UTXO lookup the pool
// itself does not perform.
func newEntry(t *tx.Transaction, sig types.Signature, unlockHeight uint64) *txEntry {
	return &txEntry{
		tx:           t,
		sig:          sig,
		fee:          t.TotalFee(),
		weight:       len(t.SigningBytes()),
		unlockHeight: unlockHeight,
	}
}

// feeRate is the priority used for eviction: fee per byte of signing bytes.
// A zero-weight transaction (pathological) sorts as lowest priority.
func (e *txEntry) feeRate() float64 {
	if e.weight == 0 {
		return 0
	}
	return float64(e.fee) / float64(e.weight)
}

// primarySig returns the excess signature a transaction is indexed on. A
// transaction's kernels are already canonically sorted by excess signature,
// so the first kernel is a deterministic choice of primary identity even
// for the (rare) multi-kernel case.
func primarySig(t *tx.Transaction) (types.Signature, error) {
	if len(t.Body.Kernels) == 0 {
		return types.Signature{}, ErrNoKernels
	}
	return t.Body.Kernels[0].ExcessSig, nil
}

// lessPriority reports whether a has strictly lower eviction priority than
// b: lower fee rate evicts first, ties broken by excess signature (the
// larger signature evicts first) so the ordering is total and deterministic.
func lessPriority(a, b *txEntry) bool {
	if a.feeRate() != b.feeRate() {
		return a.feeRate() < b.feeRate()
	}
	return bytes.Compare(a.sig.Bytes(), b.sig.Bytes()) > 0
}

// higherPriority reports whether a would displace b as the pool's minimum.
func higherPriority(a, b *txEntry) bool {
	return lessPriority(b, a)
}

// sigLess orders two signatures by their canonical byte encoding.
func sigLess(a, b types.Signature) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// removeSig deletes sig from an ordered index slice, preserving order.
func removeSig(idx []types.Signature, sig types.Signature) []types.Signature {
	for i, s := range idx {
		if s == sig {
			return append(idx[:i], idx[i+1:]...)
		}
	}
	return idx
}

// snapshotSigs returns a copy of idx safe to range over while idx itself is
// mutated (entries removed mid-iteration).
func snapshotSigs(idx []types.Signature) []types.Signature {
	out := make([]types.Signature, len(idx))
	copy(out, idx)
	return out
}

// sortBySig reorders idx ascending by signature bytes, used to rebuild the
// secondary index after an insert.
func sortBySig(idx []types.Signature) {
	sort.Slice(idx, func(i, j int) bool { return sigLess(idx[i], idx[j]) })
}
