// Package mmr implements an append-only Merkle Mountain Range, used to
// commit the output, range-proof, kernel and header sets into the four
// roots carried by each block header.
package mmr

import (
	"errors"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// ErrBeyondPrunedHorizon is returned when a rewind or proof request targets
// a position older than the retained checkpoint history.
var ErrBeyondPrunedHorizon = errors.New("mmr: position is beyond pruned horizon")

// peak is one node of the current frontier: a perfect binary subtree root
// of the given height (0 = a single leaf) covering 2^height leaves.
type peak struct {
	height uint64
	hash   types.Hash
}

// MMR is a Merkle Mountain Range: leaves are appended in order and merged
// into peaks exactly like incrementing a binary counter — appending a leaf
// may cascade through several merges when the low bits of the leaf count
// are all set. The root is the bagged hash of the current peaks.
type MMR struct {
	peaks []peak
	size  uint64 // number of leaves appended
}

// New creates an empty MMR.
func New() *MMR {
	return &MMR{}
}

// Size returns the number of leaves appended so far.
func (m *MMR) Size() uint64 {
	return m.size
}

// Append adds a leaf hash to the MMR, merging peaks of equal height exactly
// as a binary counter carries, and returns the position assigned to it.
func (m *MMR) Append(leaf types.Hash) uint64 {
	pos := m.size
	m.peaks = append(m.peaks, peak{height: 0, hash: leaf})
	for len(m.peaks) >= 2 && m.peaks[len(m.peaks)-1].height == m.peaks[len(m.peaks)-2].height {
		right := m.peaks[len(m.peaks)-1]
		left := m.peaks[len(m.peaks)-2]
		m.peaks = m.peaks[:len(m.peaks)-2]
		m.peaks = append(m.peaks, peak{
			height: left.height + 1,
			hash:   hashPair(left.hash, right.hash),
		})
	}
	m.size++
	return pos
}

// hashPair combines two sibling node hashes into their parent.
func hashPair(left, right types.Hash) types.Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return crypto.Hash(buf)
}

// Root bags the current peaks right-to-left into a single root hash. An
// empty MMR has the zero hash as its root.
func (m *MMR) Root() types.Hash {
	if len(m.peaks) == 0 {
		return types.Hash{}
	}
	root := m.peaks[len(m.peaks)-1].hash
	for i := len(m.peaks) - 2; i >= 0; i-- {
		root = hashPair(m.peaks[i].hash, root)
	}
	return root
}

// snapshot captures enough state to restore the MMR to a previous size.
type snapshot struct {
	peaks []peak
	size  uint64
}

func (m *MMR) snapshotState() snapshot {
	cp := make([]peak, len(m.peaks))
	copy(cp, m.peaks)
	return snapshot{peaks: cp, size: m.size}
}

func (m *MMR) restore(s snapshot) {
	m.peaks = s.peaks
	m.size = s.size
}
