package consensus

import "fmt"

// HeaderSource is the minimal view of chain storage DiffAdjManager needs to
// rebuild its LWMA window: height plus per-height (timestamp, difficulty).
// chain.Chain satisfies this directly, letting DiffAdjManager stay in
// internal/consensus without importing internal/chain — the dependency runs
// the other way, exactly as the cyclic-reference note in the design
// describes.
type HeaderSource interface {
	Height() uint64
	HeaderAt(height uint64) (timestamp int64, difficulty uint64, cumulativeDifficulty uint64, err error)
}

// DiffAdjManager binds an LWMA retarget window to a chain's actual header
// sequence. It is constructed once the chain database exists (so it has a
// HeaderSource to walk), then late-bound into the consensus engine via
// PoW.DifficultyFn — breaking the natural cycle where the engine wants a
// difficulty function that depends on chain state, and the chain wants a
// difficulty function to validate blocks with, without either package
// importing the other.
type DiffAdjManager struct {
	source      HeaderSource
	blockWindow int
	targetTime  int64
	lwma        *LWMA
}

// NewDiffAdjManager creates a manager bound to source, windowing the last
// blockWindow blocks and targeting targetTime seconds between them.
func NewDiffAdjManager(source HeaderSource, blockWindow int, targetTime int64) *DiffAdjManager {
	m := &DiffAdjManager{
		source:      source,
		blockWindow: blockWindow,
		targetTime:  targetTime,
		lwma:        NewLWMA(blockWindow, targetTime),
	}
	return m
}

// Refresh rebuilds the LWMA window from scratch by walking back blockWindow
// headers from the chain's current tip. Call this once at startup and again
// after every reorg, since a reorg can silently invalidate the window's
// assumption that it was built by sequential Add calls from ProcessBlock.
func (m *DiffAdjManager) Refresh() error {
	height := m.source.Height()
	start := uint64(0)
	if height > uint64(m.blockWindow) {
		start = height - uint64(m.blockWindow)
	}

	fresh := NewLWMA(m.blockWindow, m.targetTime)
	for h := start; h <= height; h++ {
		ts, _, cumDiff, err := m.source.HeaderAt(h)
		if err != nil {
			return fmt.Errorf("diffadj: refresh at height %d: %w", h, err)
		}
		if err := fresh.Add(ts, cumDiff); err != nil {
			return fmt.Errorf("diffadj: refresh at height %d: %w", h, err)
		}
	}
	m.lwma = fresh
	return nil
}

// Push records the block at height as the new window tip, sliding the LWMA
// window forward by one without a full Refresh. Called once per block
// applied to the main chain; a reorg should call Refresh instead, since
// Push alone cannot remove observations.
func (m *DiffAdjManager) Push(timestamp int64, cumulativeDifficulty uint64) error {
	return m.lwma.Add(timestamp, cumulativeDifficulty)
}

// DifficultyFn returns the next block's target difficulty, in the shape
// PoW.DifficultyFn expects (height is accepted but unused — LWMA derives
// the target purely from its retained window, not from the requested
// height directly).
func (m *DiffAdjManager) DifficultyFn(_ uint64) uint64 {
	return m.lwma.GetDifficulty()
}

// BindTo installs this manager as pow's difficulty source, completing the
// late-binding: chain.New constructs the store, then DiffAdjManager(store),
// then this call wires it into the engine, so neither package needs to
// import the other's concrete type at construction time.
func (m *DiffAdjManager) BindTo(pow *PoW) {
	pow.DifficultyFn = m.DifficultyFn
}
