package consensus

import (
	"errors"
	"fmt"
)

// ErrDecreasingAccumulatedDifficulty is returned by LWMA.Add when the pushed
// accumulated difficulty does not strictly exceed the previously pushed
// value. Accumulated difficulty is, by definition, monotonically
// non-decreasing along a valid chain.
var ErrDecreasingAccumulatedDifficulty = errors.New("lwma: accumulated difficulty did not increase")

// initialDifficulty is the floor difficulty returned before the window has
// at least two observations to compute a solve time from.
const initialDifficulty uint64 = 1

// LWMA is a linear weighted moving average difficulty retarget, as used by
// Zawy's LWMA-1 (a refinement of WT-144 by Tom Harding). It is windowed:
// only the most recent blockWindow+1 (timestamp, accumulated_difficulty)
// pairs are retained, each newly pushed pair evicting the oldest.
//
// Recent solve times are weighted more heavily than older ones (weights 1..n
// from the oldest interval to the newest), which responds to hashrate changes
// faster than a flat average while remaining resistant to timestamp
// manipulation: a non-increasing timestamp is clamped to previous+1 rather
// than accepted at face value, and any single solve time is capped at
// 6*targetTime so one wildly slow or backdated block cannot swing the
// target too far in either direction.
type LWMA struct {
	timestamps   []int64
	accumulated  []uint64
	blockWindow  int
	targetTime   int64
}

// NewLWMA creates an LWMA retarget window of blockWindow blocks, targeting
// targetTime seconds between blocks.
func NewLWMA(blockWindow int, targetTime int64) *LWMA {
	return &LWMA{
		timestamps:  make([]int64, 0, blockWindow+1),
		accumulated: make([]uint64, 0, blockWindow+1),
		blockWindow: blockWindow,
		targetTime:  targetTime,
	}
}

// Add pushes a new (timestamp, accumulated_difficulty) observation, evicting
// the oldest once the window exceeds blockWindow+1 entries. It rejects any
// accumulated value that does not strictly exceed the most recently pushed
// one — accumulated difficulty can never decrease along a real chain, so a
// decrease here indicates either a bug upstream or an adversarial history.
func (l *LWMA) Add(timestamp int64, accumulatedDifficulty uint64) error {
	if n := len(l.accumulated); n > 0 && accumulatedDifficulty <= l.accumulated[n-1] {
		return ErrDecreasingAccumulatedDifficulty
	}
	l.timestamps = append(l.timestamps, timestamp)
	l.accumulated = append(l.accumulated, accumulatedDifficulty)
	for len(l.timestamps) > l.blockWindow+1 {
		l.timestamps = l.timestamps[1:]
		l.accumulated = l.accumulated[1:]
	}
	return nil
}

// GetDifficulty returns the next block's target difficulty given the
// current window.
func (l *LWMA) GetDifficulty() uint64 {
	return l.calculate()
}

// Len reports the number of observations currently retained.
func (l *LWMA) Len() int {
	return len(l.timestamps)
}

func (l *LWMA) calculate() uint64 {
	if len(l.timestamps) <= 1 {
		return initialDifficulty
	}

	// n is the number of intervals in the window, not the number of
	// points — this lets the window warm up gradually from genesis
	// instead of waiting for blockWindow+1 full observations.
	n := int64(len(l.timestamps) - 1)

	totalDiff := l.accumulated[n] - l.accumulated[0]
	avgDiff := float64(totalDiff) / float64(n)

	previous := l.timestamps[0]
	var weightedTimes int64
	for i := int64(1); i <= n; i++ {
		var this int64
		if l.timestamps[i] > previous {
			this = l.timestamps[i]
		} else {
			// A non-increasing (or backward-dated) timestamp is treated as
			// previous+1 rather than accepted as a tiny or negative solve
			// time — otherwise a miner could manufacture a near-zero solve
			// time to push the next difficulty arbitrarily high.
			this = previous + 1
		}
		solveTime := this - previous
		if solveTime > 6*l.targetTime {
			solveTime = 6 * l.targetTime
		}
		if solveTime < 1 {
			solveTime = 1
		}
		previous = this
		weightedTimes += solveTime * i
	}

	k := n * (n + 1) * l.targetTime / 2
	target := avgDiff * float64(k) / float64(weightedTimes)
	if target > float64(^uint64(0)) {
		panic("lwma: difficulty target overflowed uint64 — consensus breach")
	}

	result := uint64(target) // truncating cast; ceil is applied below
	if float64(result) < target {
		result++
	}
	if result < 1 {
		result = 1
	}
	return result
}

// String renders the window size for debugging.
func (l *LWMA) String() string {
	return fmt.Sprintf("LWMA(window=%d, observations=%d)", l.blockWindow, len(l.timestamps))
}
