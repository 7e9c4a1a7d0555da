package consensus

import "testing"

// fakeHeaderSource is a minimal in-memory HeaderSource for testing
// DiffAdjManager without a full chain.Chain.
type fakeHeaderSource struct {
	timestamps []int64
	diffs      []uint64 // per-block difficulty
}

func (f *fakeHeaderSource) push(ts int64, diff uint64) {
	f.timestamps = append(f.timestamps, ts)
	f.diffs = append(f.diffs, diff)
}

func (f *fakeHeaderSource) Height() uint64 {
	return uint64(len(f.timestamps) - 1)
}

func (f *fakeHeaderSource) HeaderAt(height uint64) (int64, uint64, uint64, error) {
	var cum uint64
	for i := uint64(0); i <= height; i++ {
		cum += f.diffs[i]
	}
	return f.timestamps[height], f.diffs[height], cum, nil
}

func TestDiffAdjManager_RefreshRebuildsWindow(t *testing.T) {
	src := &fakeHeaderSource{}
	src.push(60, 100)
	src.push(120, 100)
	src.push(180, 100)

	m := NewDiffAdjManager(src, 5, 60)
	if err := m.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := m.DifficultyFn(0); got != 100 {
		t.Fatalf("DifficultyFn() after refresh = %d, want 100", got)
	}
}

func TestDiffAdjManager_PushSlidesWindow(t *testing.T) {
	src := &fakeHeaderSource{}
	src.push(60, 100)
	m := NewDiffAdjManager(src, 5, 60)
	if err := m.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := m.Push(120, 200); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got := m.DifficultyFn(0); got != 100 {
		t.Fatalf("DifficultyFn() after push = %d, want 100", got)
	}
}

func TestDiffAdjManager_BindTo(t *testing.T) {
	src := &fakeHeaderSource{}
	src.push(60, 100)
	m := NewDiffAdjManager(src, 5, 60)
	if err := m.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	pow, err := NewPoW(1, 0, 60)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}
	m.BindTo(pow)

	if pow.DifficultyFn == nil {
		t.Fatal("BindTo did not set PoW.DifficultyFn")
	}
	if got := pow.DifficultyFn(0); got != initialDifficulty {
		t.Fatalf("bound DifficultyFn(0) = %d, want %d", got, initialDifficulty)
	}
}
