package storage

import (
	"bytes"
	"testing"
)

// testBatcher runs the shared batch test suite against a Batcher-capable DB.
func testBatcher(t *testing.T, db interface {
	DB
	Batcher
}) {
	t.Helper()

	t.Run("CommitAppliesAllWrites", func(t *testing.T) {
		b := db.NewBatch()
		if err := b.Put([]byte("batch/a"), []byte("1")); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		if err := b.Put([]byte("batch/b"), []byte("2")); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		if err := b.Commit(); err != nil {
			t.Fatalf("Commit() error: %v", err)
		}

		va, _ := db.Get([]byte("batch/a"))
		vb, _ := db.Get([]byte("batch/b"))
		if !bytes.Equal(va, []byte("1")) || !bytes.Equal(vb, []byte("2")) {
			t.Fatalf("batch writes not visible after commit: %q %q", va, vb)
		}
	})

	t.Run("UncommittedBatchNotVisible", func(t *testing.T) {
		b := db.NewBatch()
		b.Put([]byte("batch/pending"), []byte("x"))

		if ok, _ := db.Has([]byte("batch/pending")); ok {
			t.Fatal("uncommitted batch write should not be visible")
		}
	})

	t.Run("DeleteInBatch", func(t *testing.T) {
		db.Put([]byte("batch/del"), []byte("value"))

		b := db.NewBatch()
		b.Delete([]byte("batch/del"))
		if err := b.Commit(); err != nil {
			t.Fatalf("Commit() error: %v", err)
		}

		if ok, _ := db.Has([]byte("batch/del")); ok {
			t.Fatal("key should be gone after batch delete commit")
		}
	})
}

func TestMemoryDB_Batch(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testBatcher(t, db)
}

func TestBadgerDB_Batch(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testBatcher(t, db)
}
