package utxo

import (
	"encoding/json"
	"fmt"

	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/pkg/types"
)

// prefixOutput is the only key space the set needs: a commitment has no
// address or stake role to index separately under this commitment model.
var prefixOutput = []byte("u/") // u/<commitment(33)> -> Output JSON

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new unspent-output store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func outputKey(c types.Commitment) []byte {
	key := make([]byte, len(prefixOutput)+types.CommitmentSize)
	copy(key, prefixOutput)
	copy(key[len(prefixOutput):], c[:])
	return key
}

// Get retrieves an unspent output by its commitment.
func (s *Store) Get(commitment types.Commitment) (*Output, error) {
	data, err := s.db.Get(outputKey(commitment))
	if err != nil {
		return nil, fmt.Errorf("output get: %w", err)
	}
	var o Output
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("output unmarshal: %w", err)
	}
	return &o, nil
}

// Put stores an unspent output.
func (s *Store) Put(o *Output) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("output marshal: %w", err)
	}
	if err := s.db.Put(outputKey(o.Commitment), data); err != nil {
		return fmt.Errorf("output put: %w", err)
	}
	return nil
}

// Delete removes an unspent output (the input that spends it has been
// confirmed).
func (s *Store) Delete(commitment types.Commitment) error {
	if err := s.db.Delete(outputKey(commitment)); err != nil {
		return fmt.Errorf("output delete: %w", err)
	}
	return nil
}

// Has checks if an unspent output exists for the given commitment.
func (s *Store) Has(commitment types.Commitment) (bool, error) {
	return s.db.Has(outputKey(commitment))
}

// ForEach iterates over every unspent output in the set.
func (s *Store) ForEach(fn func(*Output) error) error {
	return s.db.ForEach(prefixOutput, func(key, value []byte) error {
		var o Output
		if err := json.Unmarshal(value, &o); err != nil {
			return fmt.Errorf("output unmarshal: %w", err)
		}
		return fn(&o)
	})
}

// ClearAll removes every unspent output. Used to recover from a crash
// during reorg by replaying all blocks from genesis.
func (s *Store) ClearAll() error {
	var keys [][]byte
	if err := s.db.ForEach(prefixOutput, func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		keys = append(keys, k)
		return nil
	}); err != nil {
		return fmt.Errorf("scan outputs: %w", err)
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete output key: %w", err)
		}
	}
	return nil
}
