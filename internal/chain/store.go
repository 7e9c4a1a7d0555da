package chain

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/types"
)

// Key prefixes and state keys for the block store.
var (
	prefixBlock  = []byte("b/") // b/<hash(32)> -> block JSON
	prefixHeight = []byte("h/") // h/<height(8)> -> hash(32)
	prefixKernel = []byte("k/") // k/<excess_sig(65)> -> height(8) + blockHash(32)
	prefixUndo   = []byte("d/") // d/<hash(32)> -> undo data JSON

	keyTipHash         = []byte("s/tip")
	keyHeight          = []byte("s/height")
	keyCumDifficulty   = []byte("s/cumdiff")
	keyTotalOffset     = []byte("s/totaloffset")
	keyReorgCheckpoint = []byte("s/reorg")
)

// BlockStore persists blocks and chain metadata to a storage.DB. Where the
// underlying DB also implements storage.Batcher, CommitBlock applies every
// column family touched by a block as a single atomic batch so a crash
// mid-write can never leave a partially-applied block behind.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore creates a block store backed by the given database.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// StoreBlock stores a block by its hash only, without updating height or
// kernel indexes. Use this for blocks that are not (yet) on the active chain.
func (bs *BlockStore) StoreBlock(blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}
	hash := blk.Hash()
	if err := bs.db.Put(blockKey(hash), data); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	return nil
}

// PutBlock stores a block and indexes it by hash, height, and kernel
// excess signature.
func (bs *BlockStore) PutBlock(blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}

	hash := blk.Hash()
	if err := bs.db.Put(blockKey(hash), data); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	if err := bs.db.Put(heightKey(blk.Header.Height), hash[:]); err != nil {
		return fmt.Errorf("height index put: %w", err)
	}
	for _, k := range blk.Body.Kernels {
		if err := bs.db.Put(kernelKey(k.ExcessSig), kernelLocation(blk.Header.Height, hash)); err != nil {
			return fmt.Errorf("kernel index put: %w", err)
		}
	}
	return nil
}

// CommitBlock atomically persists a block, its kernel and height indexes,
// its undo data, and the new chain tip/cumulative-difficulty/total-offset
// state. If the underlying DB supports batching, all of this lands in a
// single atomic write; otherwise the writes are applied sequentially and a
// crash between them can leave the database inconsistent (acceptable only
// for the in-memory test backend).
func (bs *BlockStore) CommitBlock(blk *block.Block, undo []byte, newCumDiff uint64, newTotalOffset types.Hash) error {
	hash := blk.Hash()
	blockData, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}

	writes := func(put func(key, value []byte) error, del func(key []byte) error) error {
		if err := put(blockKey(hash), blockData); err != nil {
			return err
		}
		if err := put(heightKey(blk.Header.Height), hash[:]); err != nil {
			return err
		}
		for _, k := range blk.Body.Kernels {
			if err := put(kernelKey(k.ExcessSig), kernelLocation(blk.Header.Height, hash)); err != nil {
				return err
			}
		}
		if err := put(undoKey(hash), undo); err != nil {
			return err
		}
		if err := put(keyTipHash, hash[:]); err != nil {
			return err
		}
		var heightBuf, cumDiffBuf [8]byte
		binary.BigEndian.PutUint64(heightBuf[:], blk.Header.Height)
		if err := put(keyHeight, heightBuf[:]); err != nil {
			return err
		}
		binary.BigEndian.PutUint64(cumDiffBuf[:], newCumDiff)
		if err := put(keyCumDifficulty, cumDiffBuf[:]); err != nil {
			return err
		}
		if err := put(keyTotalOffset, newTotalOffset[:]); err != nil {
			return err
		}
		return nil
	}

	if batcher, ok := bs.db.(storage.Batcher); ok {
		b := batcher.NewBatch()
		if err := writes(b.Put, b.Delete); err != nil {
			return fmt.Errorf("commit block: %w", err)
		}
		if err := b.Commit(); err != nil {
			return fmt.Errorf("commit block: %w", err)
		}
		return nil
	}

	if err := writes(bs.db.Put, bs.db.Delete); err != nil {
		return fmt.Errorf("commit block (non-atomic): %w", err)
	}
	return nil
}

// GetBlock retrieves a block by its hash.
func (bs *BlockStore) GetBlock(hash types.Hash) (*block.Block, error) {
	data, err := bs.db.Get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("block get: %w", err)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("block unmarshal: %w", err)
	}
	return &blk, nil
}

// GetBlockByHeight retrieves a block by its height.
func (bs *BlockStore) GetBlockByHeight(height uint64) (*block.Block, error) {
	hashBytes, err := bs.db.Get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("height index get: %w", err)
	}
	if len(hashBytes) != types.HashSize {
		return nil, fmt.Errorf("corrupt height index: got %d bytes, want %d", len(hashBytes), types.HashSize)
	}
	var hash types.Hash
	copy(hash[:], hashBytes)
	return bs.GetBlock(hash)
}

// HasBlock checks if a block exists by hash.
func (bs *BlockStore) HasBlock(hash types.Hash) (bool, error) {
	return bs.db.Has(blockKey(hash))
}

// SetTip stores the current chain tip hash and height.
func (bs *BlockStore) SetTip(hash types.Hash, height uint64) error {
	if err := bs.db.Put(keyTipHash, hash[:]); err != nil {
		return fmt.Errorf("set tip hash: %w", err)
	}
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], height)
	if err := bs.db.Put(keyHeight, heightBuf[:]); err != nil {
		return fmt.Errorf("set tip height: %w", err)
	}
	return nil
}

// GetTip returns the current chain tip hash and height. Returns zero
// values if no tip is set (fresh chain).
func (bs *BlockStore) GetTip() (types.Hash, uint64, error) {
	hashBytes, err := bs.db.Get(keyTipHash)
	if err != nil {
		return types.Hash{}, 0, nil // No tip yet.
	}
	if len(hashBytes) != types.HashSize {
		return types.Hash{}, 0, fmt.Errorf("corrupt tip hash: got %d bytes", len(hashBytes))
	}

	heightBytes, err := bs.db.Get(keyHeight)
	if err != nil {
		return types.Hash{}, 0, fmt.Errorf("tip height missing: %w", err)
	}
	if len(heightBytes) != 8 {
		return types.Hash{}, 0, fmt.Errorf("corrupt tip height: got %d bytes", len(heightBytes))
	}

	var hash types.Hash
	copy(hash[:], hashBytes)
	height := binary.BigEndian.Uint64(heightBytes)
	return hash, height, nil
}

// GetKernelLocation returns the block height and hash containing the
// kernel with the given excess signature.
func (bs *BlockStore) GetKernelLocation(sig types.Signature) (uint64, types.Hash, error) {
	data, err := bs.db.Get(kernelKey(sig))
	if err != nil {
		return 0, types.Hash{}, fmt.Errorf("kernel index get: %w", err)
	}
	if len(data) != 8+types.HashSize {
		return 0, types.Hash{}, fmt.Errorf("corrupt kernel index: got %d bytes, want %d", len(data), 8+types.HashSize)
	}
	height := binary.BigEndian.Uint64(data[:8])
	var blockHash types.Hash
	copy(blockHash[:], data[8:])
	return height, blockHash, nil
}

// DeleteKernelIndex removes the kernel index entry for the given excess signature.
func (bs *BlockStore) DeleteKernelIndex(sig types.Signature) error {
	return bs.db.Delete(kernelKey(sig))
}

func blockKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixBlock)+types.HashSize)
	copy(key, prefixBlock)
	copy(key[len(prefixBlock):], hash[:])
	return key
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(prefixHeight)+8)
	copy(key, prefixHeight)
	binary.BigEndian.PutUint64(key[len(prefixHeight):], height)
	return key
}

func kernelKey(sig types.Signature) []byte {
	sigBytes := sig.Bytes()
	key := make([]byte, len(prefixKernel)+len(sigBytes))
	copy(key, prefixKernel)
	copy(key[len(prefixKernel):], sigBytes)
	return key
}

func kernelLocation(height uint64, blockHash types.Hash) []byte {
	val := make([]byte, 8+types.HashSize)
	binary.BigEndian.PutUint64(val[:8], height)
	copy(val[8:], blockHash[:])
	return val
}

func undoKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixUndo)+types.HashSize)
	copy(key, prefixUndo)
	copy(key[len(prefixUndo):], hash[:])
	return key
}

// PutUndo stores undo data for a block (used for reorgs).
func (bs *BlockStore) PutUndo(hash types.Hash, data []byte) error {
	if err := bs.db.Put(undoKey(hash), data); err != nil {
		return fmt.Errorf("put undo: %w", err)
	}
	return nil
}

// GetUndo retrieves undo data for a block.
func (bs *BlockStore) GetUndo(hash types.Hash) ([]byte, error) {
	data, err := bs.db.Get(undoKey(hash))
	if err != nil {
		return nil, fmt.Errorf("get undo: %w", err)
	}
	return data, nil
}

// DeleteUndo removes undo data for a block.
func (bs *BlockStore) DeleteUndo(hash types.Hash) error {
	return bs.db.Delete(undoKey(hash))
}

// SetCumulativeDifficulty persists the cumulative difficulty.
func (bs *BlockStore) SetCumulativeDifficulty(cumDiff uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], cumDiff)
	return bs.db.Put(keyCumDifficulty, buf[:])
}

// GetCumulativeDifficulty retrieves the cumulative difficulty (0 if unset).
func (bs *BlockStore) GetCumulativeDifficulty() uint64 {
	data, err := bs.db.Get(keyCumDifficulty)
	if err != nil || len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

// SetTotalKernelOffset persists the chain's running total kernel offset.
func (bs *BlockStore) SetTotalKernelOffset(offset types.Hash) error {
	return bs.db.Put(keyTotalOffset, offset[:])
}

// GetTotalKernelOffset retrieves the chain's running total kernel offset
// (zero if unset).
func (bs *BlockStore) GetTotalKernelOffset() types.Hash {
	data, err := bs.db.Get(keyTotalOffset)
	if err != nil || len(data) != types.HashSize {
		return types.Hash{}
	}
	var h types.Hash
	copy(h[:], data)
	return h
}

// PutReorgCheckpoint writes a marker indicating a reorg is in progress. If
// the node crashes during reorg, this marker triggers state recovery on
// restart.
func (bs *BlockStore) PutReorgCheckpoint(forkHeight uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], forkHeight)
	return bs.db.Put(keyReorgCheckpoint, buf[:])
}

// GetReorgCheckpoint returns the fork height and true if a reorg checkpoint exists.
func (bs *BlockStore) GetReorgCheckpoint() (uint64, bool) {
	data, err := bs.db.Get(keyReorgCheckpoint)
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

// DeleteReorgCheckpoint removes the reorg-in-progress marker.
func (bs *BlockStore) DeleteReorgCheckpoint() error {
	return bs.db.Delete(keyReorgCheckpoint)
}
