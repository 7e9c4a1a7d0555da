// Package block defines the block data model: a header committing to four
// Merkle Mountain Range roots plus the aggregate transaction body the header
// commits to.
package block

import (
	"encoding/binary"

	"github.com/andes-chain/basenode/pkg/crypto"
	"github.com/andes-chain/basenode/pkg/types"
)

// HeaderVersion is the current block header wire version.
const HeaderVersion = 1

// Header is a block header. It commits to the chain's complete state at this
// height via four independent MMR roots rather than a single transaction
// merkle root: the output set, the range proof set, the kernel set and the
// header chain itself. Keeping them separate lets a pruned node reconstruct
// and verify any one of the four without needing the others.
type Header struct {
	Version    uint32     `json:"version"`
	PrevHash   types.Hash `json:"prev_hash"`
	Height     uint64     `json:"height"`
	Timestamp  uint64     `json:"timestamp"`

	// OutputMMRRoot commits to every unspent-output commitment at this
	// height, in insertion order.
	OutputMMRRoot types.Hash `json:"output_mmr_root"`
	// RangeProofMMRRoot commits to the range proof of every output at this
	// height, in the same order as OutputMMRRoot.
	RangeProofMMRRoot types.Hash `json:"range_proof_mmr_root"`
	// KernelMMRRoot commits to every kernel ever seen on this chain.
	KernelMMRRoot types.Hash `json:"kernel_mmr_root"`
	// HeaderMMRRoot commits to every prior header, letting a horizon-synced
	// node verify a header's position in the chain without holding the
	// full header history.
	HeaderMMRRoot types.Hash `json:"header_mmr_root"`

	// TotalKernelOffset is the sum of every kernel offset bound into this
	// block, carried forward from the previous header's total. It lets a
	// verifier check the chain's aggregate excess without replaying every
	// transaction since genesis.
	TotalKernelOffset types.Hash `json:"total_kernel_offset"`

	Difficulty uint64 `json:"difficulty"`
	Nonce      uint64 `json:"nonce"`
}

// SigningBytes returns the canonical little-endian byte encoding used to
// hash the header, including the nonce. Consensus engines that mine by
// iterating the nonce hash a precomputed prefix of these same bytes instead
// of calling this method per attempt; see consensus.signingPrefix.
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 4+32+8+8+32*5+8+8)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	buf = append(buf, h.OutputMMRRoot[:]...)
	buf = append(buf, h.RangeProofMMRRoot[:]...)
	buf = append(buf, h.KernelMMRRoot[:]...)
	buf = append(buf, h.HeaderMMRRoot[:]...)
	buf = append(buf, h.TotalKernelOffset[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Difficulty)
	buf = binary.LittleEndian.AppendUint64(buf, h.Nonce)
	return buf
}

// Hash returns the header's block hash.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}
