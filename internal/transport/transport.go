// Package transport declares the collaborator interfaces the sync state
// machine uses to talk to peers, without importing any concrete networking
// stack. internal/p2p wires these to libp2p streams and gossip; tests wire
// them to fakes.
package transport

import (
	"context"

	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// HeightRange selects a contiguous span of block heights, inclusive on both
// ends. To is 0 to mean "through the peer's current tip".
type HeightRange struct {
	From uint64
	To   uint64
}

// ChainMetadata is a peer's self-reported chain state, used to decide
// whether this node has fallen behind and by how much.
type ChainMetadata struct {
	Height                uint64
	TipHash               types.Hash
	AccumulatedDifficulty uint64
}

// Outbound is every request the sync state machine can issue to a single
// peer. Each call blocks until the response arrives, the context is
// cancelled, or the peer errors — mirroring the teacher's
// Syncer.RequestBlocks(ctx, ...) shape, generalized across the five request
// kinds the FSM needs.
type Outbound interface {
	// RequestMetadata asks the peer for its current chain tip and
	// accumulated difficulty.
	RequestMetadata(ctx context.Context) (ChainMetadata, error)
	// FetchHeaders returns headers for r, without bodies.
	FetchHeaders(ctx context.Context, r HeightRange) ([]*block.Header, error)
	// FetchBlocks returns full blocks (header + body) for r.
	FetchBlocks(ctx context.Context, r HeightRange) ([]*block.Block, error)
	// FetchUTXOs returns the peer's live output set, used during horizon
	// (pruned) sync to seed local UTXO state without replaying history.
	FetchUTXOs(ctx context.Context) ([]*tx.TransactionOutput, error)
	// FetchMMRNode returns the hash stored at the given MMR node position,
	// used to verify a peer's claimed roots during horizon sync.
	FetchMMRNode(ctx context.Context, pos uint64) (types.Hash, error)
}

// Inbound is the set of asynchronous events the sync state machine reacts
// to while in steady-state listening: new blocks and transactions gossiped
// by peers, and the node's own shutdown signal.
type Inbound interface {
	// Blocks yields blocks received via gossip as they arrive.
	Blocks() <-chan *block.Block
	// Transactions yields transactions received via gossip as they arrive.
	Transactions() <-chan *tx.Transaction
	// Done is closed when the node is shutting down and every consumer of
	// Inbound should stop selecting on the other two channels.
	Done() <-chan struct{}
}
