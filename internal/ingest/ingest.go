// Package ingest declares the handlers a node registers with its transport
// layer to serve inbound requests from peers: chain-metadata probes,
// header/block/UTXO/MMR-node fetches, and mempool stats requests.
// internal/p2p wires these onto concrete libp2p stream handlers.
package ingest

import (
	"github.com/andes-chain/basenode/internal/mempool"
	"github.com/andes-chain/basenode/internal/transport"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

// Handlers holds the plain functions a transport registers as the server
// side of each peer-facing request, following the teacher's
// Syncer.RegisterHandler(provider) pattern of a thin struct of function
// fields rather than an interface with one implementation.
type Handlers struct {
	// OnMetadataRequest answers a peer's chain-metadata probe.
	OnMetadataRequest func() transport.ChainMetadata
	// OnFetchHeaders answers a peer's header-range request.
	OnFetchHeaders func(transport.HeightRange) ([]*block.Header, error)
	// OnFetchBlocks answers a peer's block-range request.
	OnFetchBlocks func(transport.HeightRange) ([]*block.Block, error)
	// OnMempoolStats answers a peer's mempool-stats request.
	OnMempoolStats func() mempool.Stats
	// OnFetchUTXOs answers a horizon-syncing peer's full UTXO set request.
	OnFetchUTXOs func() ([]*tx.TransactionOutput, error)
	// OnFetchMMRNode answers a peer's request for a single MMR node hash at
	// the given position, used to verify horizon state against a header's
	// committed roots without transferring the whole tree.
	OnFetchMMRNode func(pos uint64) (types.Hash, error)
}
