package p2p

import "github.com/libp2p/go-libp2p/core/protocol"

// GossipSub topic names.
const (
	TopicTransactions = "/andes/tx/1.0.0"
	TopicBlocks       = "/andes/block/1.0.0"
)

// Stream protocol IDs for the request/response side of transport.Outbound.
const (
	// MetadataProtocol answers a peer's chain-metadata probe.
	MetadataProtocol = protocol.ID("/andes/metadata/1.0.0")
	// HeadersProtocol answers a header-range request.
	HeadersProtocol = protocol.ID("/andes/headers/1.0.0")
	// SyncProtocol answers a block-range request.
	SyncProtocol = protocol.ID("/andes/sync/1.0.0")
	// UTXOProtocol answers a full-UTXO-set request for horizon sync.
	UTXOProtocol = protocol.ID("/andes/utxo/1.0.0")
	// MMRNodeProtocol answers a single MMR-node-hash request.
	MMRNodeProtocol = protocol.ID("/andes/mmrnode/1.0.0")
)

// ProtocolVersion is the protocol version advertised during discovery.
const ProtocolVersion uint32 = 1

// rangeRequest is the wire shape of a HeightRange request, shared by the
// headers and block sync protocols.
type rangeRequest struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// mmrNodeRequest asks for the hash at a single MMR position.
type mmrNodeRequest struct {
	Position uint64 `json:"position"`
}
