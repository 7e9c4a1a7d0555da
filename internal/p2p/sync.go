package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andes-chain/basenode/internal/ingest"
	"github.com/andes-chain/basenode/internal/transport"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	syncReadTimeout       = 30 * time.Second
	maxSyncResponseBytes  = 16 * 1024 * 1024
	maxHeadersPerResponse = 500
)

// ErrNoPeers is returned by the request methods when no peer is connected.
var ErrNoPeers = errors.New("p2p: no connected peers")

// anyPeer returns an arbitrary connected peer to sync against. The FSM
// treats every configured peer as equally authoritative (consensus, not
// trust, decides what is accepted), so any connected peer will do.
func (n *Node) anyPeer() (peer.ID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for id := range n.peers {
		return id, nil
	}
	return "", ErrNoPeers
}

func doRequest(ctx context.Context, n *Node, proto protocol.ID, req any, resp any) error {
	target, err := n.anyPeer()
	if err != nil {
		return err
	}
	stream, err := n.host.NewStream(ctx, target, proto)
	if err != nil {
		return fmt.Errorf("open %s stream: %w", proto, err)
	}
	defer stream.Close()

	if req != nil {
		if err := json.NewEncoder(stream).Encode(req); err != nil {
			return fmt.Errorf("send %s request: %w", proto, err)
		}
	}
	_ = stream.CloseWrite()

	_ = stream.SetReadDeadline(time.Now().Add(syncReadTimeout))
	if err := json.NewDecoder(io.LimitReader(stream, maxSyncResponseBytes)).Decode(resp); err != nil {
		return fmt.Errorf("read %s response: %w", proto, err)
	}
	return nil
}

// RequestMetadata implements transport.Outbound.
func (n *Node) RequestMetadata(ctx context.Context) (transport.ChainMetadata, error) {
	var resp transport.ChainMetadata
	err := doRequest(ctx, n, MetadataProtocol, nil, &resp)
	return resp, err
}

// FetchHeaders implements transport.Outbound.
func (n *Node) FetchHeaders(ctx context.Context, r transport.HeightRange) ([]*block.Header, error) {
	var resp []*block.Header
	err := doRequest(ctx, n, HeadersProtocol, rangeRequest{From: r.From, To: r.To}, &resp)
	return resp, err
}

// FetchBlocks implements transport.Outbound.
func (n *Node) FetchBlocks(ctx context.Context, r transport.HeightRange) ([]*block.Block, error) {
	var resp []*block.Block
	err := doRequest(ctx, n, SyncProtocol, rangeRequest{From: r.From, To: r.To}, &resp)
	return resp, err
}

// FetchUTXOs implements transport.Outbound.
func (n *Node) FetchUTXOs(ctx context.Context) ([]*tx.TransactionOutput, error) {
	var resp []*tx.TransactionOutput
	err := doRequest(ctx, n, UTXOProtocol, nil, &resp)
	return resp, err
}

// FetchMMRNode implements transport.Outbound.
func (n *Node) FetchMMRNode(ctx context.Context, pos uint64) (types.Hash, error) {
	var resp types.Hash
	err := doRequest(ctx, n, MMRNodeProtocol, mmrNodeRequest{Position: pos}, &resp)
	return resp, err
}

// Register attaches h's handlers to this node's stream protocols, so this
// node answers peers' requests the same way it issues them.
func (n *Node) Register(h ingest.Handlers) {
	if h.OnMetadataRequest != nil {
		n.host.SetStreamHandler(MetadataProtocol, func(s network.Stream) {
			defer s.Close()
			_ = json.NewEncoder(s).Encode(h.OnMetadataRequest())
		})
	}
	if h.OnFetchHeaders != nil {
		n.host.SetStreamHandler(HeadersProtocol, func(s network.Stream) {
			defer s.Close()
			var req rangeRequest
			if err := json.NewDecoder(io.LimitReader(s, 4096)).Decode(&req); err != nil {
				return
			}
			headers, err := h.OnFetchHeaders(transport.HeightRange{From: req.From, To: req.To})
			if err != nil {
				return
			}
			_ = json.NewEncoder(s).Encode(headers)
		})
	}
	if h.OnFetchBlocks != nil {
		n.host.SetStreamHandler(SyncProtocol, func(s network.Stream) {
			defer s.Close()
			var req rangeRequest
			if err := json.NewDecoder(io.LimitReader(s, 4096)).Decode(&req); err != nil {
				return
			}
			if req.To > req.From+maxHeadersPerResponse {
				req.To = req.From + maxHeadersPerResponse
			}
			blocks, err := h.OnFetchBlocks(transport.HeightRange{From: req.From, To: req.To})
			if err != nil {
				return
			}
			_ = json.NewEncoder(s).Encode(blocks)
		})
	}
	if h.OnFetchUTXOs != nil {
		n.host.SetStreamHandler(UTXOProtocol, func(s network.Stream) {
			defer s.Close()
			outputs, err := h.OnFetchUTXOs()
			if err != nil {
				return
			}
			_ = json.NewEncoder(s).Encode(outputs)
		})
	}
	if h.OnFetchMMRNode != nil {
		n.host.SetStreamHandler(MMRNodeProtocol, func(s network.Stream) {
			defer s.Close()
			var req mmrNodeRequest
			if err := json.NewDecoder(io.LimitReader(s, 256)).Decode(&req); err != nil {
				return
			}
			hash, err := h.OnFetchMMRNode(req.Position)
			if err != nil {
				return
			}
			_ = json.NewEncoder(s).Encode(hash)
		})
	}
}
