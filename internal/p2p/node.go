// Package p2p implements peer-to-peer networking using libp2p: GossipSub
// topics for block/transaction propagation, Kademlia DHT peer discovery, and
// stream-based request/response protocols for chain sync. Node implements
// transport.Outbound and transport.Inbound, and Register wires an
// ingest.Handlers onto the corresponding stream handlers.
package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andes-chain/basenode/config"
	klog "github.com/andes-chain/basenode/internal/log"
	"github.com/andes-chain/basenode/internal/peers"
	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
	"github.com/multiformats/go-multiaddr"
)

const (
	// dhtRendezvousFallback is the default DHT namespace when no NetworkID is set.
	dhtRendezvousFallback = "andes-basenode"

	// dhtDiscoveryInterval is how often DHT FindPeers runs.
	dhtDiscoveryInterval = 30 * time.Second

	// seedRetryInterval is how often a failed seed connection is retried.
	seedRetryInterval = 10 * time.Second

	// maxGossipMessageSize bounds a gossiped block/transaction payload,
	// leaving headroom above the consensus block-weight limit for JSON
	// framing overhead.
	maxGossipMessageSize = config.MaxBlockWeight + 64*1024
)

// Config holds P2P node configuration.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []peers.Seed
	NoDiscover bool
	DB         storage.DB // peer persistence; nil disables it
	DHTServer  bool       // run the DHT in server mode (for seeds/bootstrap nodes)
	NetworkID  string     // isolates DHT/discovery per network
	DataDir    string     // where the libp2p transport identity is persisted
}

// Node is a P2P node built on libp2p. It satisfies transport.Outbound and
// transport.Inbound so the FSM can drive sync without importing libp2p.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	dht    *dht.IpfsDHT
	config Config
	ctx    context.Context
	cancel context.CancelFunc

	topicTx    *pubsub.Topic
	topicBlock *pubsub.Topic
	subTx      *pubsub.Subscription
	subBlock   *pubsub.Subscription

	blocksCh chan *block.Block
	txsCh    chan *tx.Transaction
	doneCh   chan struct{}

	peerStore *PeerStore // nil if Config.DB is nil

	mu    sync.RWMutex
	peers map[peer.ID]time.Time
}

// New creates a P2P node with the given config. Call Start to bring up the
// libp2p host.
func New(cfg Config) *Node {
	n := &Node{
		config:   cfg,
		blocksCh: make(chan *block.Block, 64),
		txsCh:    make(chan *tx.Transaction, 64),
		doneCh:   make(chan struct{}),
		peers:    make(map[peer.ID]time.Time),
	}
	if cfg.DB != nil {
		n.peerStore = NewPeerStore(cfg.DB)
	}
	return n
}

func (n *Node) rendezvous() string {
	if n.config.NetworkID != "" {
		return "andes/" + n.config.NetworkID
	}
	return dhtRendezvousFallback
}

// Start initializes the libp2p host, pubsub, and DHT, and begins serving the
// gossip topics. Register should be called afterward to attach request
// handlers.
func (n *Node) Start(ctx context.Context) error {
	n.ctx, n.cancel = context.WithCancel(ctx)

	addr := fmt.Sprintf("/ip4/%s/tcp/%d", n.config.ListenAddr, n.config.Port)
	opts := []libp2p.Option{libp2p.ListenAddrStrings(addr)}

	if n.config.DataDir != "" {
		priv, err := loadOrCreateTransportKey(n.config.DataDir)
		if err != nil {
			return fmt.Errorf("load p2p identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(priv))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create libp2p host: %w", err)
	}
	n.host = h
	h.Network().Notify(&connNotifier{node: n})

	if !n.config.NoDiscover {
		mode := dht.ModeClient
		if n.config.DHTServer {
			mode = dht.ModeServer
		}
		kadDHT, err := dht.New(n.ctx, h, dht.Mode(mode))
		if err != nil {
			h.Close()
			return fmt.Errorf("create kad-dht: %w", err)
		}
		n.dht = kadDHT
		if err := kadDHT.Bootstrap(n.ctx); err != nil {
			h.Close()
			return fmt.Errorf("bootstrap dht: %w", err)
		}
	}

	ps, err := pubsub.NewGossipSub(n.ctx, h, pubsub.WithMaxMessageSize(maxGossipMessageSize))
	if err != nil {
		n.closeDHT()
		h.Close()
		return fmt.Errorf("create pubsub: %w", err)
	}
	n.pubsub = ps

	if err := n.joinTopics(); err != nil {
		n.closeDHT()
		h.Close()
		return err
	}

	go n.readBlocks()
	go n.readTxs()

	if len(n.config.Seeds) > 0 {
		n.connectSeedsOnce()
		go n.connectSeedsLoop()
	}
	if !n.config.NoDiscover {
		go n.runDHTDiscovery()
	}
	if n.peerStore != nil {
		go n.runPersistLoop()
	}

	return nil
}

// Stop shuts down the node, closing gossip subscriptions, the DHT, and the
// underlying host, and signals Done() to any goroutine blocked reading it.
func (n *Node) Stop() error {
	n.persistPeers()
	if n.cancel != nil {
		n.cancel()
	}
	if n.subTx != nil {
		n.subTx.Cancel()
	}
	if n.subBlock != nil {
		n.subBlock.Cancel()
	}
	n.closeDHT()
	close(n.doneCh)
	if n.host != nil {
		return n.host.Close()
	}
	return nil
}

// Done implements transport.Inbound: it closes once Stop has been called.
func (n *Node) Done() <-chan struct{} { return n.doneCh }

// Host exposes the underlying libp2p host for callers that need it (e.g.
// printing the node's dialable multiaddrs at startup).
func (n *Node) Host() host.Host { return n.host }

func (n *Node) joinTopics() error {
	var err error
	n.topicTx, err = n.pubsub.Join(TopicTransactions)
	if err != nil {
		return fmt.Errorf("join tx topic: %w", err)
	}
	n.topicBlock, err = n.pubsub.Join(TopicBlocks)
	if err != nil {
		return fmt.Errorf("join block topic: %w", err)
	}
	if n.subTx, err = n.topicTx.Subscribe(); err != nil {
		return fmt.Errorf("subscribe tx: %w", err)
	}
	if n.subBlock, err = n.topicBlock.Subscribe(); err != nil {
		return fmt.Errorf("subscribe block: %w", err)
	}
	return nil
}

func (n *Node) addPeer(id peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[id] = time.Now()
}

func (n *Node) removePeer(id peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, id)
}

// PeerCount returns the number of currently connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

func (n *Node) closeDHT() {
	if n.dht != nil {
		n.dht.Close()
		n.dht = nil
	}
}

func (n *Node) connectSeedsOnce() bool {
	logger := klog.WithComponent("p2p")
	connected := false
	for _, s := range n.config.Seeds {
		info, err := seedAddrInfo(s)
		if err != nil {
			logger.Warn().Str("addr", s.Address.String()).Err(err).Msg("bad seed address")
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
		err = n.host.Connect(ctx, *info)
		cancel()
		if err != nil {
			logger.Warn().Str("peer", info.ID.String()).Err(err).Msg("seed connect failed")
			continue
		}
		n.addPeer(info.ID)
		connected = true
	}
	return connected
}

func (n *Node) connectSeedsLoop() {
	ticker := time.NewTicker(seedRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if n.PeerCount() == 0 {
				n.connectSeedsOnce()
			}
		}
	}
}

func (n *Node) runDHTDiscovery() {
	if n.dht == nil {
		return
	}
	routingDiscovery := drouting.NewRoutingDiscovery(n.dht)
	dutil.Advertise(n.ctx, routingDiscovery, n.rendezvous())

	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.findDHTPeers(routingDiscovery)
		}
	}
}

func (n *Node) findDHTPeers(routingDiscovery *drouting.RoutingDiscovery) {
	ctx, cancel := context.WithTimeout(n.ctx, 20*time.Second)
	defer cancel()

	peerCh, err := routingDiscovery.FindPeers(ctx, n.rendezvous())
	if err != nil {
		return
	}
	for p := range peerCh {
		if p.ID == n.host.ID() {
			continue
		}
		connectCtx, connectCancel := context.WithTimeout(n.ctx, 5*time.Second)
		if err := n.host.Connect(connectCtx, p); err == nil {
			n.addPeer(p.ID)
		}
		connectCancel()
	}
}

// connNotifier tracks connection lifecycle events so the node's peer set
// reflects the libp2p swarm without polling it.
type connNotifier struct{ node *Node }

func (c *connNotifier) Connected(_ network.Network, conn network.Conn) {
	if conn.RemotePeer() == c.node.host.ID() {
		return
	}
	c.node.addPeer(conn.RemotePeer())
}

func (c *connNotifier) Disconnected(net network.Network, conn network.Conn) {
	if len(net.ConnsToPeer(conn.RemotePeer())) == 0 {
		c.node.removePeer(conn.RemotePeer())
	}
}

func (c *connNotifier) Listen(network.Network, multiaddr.Multiaddr)      {}
func (c *connNotifier) ListenClose(network.Network, multiaddr.Multiaddr) {}

// seedAddrInfo derives a dialable libp2p AddrInfo from a seed. The seed's
// transport peer ID is carried in its multiaddr (a standard "/p2p/<id>"
// component); PublicKey is the seed's chain identity key, used by the
// application-level handshake, not by libp2p's own connection handshake.
func seedAddrInfo(s peers.Seed) (*peer.AddrInfo, error) {
	return peer.AddrInfoFromP2pAddr(s.Address)
}

func loadOrCreateTransportKey(dataDir string) (libp2pcrypto.PrivKey, error) {
	keyPath := filepath.Join(dataDir, "p2p_identity.key")

	data, err := os.ReadFile(keyPath)
	if err == nil {
		keyBytes, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode p2p identity: %w", err)
		}
		return libp2pcrypto.UnmarshalEd25519PrivateKey(keyBytes)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read p2p identity: %w", err)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate p2p identity: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal p2p identity: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0600); err != nil {
		return nil, fmt.Errorf("save p2p identity: %w", err)
	}
	return priv, nil
}
