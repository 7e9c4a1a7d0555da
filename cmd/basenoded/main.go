// Command basenoded runs an Andes base node: chain storage, mempool, the
// sync state machine, and libp2p networking. It has no wallet, no miner, and
// no RPC surface — those are out of scope for a base-node core.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/andes-chain/basenode/config"
	"github.com/andes-chain/basenode/internal/chain"
	"github.com/andes-chain/basenode/internal/consensus"
	"github.com/andes-chain/basenode/internal/fsm"
	"github.com/andes-chain/basenode/internal/identity"
	"github.com/andes-chain/basenode/internal/ingest"
	klog "github.com/andes-chain/basenode/internal/log"
	"github.com/andes-chain/basenode/internal/mempool"
	"github.com/andes-chain/basenode/internal/p2p"
	"github.com/andes-chain/basenode/internal/peers"
	"github.com/andes-chain/basenode/internal/storage"
	"github.com/andes-chain/basenode/internal/transport"
	"github.com/andes-chain/basenode/internal/utxo"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

func main() {
	network := flag.String("network", "mainnet", "mainnet or testnet")
	dataDir := flag.String("datadir", config.DefaultDataDir(), "data directory")
	listenAddr := flag.String("listen", "0.0.0.0", "p2p listen address")
	port := flag.Int("port", 0, "p2p listen port (0 = network default)")
	seedFlags := flagList{}
	flag.Var(&seedFlags, "seed", "peer seed, \"<pubkey_hex>::<multiaddr>\" (repeatable)")
	noDiscover := flag.Bool("no-discover", false, "disable DHT peer discovery")
	dhtServer := flag.Bool("dht-server", false, "run the DHT in server mode")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	netType := config.NetworkType(*network)
	cfg := config.Default(netType)
	cfg.DataDir = *dataDir
	cfg.P2P.ListenAddr = *listenAddr
	if *port != 0 {
		cfg.P2P.Port = *port
	}
	cfg.P2P.NoDiscover = *noDiscover
	cfg.P2P.DHTServer = *dhtServer
	cfg.Log.Level = *logLevel

	if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "create logs dir: %v\n", err)
		os.Exit(1)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, filepath.Join(cfg.LogsDir(), "basenode.log")); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	if netType == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	genesis := config.GenesisFor(netType)
	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(netType)).
		Int("block_time", genesis.Protocol.Consensus.TargetBlockTime).
		Msg("starting andes base node")

	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ChainDataDir()).Msg("open database")
	}
	defer db.Close()

	utxoStore := utxo.NewStore(db)

	engine, err := consensus.NewPoW(
		genesis.Protocol.Consensus.InitialDifficulty,
		genesis.Protocol.Consensus.BlockWindow,
		genesis.Protocol.Consensus.TargetBlockTime,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("create consensus engine")
	}

	ch, err := chain.New(types.ChainID{}, db, utxoStore, engine)
	if err != nil {
		logger.Fatal().Err(err).Msg("create chain")
	}
	ch.SetConsensusRules(genesis.Protocol.Consensus)

	if ch.State().IsGenesis() {
		if err := ch.InitFromGenesis(genesis); err != nil {
			logger.Fatal().Err(err).Msg("init from genesis")
		}
		logger.Info().Msg("chain initialized from genesis")
	} else {
		logger.Info().Uint64("height", ch.Height()).Msg("chain resumed from database")
	}

	diffAdj := consensus.NewDiffAdjManager(ch, genesis.Protocol.Consensus.BlockWindow,
		int64(genesis.Protocol.Consensus.TargetBlockTime))
	if err := ch.SetDiffAdjManager(diffAdj); err != nil {
		logger.Fatal().Err(err).Msg("bind difficulty manager")
	}

	pool := mempool.New(utxoStore, ch.Height, 5000, 2000, mempool.DefaultReorgTTL)

	nodeID, err := identity.Load(filepath.Join(cfg.ChainDataDir(), "identity.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("load node identity")
	}
	logger.Info().Str("node_id", nodeID.NodeID.String()).Msg("node identity loaded")

	seeds := append(peers.ParseSeeds(flag.Args()), peers.ParseSeeds(seedFlags)...)

	p2pNode := p2p.New(p2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      seeds,
		NoDiscover: cfg.P2P.NoDiscover,
		DB:         db,
		DHTServer:  cfg.P2P.DHTServer,
		NetworkID:  genesis.ChainID,
		DataDir:    cfg.ChainDataDir(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p2pNode.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start p2p node")
	}
	defer p2pNode.Stop()

	p2pNode.Register(ingest.Handlers{
		OnMetadataRequest: func() transport.ChainMetadata {
			return transport.ChainMetadata{
				Height:                ch.Height(),
				TipHash:               ch.TipHash(),
				AccumulatedDifficulty: ch.State().CumulativeDifficulty,
			}
		},
		OnFetchHeaders: func(r transport.HeightRange) ([]*block.Header, error) {
			to := r.To
			if to == 0 || to > ch.Height() {
				to = ch.Height()
			}
			headers := make([]*block.Header, 0, to-r.From+1)
			for h := r.From; h <= to; h++ {
				blk, err := ch.GetBlockByHeight(h)
				if err != nil {
					break
				}
				headers = append(headers, blk.Header)
			}
			return headers, nil
		},
		OnFetchBlocks: func(r transport.HeightRange) ([]*block.Block, error) {
			to := r.To
			if to == 0 || to > ch.Height() {
				to = ch.Height()
			}
			blocks := make([]*block.Block, 0, to-r.From+1)
			for h := r.From; h <= to; h++ {
				blk, err := ch.GetBlockByHeight(h)
				if err != nil {
					break
				}
				blocks = append(blocks, blk)
			}
			return blocks, nil
		},
		OnMempoolStats: pool.Stats,
		OnFetchUTXOs: func() ([]*tx.TransactionOutput, error) {
			var outs []*tx.TransactionOutput
			err := utxoStore.ForEach(func(o *utxo.Output) error {
				outs = append(outs, &tx.TransactionOutput{
					Features:   o.Features,
					Commitment: o.Commitment,
					Maturity:   o.Maturity,
				})
				return nil
			})
			return outs, err
		},
	})

	machine := fsm.NewMachine(p2pNode, p2pNode, ch,
		func(*block.Header) error {
			// Horizon-sync header storage is not implemented: this chain
			// keeps no pruned header-only table, only full blocks. A node
			// that falls behind the horizon cannot yet fast-forward on
			// headers alone.
			return fmt.Errorf("horizon header sync not supported")
		},
		func(blk *block.Block) error {
			_, err := ch.AddBlock(blk)
			if err == nil {
				_ = pool.ProcessPublishedBlock(blk)
			}
			return err
		},
		func(t *tx.Transaction) error {
			return pool.Insert(t)
		},
		0,
	)

	done := make(chan string, 1)
	go func() { done <- machine.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		machine.Stop()
		cancel()
		<-done
	case reason := <-done:
		logger.Info().Str("reason", reason).Msg("state machine exited")
	}

	logger.Info().
		Uint64("height", ch.Height()).
		Int("peers", p2pNode.PeerCount()).
		Dur("uptime", time.Since(startTime)).
		Msg("shutting down")
}

var startTime = loadStartTime()

func loadStartTime() time.Time { return time.Now() }

// flagList collects a repeatable -flag value into a slice.
type flagList []string

func (f *flagList) String() string { return fmt.Sprint([]string(*f)) }
func (f *flagList) Set(v string) error {
	*f = append(*f, v)
	return nil
}
