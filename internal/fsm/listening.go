package fsm

import (
	"context"
	"time"
)

// metadataProbeInterval is how often Listening re-checks a peer's chain
// metadata to detect falling behind, mirroring the teacher's DHT-discovery
// and peer-persistence tickers in internal/p2p/node.go.
const metadataProbeInterval = 30 * time.Second

// interruptPollInterval bounds how long a shutdown request can go unnoticed
// while Listening is otherwise idle between gossip and probe events.
const interruptPollInterval = 200 * time.Millisecond

// listeningHandler is the steady state: it drains gossiped blocks and
// transactions as they arrive and periodically probes a peer's chain
// metadata, only returning once that probe detects the node has fallen
// behind (or the node is asked to stop).
type listeningHandler struct{}

func (listeningHandler) NextEvent(ctx context.Context, m *Machine, _ StateValue) StateEvent {
	probe := time.NewTicker(metadataProbeInterval)
	defer probe.Stop()
	interrupt := time.NewTicker(interruptPollInterval)
	defer interrupt.Stop()

	for {
		select {
		case <-ctx.Done():
			return StateEvent{Kind: EventFatalError, Reason: "context cancelled"}

		case <-m.inbound.Done():
			return StateEvent{Kind: EventFatalError, Reason: "transport shut down"}

		case <-interrupt.C:
			if e, interrupted := m.checkInterrupt(); interrupted {
				return e
			}

		case blk := <-m.inbound.Blocks():
			_ = m.applyBlock(blk) // a rejected gossip block does not interrupt listening

		case t := <-m.inbound.Transactions():
			_ = m.applyTx(t) // a rejected gossip transaction does not interrupt listening

		case <-probe.C:
			meta, err := m.outbound.RequestMetadata(ctx)
			if err != nil {
				continue // a single failed probe is not fatal; try again next tick
			}
			status := m.classify(meta)
			if status.Status != SyncUpToDate {
				return StateEvent{Kind: EventFallenBehind, Sync: status}
			}
		}
	}
}
