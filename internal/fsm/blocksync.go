package fsm

import (
	"context"
	"fmt"

	"github.com/andes-chain/basenode/internal/transport"
)

// blockSyncHandler requests full blocks by height range, page by page,
// until the local chain catches up to the peer's tip observed at the start
// of this round. A later round picks up any further blocks the peer has
// produced meanwhile — BlockSync has no associated state, so "how far to
// go" is always re-queried rather than carried across Transition calls.
type blockSyncHandler struct{}

func (blockSyncHandler) NextEvent(ctx context.Context, m *Machine, _ StateValue) StateEvent {
	if e, interrupted := m.checkInterrupt(); interrupted {
		return e
	}

	meta, err := m.outbound.RequestMetadata(ctx)
	if err != nil {
		return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("request chain metadata: %v", err)}
	}

	for {
		if e, interrupted := m.checkInterrupt(); interrupted {
			return e
		}

		local := m.chain.Height()
		if local >= meta.Height {
			break
		}

		to := local + blockFetchPageSize
		if to > meta.Height {
			to = meta.Height
		}
		blocks, err := m.outbound.FetchBlocks(ctx, transport.HeightRange{From: local + 1, To: to})
		if err != nil {
			return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("fetch blocks %d-%d: %v", local+1, to, err)}
		}
		if len(blocks) == 0 {
			return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("peer returned no blocks for range %d-%d", local+1, to)}
		}
		for _, blk := range blocks {
			if err := m.applyBlock(blk); err != nil {
				return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("apply block %d: %v", blk.Header.Height, err)}
			}
		}
	}

	return StateEvent{Kind: EventBlocksSynchronized}
}
