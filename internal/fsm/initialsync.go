package fsm

import (
	"context"
	"fmt"
)

// initialSyncHandler queries a peer for its current chain metadata and
// classifies the local chain as up to date, lagging, or behind the pruning
// horizon.
type initialSyncHandler struct{}

func (initialSyncHandler) NextEvent(ctx context.Context, m *Machine, _ StateValue) StateEvent {
	if e, interrupted := m.checkInterrupt(); interrupted {
		return e
	}

	meta, err := m.outbound.RequestMetadata(ctx)
	if err != nil {
		return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("request chain metadata: %v", err)}
	}

	return StateEvent{Kind: EventMetadataSynced, Sync: m.classify(meta)}
}
