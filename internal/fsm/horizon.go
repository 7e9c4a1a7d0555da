package fsm

import (
	"context"
	"fmt"

	"github.com/andes-chain/basenode/internal/transport"
)

// fetchingHorizonStateHandler downloads headers up to the target horizon
// height and applies each through applyHeader, then fetches the UTXO-set
// snapshot. The snapshot is discarded: it is neither applied nor verified
// against the horizon header's MMR roots. The handler bails out on the
// first error.
type fetchingHorizonStateHandler struct{}

func (fetchingHorizonStateHandler) NextEvent(ctx context.Context, m *Machine, current StateValue) StateEvent {
	if e, interrupted := m.checkInterrupt(); interrupted {
		return e
	}

	headers, err := m.outbound.FetchHeaders(ctx, transport.HeightRange{From: 0, To: current.Horizon.HorizonHeight})
	if err != nil {
		return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("fetch horizon headers: %v", err)}
	}
	for _, h := range headers {
		if e, interrupted := m.checkInterrupt(); interrupted {
			return e
		}
		if err := m.applyHeader(h); err != nil {
			return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("apply horizon header %d: %v", h.Height, err)}
		}
	}

	if e, interrupted := m.checkInterrupt(); interrupted {
		return e
	}
	if _, err := m.outbound.FetchUTXOs(ctx); err != nil {
		return StateEvent{Kind: EventFatalError, Reason: fmt.Sprintf("fetch horizon utxo snapshot: %v", err)}
	}

	return StateEvent{Kind: EventHorizonStateFetched}
}
