package fsm

import (
	"context"
	"sync/atomic"

	"github.com/andes-chain/basenode/internal/log"
	"github.com/andes-chain/basenode/internal/transport"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
)

// Transition describes every possible state transition for the node given
// its current state and an event that occurred, ported verbatim from the
// base node's match arms: same states, same event names, same fallthrough
// behavior of staying put and logging.
func Transition(state StateValue, event StateEvent) StateValue {
	switch {
	case state.Kind == KindStarting && event.Kind == EventInitialized:
		return StateValue{Kind: KindInitialSync}

	case state.Kind == KindInitialSync && event.Kind == EventMetadataSynced && event.Sync.Status == SyncBehindHorizon:
		return StateValue{Kind: KindFetchingHorizonState, Horizon: HorizonInfo{HorizonHeight: event.Sync.HorizonHeight}}
	case state.Kind == KindInitialSync && event.Kind == EventMetadataSynced && event.Sync.Status == SyncLagging:
		return StateValue{Kind: KindBlockSync}
	case state.Kind == KindInitialSync && event.Kind == EventMetadataSynced && event.Sync.Status == SyncUpToDate:
		return StateValue{Kind: KindListening}

	case state.Kind == KindFetchingHorizonState && event.Kind == EventHorizonStateFetched:
		return StateValue{Kind: KindBlockSync}

	case state.Kind == KindBlockSync && event.Kind == EventBlocksSynchronized:
		return StateValue{Kind: KindListening}

	case state.Kind == KindListening && event.Kind == EventFallenBehind && event.Sync.Status == SyncBehindHorizon:
		return StateValue{Kind: KindFetchingHorizonState, Horizon: HorizonInfo{HorizonHeight: event.Sync.HorizonHeight}}
	case state.Kind == KindListening && event.Kind == EventFallenBehind && event.Sync.Status == SyncLagging:
		return StateValue{Kind: KindBlockSync}

	case event.Kind == EventFatalError:
		return StateValue{Kind: KindShutdown, Shutdown: ShutdownInfo{Reason: event.Reason}}
	case event.Kind == EventUserQuit:
		return StateValue{Kind: KindShutdown, Shutdown: ShutdownInfo{Reason: "user"}}

	default:
		log.FSM.Warn().
			Str("state", state.String()).
			Str("event", event.Kind.String()).
			Msg("no state transition occurs for event in this state")
		return state
	}
}

// ChainReader is the local chain height the FSM needs to classify a peer's
// reported metadata. A small interface rather than *chain.Chain directly so
// this package never imports internal/chain and stays testable with a fake.
type ChainReader interface {
	Height() uint64
}

// Handler is the per-state protocol implementation: when its state is
// entered, it runs its protocol against the injected Machine and produces
// the event that drives the next Transition.
type Handler interface {
	NextEvent(ctx context.Context, m *Machine, current StateValue) StateEvent
}

// defaultHorizonWindow is the default height gap beyond which InitialSync/Listening
// classify a peer as behind the pruning horizon instead of merely lagging.
const defaultHorizonWindow = 2880

// blockFetchPageSize bounds how many blocks BlockSync requests per round
// trip, mirroring the teacher's SyncRequest.MaxBlocks cap.
const blockFetchPageSize = 500

// Machine holds everything the base node's state handlers share: the
// transport collaborator, the local chain and mempool write paths, and the
// user-initiated shutdown flag checked at every suspension point.
type Machine struct {
	userStopped atomic.Bool

	outbound transport.Outbound
	inbound  transport.Inbound
	chain    ChainReader

	applyHeader func(*block.Header) error
	applyBlock  func(*block.Block) error
	applyTx     func(*tx.Transaction) error

	horizonWindow uint64
}

// NewMachine builds a Machine ready to run. applyHeader/applyBlock/applyTx
// are the node's ingest callbacks (validator pipeline -> chain storage or
// mempool); horizonWindow is the pruning horizon's block count, 0 meaning
// "use the default".
func NewMachine(outbound transport.Outbound, inbound transport.Inbound, chainReader ChainReader,
	applyHeader func(*block.Header) error, applyBlock func(*block.Block) error, applyTx func(*tx.Transaction) error,
	horizonWindow uint64) *Machine {
	if horizonWindow == 0 {
		horizonWindow = defaultHorizonWindow
	}
	return &Machine{
		outbound:      outbound,
		inbound:       inbound,
		chain:         chainReader,
		applyHeader:   applyHeader,
		applyBlock:    applyBlock,
		applyTx:       applyTx,
		horizonWindow: horizonWindow,
	}
}

// Stop sets the interrupt flag. Safe to call from any goroutine at any time;
// the running state handler will observe it at its next suspension point.
func (m *Machine) Stop() {
	m.userStopped.Store(true)
}

// checkInterrupt reports whether the user has requested shutdown, returning
// the FatalError event a state handler should short-circuit to if so.
func (m *Machine) checkInterrupt() (StateEvent, bool) {
	if m.userStopped.Load() {
		return StateEvent{Kind: EventFatalError, Reason: "User interrupted"}, true
	}
	return StateEvent{}, false
}

// classify compares a peer's reported height against the local chain height
// to decide whether it is up to date, lagging, or beyond the horizon.
func (m *Machine) classify(meta transport.ChainMetadata) SyncStatusValue {
	local := m.chain.Height()
	if meta.Height <= local {
		return SyncStatusValue{Status: SyncUpToDate}
	}
	gap := meta.Height - local
	if gap > m.horizonWindow {
		return SyncStatusValue{Status: SyncBehindHorizon, HorizonHeight: meta.Height}
	}
	return SyncStatusValue{Status: SyncLagging}
}

// handlerFor returns the protocol handler for a state kind. Shutdown has no
// handler: Run exits the loop before dispatching to one.
func handlerFor(k Kind) Handler {
	switch k {
	case KindStarting:
		return startingHandler{}
	case KindInitialSync:
		return initialSyncHandler{}
	case KindFetchingHorizonState:
		return fetchingHorizonStateHandler{}
	case KindBlockSync:
		return blockSyncHandler{}
	case KindListening:
		return listeningHandler{}
	default:
		return nil
	}
}

// Run drives the state machine from Starting to Shutdown, dispatching each
// state to its handler and applying Transition to the event it produces.
// It returns the terminal Shutdown state's reason.
func (m *Machine) Run(ctx context.Context) string {
	state := StateValue{Kind: KindStarting}
	for state.Kind != KindShutdown {
		handler := handlerFor(state.Kind)
		event := handler.NextEvent(ctx, m, state)
		log.FSM.Debug().
			Str("state", state.String()).
			Str("event", event.Kind.String()).
			Msg("base node event")
		state = Transition(state, event)
	}
	log.FSM.Info().Str("reason", state.Shutdown.Reason).Msg("base node shutdown")
	return state.Shutdown.Reason
}
