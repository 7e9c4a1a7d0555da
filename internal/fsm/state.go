// Package fsm implements the base-node synchronization state machine:
// Starting -> InitialSync -> (FetchingHorizonState | BlockSync | Listening)
// -> Shutdown, driven by typed events each state handler produces.
package fsm

import "strconv"

// Kind identifies which of the base node's states a StateValue represents.
type Kind int

const (
	KindStarting Kind = iota
	KindInitialSync
	KindFetchingHorizonState
	KindBlockSync
	KindListening
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindStarting:
		return "Starting"
	case KindInitialSync:
		return "InitialSync"
	case KindFetchingHorizonState:
		return "FetchingHorizonState"
	case KindBlockSync:
		return "BlockSync"
	case KindListening:
		return "Listening"
	case KindShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// HorizonInfo carries the target height FetchingHorizonState must sync
// headers and UTXO/range-proof snapshots up to.
type HorizonInfo struct {
	HorizonHeight uint64
}

// ListeningInfo carries no data; it exists so Listening's associated value
// has the same shape as the Rust enum variant it mirrors.
type ListeningInfo struct{}

// ShutdownInfo carries the reason the node is terminating.
type ShutdownInfo struct {
	Reason string
}

// StateValue is the FSM's current state plus whatever data that state
// variant carries. Go has no tagged unions, so unlike the Rust
// `BaseNodeState` enum every variant's payload is a field here; only the
// field matching Kind is meaningful at any given time.
type StateValue struct {
	Kind     Kind
	Horizon  HorizonInfo
	Listen   ListeningInfo
	Shutdown ShutdownInfo
}

func (s StateValue) String() string {
	switch s.Kind {
	case KindFetchingHorizonState:
		return "FetchingHorizonState(horizon_height=" + strconv.FormatUint(s.Horizon.HorizonHeight, 10) + ")"
	case KindShutdown:
		return "Shutdown(" + s.Shutdown.Reason + ")"
	default:
		return s.Kind.String()
	}
}
