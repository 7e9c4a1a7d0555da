package fsm

import "context"

// startingHandler is the initial state: it performs no protocol of its own
// and immediately signals that startup is complete.
type startingHandler struct{}

func (startingHandler) NextEvent(_ context.Context, _ *Machine, _ StateValue) StateEvent {
	return StateEvent{Kind: EventInitialized}
}
