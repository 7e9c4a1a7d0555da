package fsm

import (
	"context"
	"testing"
	"time"

	"github.com/andes-chain/basenode/internal/transport"
	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
	"github.com/andes-chain/basenode/pkg/types"
)

type fakeChain struct{ height uint64 }

func (f *fakeChain) Height() uint64 { return f.height }

type fakeOutbound struct {
	metaHeight uint64
}

func (f *fakeOutbound) RequestMetadata(context.Context) (transport.ChainMetadata, error) {
	return transport.ChainMetadata{Height: f.metaHeight}, nil
}
func (f *fakeOutbound) FetchHeaders(context.Context, transport.HeightRange) ([]*block.Header, error) {
	return nil, nil
}
func (f *fakeOutbound) FetchBlocks(context.Context, transport.HeightRange) ([]*block.Block, error) {
	return nil, nil
}
func (f *fakeOutbound) FetchUTXOs(context.Context) ([]*tx.TransactionOutput, error) { return nil, nil }
func (f *fakeOutbound) FetchMMRNode(context.Context, uint64) (types.Hash, error) {
	return types.Hash{}, nil
}

type fakeInbound struct {
	blocks chan *block.Block
	txs    chan *tx.Transaction
	done   chan struct{}
}

func newFakeInbound() *fakeInbound {
	return &fakeInbound{
		blocks: make(chan *block.Block),
		txs:    make(chan *tx.Transaction),
		done:   make(chan struct{}),
	}
}

func (f *fakeInbound) Blocks() <-chan *block.Block           { return f.blocks }
func (f *fakeInbound) Transactions() <-chan *tx.Transaction { return f.txs }
func (f *fakeInbound) Done() <-chan struct{}                { return f.done }

// TestMachine_RunReachesListeningThenShutsDownOnUserQuit drives the full
// Starting -> InitialSync -> Listening path (peer reports the same height
// as local, so the node is immediately up to date) and confirms Stop()
// reaches Shutdown promptly.
func TestMachine_RunReachesListeningThenShutsDownOnUserQuit(t *testing.T) {
	chain := &fakeChain{height: 10}
	outbound := &fakeOutbound{metaHeight: 10}
	inbound := newFakeInbound()

	m := NewMachine(outbound, inbound, chain,
		func(*block.Header) error { return nil },
		func(*block.Block) error { return nil },
		func(*tx.Transaction) error { return nil },
		0)

	done := make(chan string, 1)
	go func() { done <- m.Run(context.Background()) }()

	// Give the machine time to reach Listening, then request shutdown.
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	select {
	case reason := <-done:
		if reason != "User interrupted" {
			t.Fatalf("shutdown reason = %q, want %q", reason, "User interrupted")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not reach Shutdown within 2s of Stop()")
	}
}

// TestMachine_RunFallsBackToBlockSyncWhenLagging verifies a peer reporting
// a height within the horizon window drives InitialSync -> BlockSync, and
// that BlockSync's empty-page response surfaces as a FatalError (no blocks
// to apply) so the run terminates deterministically for this test.
func TestMachine_RunFallsBackToBlockSyncWhenLagging(t *testing.T) {
	chain := &fakeChain{height: 10}
	outbound := &fakeOutbound{metaHeight: 20}
	inbound := newFakeInbound()

	m := NewMachine(outbound, inbound, chain,
		func(*block.Header) error { return nil },
		func(*block.Block) error { return nil },
		func(*tx.Transaction) error { return nil },
		0)

	reason := m.Run(context.Background())
	if reason == "" {
		t.Fatal("expected a non-empty shutdown reason from the stalled BlockSync round")
	}
}
