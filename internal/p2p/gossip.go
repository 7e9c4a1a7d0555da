package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/andes-chain/basenode/pkg/block"
	"github.com/andes-chain/basenode/pkg/tx"
)

// Blocks implements transport.Inbound: gossiped blocks decoded off the
// blocks topic are delivered here for the FSM's Listening state to apply.
func (n *Node) Blocks() <-chan *block.Block { return n.blocksCh }

// Transactions implements transport.Inbound.
func (n *Node) Transactions() <-chan *tx.Transaction { return n.txsCh }

// BroadcastBlock publishes a block to the gossip network.
func (n *Node) BroadcastBlock(b *block.Block) error {
	if n.topicBlock == nil {
		return fmt.Errorf("p2p node not started")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	return n.topicBlock.Publish(n.ctx, data)
}

// BroadcastTx publishes a transaction to the gossip network.
func (n *Node) BroadcastTx(t *tx.Transaction) error {
	if n.topicTx == nil {
		return fmt.Errorf("p2p node not started")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tx: %w", err)
	}
	return n.topicTx.Publish(n.ctx, data)
}

func (n *Node) readBlocks() {
	for {
		msg, err := n.subBlock.Next(n.ctx)
		if err != nil {
			return // context cancelled
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		var b block.Block
		if err := json.Unmarshal(msg.Data, &b); err != nil {
			continue // malformed gossip is dropped, not fatal
		}
		n.addPeer(msg.ReceivedFrom)
		select {
		case n.blocksCh <- &b:
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) readTxs() {
	for {
		msg, err := n.subTx.Next(n.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		var t tx.Transaction
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			continue
		}
		n.addPeer(msg.ReceivedFrom)
		select {
		case n.txsCh <- &t:
		case <-n.ctx.Done():
			return
		}
	}
}
