package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"venomqa.dev/venomqa/rollback"
)

// Queue is a deep-copy-rollback in-memory FIFO, for actions under test that
// enqueue or dequeue work items without a real broker.
type Queue struct {
	items [][]byte
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push enqueues item at the tail.
func (q *Queue) Push(item []byte) {
	q.items = append(q.items, append([]byte(nil), item...))
}

// Pop dequeues the head item, reporting false if the queue is empty.
func (q *Queue) Pop() ([]byte, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the current depth.
func (q *Queue) Len() int { return len(q.items) }

// Checkpoint deep-copies the item slice, wrapped in a rollback.OpaqueToken.
func (q *Queue) Checkpoint(ctx context.Context) (rollback.Token, error) {
	cp := make([][]byte, len(q.items))
	for i, item := range q.items {
		cp[i] = append([]byte(nil), item...)
	}
	return rollback.OpaqueToken{Value: cp}, nil
}

// Rollback replaces the live queue with the token's copy.
func (q *Queue) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("memory.Queue: rollback token of wrong type %T", token)
	}
	items, ok := tok.Value.([][]byte)
	if !ok {
		return fmt.Errorf("memory.Queue: rollback token holds wrong value type %T", tok.Value)
	}
	q.items = items
	return nil
}

// Observe returns depth and a content hash of the items in order, so two
// queues with the same items in a different order fingerprint differently —
// order is observable queue semantics, unlike KV's key set.
func (q *Queue) Observe(ctx context.Context) (map[string]interface{}, error) {
	h := sha256.New()
	for _, item := range q.items {
		h.Write(item)
		h.Write([]byte{0})
	}
	return map[string]interface{}{
		"depth": len(q.items),
		"hash":  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Capabilities reports unconstrained rollback order.
func (q *Queue) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostCheap}
}
