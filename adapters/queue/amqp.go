package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/streadway/amqp"

	"venomqa.dev/venomqa/rollback"
)

// Channel is the subset of *amqp.Channel this adapter needs, grounded on
// queue/amqp_interface.go's AMQPChannel dependency-injection interface so
// tests can supply a mock channel instead of a live broker connection.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// AMQPAdapter is a RabbitMQ-backed queue. AMQP has no way to peek or list a
// queue's contents without consuming them, so Checkpoint/Rollback/Observe
// all operate on an in-memory mirror the adapter itself maintains — every
// Push appends to the mirror; every successful Pop removes its head. This
// makes the adapter's own view of the queue, not the broker's, the
// fingerprinted state (spec.md §4.1: "deep copy of the mirrored in-memory
// queue view").
type AMQPAdapter struct {
	channel Channel
	queue   string

	mirror [][]byte
}

// NewAMQP declares queue (durable, non-exclusive) on channel and wraps it.
func NewAMQP(channel Channel, queue string) (*AMQPAdapter, error) {
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue.AMQPAdapter: declare %s: %w", queue, err)
	}
	return &AMQPAdapter{channel: channel, queue: queue}, nil
}

// Push publishes item to the queue and records it in the mirror.
func (a *AMQPAdapter) Push(item []byte) error {
	if err := a.channel.Publish("", a.queue, false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        item,
	}); err != nil {
		return fmt.Errorf("queue.AMQPAdapter: publish: %w", err)
	}
	a.mirror = append(a.mirror, append([]byte(nil), item...))
	return nil
}

// Pop consumes one message from the queue, acknowledges it, and removes the
// mirror's head. Reports false if the queue is empty within the supplied
// context's deadline.
func (a *AMQPAdapter) Pop(ctx context.Context) ([]byte, bool, error) {
	deliveries, err := a.channel.Consume(a.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, false, fmt.Errorf("queue.AMQPAdapter: consume: %w", err)
	}
	select {
	case d, ok := <-deliveries:
		if !ok {
			return nil, false, nil
		}
		if err := d.Ack(false); err != nil {
			return nil, false, fmt.Errorf("queue.AMQPAdapter: ack: %w", err)
		}
		if len(a.mirror) > 0 {
			a.mirror = a.mirror[1:]
		}
		return d.Body, true, nil
	case <-ctx.Done():
		return nil, false, nil
	}
}

// Checkpoint deep-copies the in-memory mirror.
func (a *AMQPAdapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	cp := make([][]byte, len(a.mirror))
	for i, item := range a.mirror {
		cp[i] = append([]byte(nil), item...)
	}
	return rollback.OpaqueToken{Value: cp}, nil
}

// Rollback resets the adapter's own mirror to the token's copy, which is the
// fingerprinted state actions under test are exercised against. It neither
// drains nor republishes anything on the broker (AMQP offers no bulk
// purge-then-restore primitive usable mid-transaction here).
func (a *AMQPAdapter) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("queue.AMQPAdapter: rollback token of wrong type %T", token)
	}
	items, ok := tok.Value.([][]byte)
	if !ok {
		return fmt.Errorf("queue.AMQPAdapter: rollback token holds wrong value type %T", tok.Value)
	}
	a.mirror = items
	return nil
}

// Observe returns the mirrored depth and a content hash over its items in
// order.
func (a *AMQPAdapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	h := sha256.New()
	for _, item := range a.mirror {
		h.Write(item)
		h.Write([]byte{0})
	}
	return map[string]interface{}{
		"depth": len(a.mirror),
		"hash":  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Capabilities reports unconstrained rollback order.
func (a *AMQPAdapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostModerate}
}
