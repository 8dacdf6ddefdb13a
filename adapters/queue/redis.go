// Package queue implements the queue family of adapters (spec.md §4.1:
// "Queue — deep copy of the in-memory mirror of the broker's visible
// state; restore by drain+repopulate; arbitrary order"), one file per
// broker: a Redis list-backed variant and an AMQP/RabbitMQ variant.
package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"

	"venomqa.dev/venomqa/rollback"
)

// RedisAdapter is a FIFO queue backed by a single Redis list key, grounded
// on queue/redis/queue.go's RPush/BLPop job queue — generalized from
// Job-shaped payloads to opaque byte strings so any action under test can
// push whatever its domain needs.
type RedisAdapter struct {
	client *redis.Client
	key    string
}

// NewRedis wraps an existing client, scoped to a single list key.
func NewRedis(client *redis.Client, key string) *RedisAdapter {
	return &RedisAdapter{client: client, key: key}
}

// Push enqueues item at the tail, per queue/redis/queue.go's Enqueue.
func (a *RedisAdapter) Push(ctx context.Context, item []byte) error {
	return a.client.RPush(ctx, a.key, item).Err()
}

// Pop dequeues the head item without blocking, reporting false if empty.
func (a *RedisAdapter) Pop(ctx context.Context) ([]byte, bool, error) {
	val, err := a.client.LPop(ctx, a.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Checkpoint deep-copies the whole list, in order.
func (a *RedisAdapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	items, err := a.client.LRange(ctx, a.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue.RedisAdapter: checkpoint: %w", err)
	}
	return rollback.OpaqueToken{Value: append([]string(nil), items...)}, nil
}

// Rollback drains the live list and repopulates it from the token, in
// order — restore-by-drain-and-repopulate, since Redis lists have no native
// snapshot primitive.
func (a *RedisAdapter) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("queue.RedisAdapter: rollback token of wrong type %T", token)
	}
	items, ok := tok.Value.([]string)
	if !ok {
		return fmt.Errorf("queue.RedisAdapter: rollback token holds wrong value type %T", tok.Value)
	}

	if err := a.client.Del(ctx, a.key).Err(); err != nil {
		return fmt.Errorf("queue.RedisAdapter: drain: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	args := make([]interface{}, len(items))
	for i, item := range items {
		args[i] = item
	}
	if err := a.client.RPush(ctx, a.key, args...).Err(); err != nil {
		return fmt.Errorf("queue.RedisAdapter: repopulate: %w", err)
	}
	return nil
}

// Observe returns the queue depth and a content hash over its items in
// order — order is part of queue semantics, unlike a cache's key set.
func (a *RedisAdapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	items, err := a.client.LRange(ctx, a.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue.RedisAdapter: observe: %w", err)
	}
	h := sha256.New()
	for _, item := range items {
		h.Write([]byte(item))
		h.Write([]byte{0})
	}
	return map[string]interface{}{
		"depth": len(items),
		"hash":  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Capabilities reports unconstrained rollback order.
func (a *RedisAdapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostModerate}
}
