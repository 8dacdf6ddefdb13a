// Package cache implements the Redis-backed cache adapter (spec.md §4.1:
// "Cache — deep copy of scanned keys; restore by delete+repopulate;
// arbitrary order"). Checkpoint SCANs every key under a configured prefix
// and GETs each value, so Rollback can restore the exact key set without
// relying on Redis's own (non-transactional, best-effort) snapshotting.
//
// Grounded on the go-redis/v9 client usage in queue/redis/queue.go, adapted
// from a job-queue's RPush/BLPop pair to whole-keyspace scan/get/restore.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"venomqa.dev/venomqa/rollback"
)

// Adapter wraps a Redis client scoped to keys under Prefix.
type Adapter struct {
	client *redis.Client
	prefix string
}

// New wraps an existing client. Every key the adapter manages must be under
// prefix — actions under test that use other prefixes are invisible to
// Checkpoint/Rollback/Observe by design, so a shared Redis instance can host
// both the system under test's own cache keys and venomqa's bookkeeping.
func New(client *redis.Client, prefix string) *Adapter {
	return &Adapter{client: client, prefix: prefix}
}

func (a *Adapter) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := a.client.Scan(ctx, 0, a.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// Checkpoint scans every key under the prefix and captures its value in a
// deep copy. TTLs are not captured: keys restored by Rollback have no expiry.
func (a *Adapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	keys, err := a.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: scan: %w", err)
	}

	snapshot := make(map[string]string, len(keys))
	for _, key := range keys {
		val, err := a.client.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("cache: get %s: %w", key, err)
		}
		snapshot[key] = val
	}
	return rollback.OpaqueToken{Value: snapshot}, nil
}

// Rollback deletes every currently-present key under the prefix, then
// repopulates exactly the snapshot's key/value pairs — restore-by-
// delete-and-repopulate, since Redis has no native multi-key checkpoint.
func (a *Adapter) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("cache: rollback token of wrong type %T", token)
	}
	snapshot, ok := tok.Value.(map[string]string)
	if !ok {
		return fmt.Errorf("cache: rollback token holds wrong value type %T", tok.Value)
	}

	current, err := a.keys(ctx)
	if err != nil {
		return fmt.Errorf("cache: scan before restore: %w", err)
	}
	if len(current) > 0 {
		if err := a.client.Del(ctx, current...).Err(); err != nil {
			return fmt.Errorf("cache: delete before restore: %w", err)
		}
	}

	pipe := a.client.Pipeline()
	for key, val := range snapshot {
		pipe.Set(ctx, key, val, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: repopulate: %w", err)
	}
	return nil
}

// Observe returns the key count under the prefix and a content hash over
// every sorted key/value pair.
func (a *Adapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	keys, err := a.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: observe scan: %w", err)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		val, err := a.client.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("cache: observe get %s: %w", key, err)
		}
		h.Write([]byte(key))
		h.Write([]byte{0})
		h.Write([]byte(val))
		h.Write([]byte{0})
	}

	return map[string]interface{}{
		"count": len(keys),
		"hash":  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Capabilities reports unconstrained rollback order.
func (a *Adapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostModerate}
}
