// Package memory implements the in-memory KV and queue adapters (spec.md
// §4.1: "In-memory KV / queue / mail / storage — deep copy of internal
// tables; restore from copy; arbitrary order"; the mail variant lives in
// adapters/mail, grounded separately on notification/rapidmail.go). Every
// adapter here checkpoints by deep-copying its table and rolls back by
// replacing the live table with the copy, so none of them impose stack-only
// rollback.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"venomqa.dev/venomqa/rollback"
)

// KV is a deep-copy-rollback in-memory key-value store, the default
// target for actions that need persistent state without a real database.
type KV struct {
	table map[string][]byte
}

// NewKV creates an empty store.
func NewKV() *KV {
	return &KV{table: make(map[string][]byte)}
}

// Put stores value under key.
func (k *KV) Put(key string, value []byte) {
	k.table[key] = append([]byte(nil), value...)
}

// Get returns the value stored under key, and whether it exists.
func (k *KV) Get(key string) ([]byte, bool) {
	v, ok := k.table[key]
	return v, ok
}

// Delete removes key.
func (k *KV) Delete(key string) {
	delete(k.table, key)
}

// Checkpoint deep-copies the table, wrapped in a rollback.OpaqueToken.
func (k *KV) Checkpoint(ctx context.Context) (rollback.Token, error) {
	cp := make(map[string][]byte, len(k.table))
	for key, v := range k.table {
		cp[key] = append([]byte(nil), v...)
	}
	return rollback.OpaqueToken{Value: cp}, nil
}

// Rollback replaces the live table with the token's copy.
func (k *KV) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("memory.KV: rollback token of wrong type %T", token)
	}
	table, ok := tok.Value.(map[string][]byte)
	if !ok {
		return fmt.Errorf("memory.KV: rollback token holds wrong value type %T", tok.Value)
	}
	k.table = make(map[string][]byte, len(table))
	for key, v := range table {
		k.table[key] = append([]byte(nil), v...)
	}
	return nil
}

// Observe returns the key count and a content hash, never the raw values.
func (k *KV) Observe(ctx context.Context) (map[string]interface{}, error) {
	keys := make([]string, 0, len(k.table))
	for key := range k.table {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		h.Write([]byte(key))
		h.Write([]byte{0})
		h.Write(k.table[key])
		h.Write([]byte{0})
	}

	return map[string]interface{}{
		"count": len(keys),
		"keys":  keys,
		"hash":  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Capabilities reports unconstrained rollback order.
func (k *KV) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostCheap}
}
