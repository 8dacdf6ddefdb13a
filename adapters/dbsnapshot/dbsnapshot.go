// Package dbsnapshot implements the file-based DB snapshot adapter (spec.md
// §4.1: "DB snapshot — full file copy; restore by replacing the file;
// arbitrary order"). Checkpoint takes a hot backup of the whole database via
// a read transaction (no downtime, no writer lock held across calls);
// Rollback closes the live handle, replaces the file with the backup bytes,
// and reopens — so, unlike dbsavepoint, any checkpoint can be restored in
// any order.
//
// Grounded on the bbolt wrapper in db/bolt/bolt.go (same library,
// go.etcd.io/bbolt), generalized from DB's single-bucket JSON helpers to a
// whole-file backup/restore cycle plus a cross-bucket Observe summary.
package dbsnapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"venomqa.dev/venomqa/rollback"
)

// Adapter wraps one bbolt file.
type Adapter struct {
	path string
	db   *bolt.DB
}

// Open opens or creates the bbolt file at path.
func Open(path string) (*Adapter, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("dbsnapshot: open %s: %w", path, err)
	}
	return &Adapter{path: path, db: db}, nil
}

// Close closes the underlying file.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// DB exposes the underlying handle for actions under test to read/write
// buckets directly.
func (a *Adapter) DB() *bolt.DB { return a.db }

// Checkpoint takes a hot backup: a read-only transaction streamed into an
// in-memory buffer, per bbolt's documented Tx.WriteTo backup mechanism.
func (a *Adapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	var buf bytes.Buffer
	err := a.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(&buf)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dbsnapshot: backup: %w", err)
	}
	return rollback.OpaqueToken{Value: buf.Bytes()}, nil
}

// Rollback closes the live handle, overwrites the file with the backed-up
// bytes, and reopens it. Any prior checkpoint can be restored regardless of
// order — there is no nesting relationship between snapshots.
func (a *Adapter) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("dbsnapshot: rollback token of wrong type %T", token)
	}
	data, ok := tok.Value.([]byte)
	if !ok {
		return fmt.Errorf("dbsnapshot: rollback token holds wrong value type %T", tok.Value)
	}

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("dbsnapshot: close before restore: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0600); err != nil {
		return fmt.Errorf("dbsnapshot: write snapshot: %w", err)
	}
	db, err := bolt.Open(a.path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("dbsnapshot: reopen after restore: %w", err)
	}
	a.db = db
	return nil
}

// Observe returns, per bucket, its key count and a content hash over every
// key/value pair.
func (a *Adapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			var keys []string
			h := sha256.New()
			if err := b.ForEach(func(k, v []byte) error {
				keys = append(keys, string(k))
				return nil
			}); err != nil {
				return err
			}
			sort.Strings(keys)
			for _, k := range keys {
				h.Write([]byte(k))
				h.Write([]byte{0})
				h.Write(b.Get([]byte(k)))
				h.Write([]byte{0})
			}
			out[string(name)] = map[string]interface{}{
				"count": len(keys),
				"hash":  hex.EncodeToString(h.Sum(nil)),
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("dbsnapshot: observe: %w", err)
	}
	return out, nil
}

// Capabilities reports unconstrained rollback order.
func (a *Adapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostExpensive}
}
