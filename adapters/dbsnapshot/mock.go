package dbsnapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"venomqa.dev/venomqa/rollback"
)

// MockAdapter is a dependency-free in-memory stand-in for Adapter: buckets
// of key-value pairs, deep-copied whole on Checkpoint and replaced whole on
// Rollback, with the same Err-injection / Called-tracking shape as
// storage/s3_mock.go's MockS3Client.
type MockAdapter struct {
	Buckets map[string]map[string][]byte

	Err error

	CheckpointCalled bool
	RollbackCalled   bool
}

// NewMockAdapter creates an empty mock with the given bucket names.
func NewMockAdapter(bucketNames ...string) *MockAdapter {
	buckets := make(map[string]map[string][]byte, len(bucketNames))
	for _, name := range bucketNames {
		buckets[name] = make(map[string][]byte)
	}
	return &MockAdapter{Buckets: buckets}
}

// Put stores value under key in bucket.
func (m *MockAdapter) Put(bucket, key string, value []byte) {
	if m.Buckets[bucket] == nil {
		m.Buckets[bucket] = make(map[string][]byte)
	}
	m.Buckets[bucket][key] = append([]byte(nil), value...)
}

// Checkpoint deep-copies every bucket.
func (m *MockAdapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	m.CheckpointCalled = true
	if m.Err != nil {
		err := m.Err
		m.Err = nil
		return nil, err
	}

	cp := make(map[string]map[string][]byte, len(m.Buckets))
	for bucket, kv := range m.Buckets {
		cpKV := make(map[string][]byte, len(kv))
		for k, v := range kv {
			cpKV[k] = append([]byte(nil), v...)
		}
		cp[bucket] = cpKV
	}
	return rollback.OpaqueToken{Value: cp}, nil
}

// Rollback replaces the live buckets with the token's copy.
func (m *MockAdapter) Rollback(ctx context.Context, token rollback.Token) error {
	m.RollbackCalled = true
	if m.Err != nil {
		err := m.Err
		m.Err = nil
		return err
	}

	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("dbsnapshot.MockAdapter: rollback token of wrong type %T", token)
	}
	buckets, ok := tok.Value.(map[string]map[string][]byte)
	if !ok {
		return fmt.Errorf("dbsnapshot.MockAdapter: rollback token holds wrong value type %T", tok.Value)
	}
	m.Buckets = make(map[string]map[string][]byte, len(buckets))
	for bucket, kv := range buckets {
		cpKV := make(map[string][]byte, len(kv))
		for k, v := range kv {
			cpKV[k] = append([]byte(nil), v...)
		}
		m.Buckets[bucket] = cpKV
	}
	return nil
}

// Observe mirrors Adapter.Observe's per-bucket count/hash shape.
func (m *MockAdapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m.Buckets))
	for bucket, kv := range m.Buckets {
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		h := sha256.New()
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{0})
			h.Write(kv[k])
			h.Write([]byte{0})
		}
		out[bucket] = map[string]interface{}{
			"count": len(keys),
			"hash":  hex.EncodeToString(h.Sum(nil)),
		}
	}
	return out, nil
}

// Capabilities reports unconstrained rollback order, matching Adapter.
func (m *MockAdapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostCheap}
}
