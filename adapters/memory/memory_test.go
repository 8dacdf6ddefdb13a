package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVCheckpointRollback(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()
	kv.Put("a", []byte("1"))

	tok, err := kv.Checkpoint(ctx)
	require.NoError(t, err)

	kv.Put("b", []byte("2"))
	kv.Delete("a")

	obs, err := kv.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs["count"])

	require.NoError(t, kv.Rollback(ctx, tok))

	v, ok := kv.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	_, ok = kv.Get("b")
	assert.False(t, ok)
}

func TestKVObserveDeterministic(t *testing.T) {
	ctx := context.Background()
	a := NewKV()
	a.Put("x", []byte("1"))
	a.Put("y", []byte("2"))

	b := NewKV()
	b.Put("y", []byte("2"))
	b.Put("x", []byte("1"))

	oa, err := a.Observe(ctx)
	require.NoError(t, err)
	ob, err := b.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, oa["hash"], ob["hash"], "key insertion order must not affect the KV fingerprint")
}

func TestQueueCheckpointRollback(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	q.Push([]byte("first"))

	tok, err := q.Checkpoint(ctx)
	require.NoError(t, err)

	q.Push([]byte("second"))
	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("first"), item)

	require.NoError(t, q.Rollback(ctx, tok))
	assert.Equal(t, 1, q.Len())
	item, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("first"), item)
}

func TestQueueObserveOrderSensitive(t *testing.T) {
	ctx := context.Background()
	a := NewQueue()
	a.Push([]byte("1"))
	a.Push([]byte("2"))

	b := NewQueue()
	b.Push([]byte("2"))
	b.Push([]byte("1"))

	oa, _ := a.Observe(ctx)
	ob, _ := b.Observe(ctx)
	assert.NotEqual(t, oa["hash"], ob["hash"], "queue order is observable state, unlike KV's key set")
}

func TestCapabilitiesUnconstrained(t *testing.T) {
	assert.False(t, NewKV().Capabilities().StackOnlyRollback)
	assert.False(t, NewQueue().Capabilities().StackOnlyRollback)
}
