package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAMQPAdapterCheckpointRollback(t *testing.T) {
	ch := NewMockChannel()
	a, err := NewAMQP(ch, "events")
	require.NoError(t, err)
	assert.Equal(t, []string{"events"}, ch.Declared)

	require.NoError(t, a.Push([]byte("event-1")))

	tok, err := a.Checkpoint(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Push([]byte("event-2")))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	_, _, err = a.Pop(ctx)
	cancel()
	require.NoError(t, err)

	require.NoError(t, a.Rollback(context.Background(), tok))

	obs, err := a.Observe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, obs["depth"])
}

func TestAMQPAdapterPopDrainsMirror(t *testing.T) {
	ch := NewMockChannel()
	a, err := NewAMQP(ch, "events")
	require.NoError(t, err)

	require.NoError(t, a.Push([]byte("event-1")))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, ok, err := a.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("event-1"), item)

	obs, _ := a.Observe(context.Background())
	assert.Equal(t, 0, obs["depth"])
}
