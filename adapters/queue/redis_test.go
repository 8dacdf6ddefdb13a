package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAdapterCheckpointRollback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()
	a := NewRedis(client, "jobs")

	require.NoError(t, a.Push(ctx, []byte("job-1")))

	tok, err := a.Checkpoint(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Push(ctx, []byte("job-2")))
	_, _, err = a.Pop(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Rollback(ctx, tok))

	obs, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs["depth"])

	item, ok, err := a.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("job-1"), item)
}

func TestRedisAdapterObserveOrderSensitive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	a := NewRedis(client, "a")
	require.NoError(t, a.Push(ctx, []byte("1")))
	require.NoError(t, a.Push(ctx, []byte("2")))

	b := NewRedis(client, "b")
	require.NoError(t, b.Push(ctx, []byte("2")))
	require.NoError(t, b.Push(ctx, []byte("1")))

	oa, _ := a.Observe(ctx)
	ob, _ := b.Observe(ctx)
	assert.NotEqual(t, oa["hash"], ob["hash"])
}
