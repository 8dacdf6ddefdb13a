package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, "venomqa:")
}

func TestCheckpointRollback(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	require.NoError(t, a.client.Set(ctx, "venomqa:session:1", "active", 0).Err())

	tok, err := a.Checkpoint(ctx)
	require.NoError(t, err)

	require.NoError(t, a.client.Set(ctx, "venomqa:session:2", "active", 0).Err())
	require.NoError(t, a.client.Del(ctx, "venomqa:session:1").Err())

	obs, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs["count"])

	require.NoError(t, a.Rollback(ctx, tok))

	obs, err = a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs["count"])

	val, err := a.client.Get(ctx, "venomqa:session:1").Result()
	require.NoError(t, err)
	assert.Equal(t, "active", val)
}

func TestOutOfPrefixKeysIgnored(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	require.NoError(t, a.client.Set(ctx, "other:unrelated", "x", 0).Err())

	obs, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, obs["count"])
}
