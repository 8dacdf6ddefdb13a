package dbsnapshot

import (
	"context"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterCheckpointRollback(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.DB().Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("sessions"))
		if err != nil {
			return err
		}
		return b.Put([]byte("s1"), []byte("active"))
	}))

	tok, err := a.Checkpoint(ctx)
	require.NoError(t, err)

	require.NoError(t, a.DB().Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("sessions"))
		return b.Put([]byte("s2"), []byte("active"))
	}))

	obs, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, obs["sessions"].(map[string]interface{})["count"])

	require.NoError(t, a.Rollback(ctx, tok))

	obs, err = a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs["sessions"].(map[string]interface{})["count"])
}

func TestMockAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMockAdapter("sessions")
	m.Put("sessions", "s1", []byte("active"))

	tok, err := m.Checkpoint(ctx)
	require.NoError(t, err)

	m.Put("sessions", "s2", []byte("active"))
	require.NoError(t, m.Rollback(ctx, tok))

	obs, err := m.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs["sessions"].(map[string]interface{})["count"])
}

func TestMockAdapterArbitraryOrderRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMockAdapter("sessions")

	tokA, err := m.Checkpoint(ctx)
	require.NoError(t, err)
	m.Put("sessions", "s1", []byte("active"))
	_, err = m.Checkpoint(ctx) // tokB discarded on purpose
	require.NoError(t, err)
	m.Put("sessions", "s2", []byte("active"))

	// Unlike dbsavepoint, restoring the OLDEST checkpoint while a newer one
	// exists must succeed: there is no stack discipline here.
	require.NoError(t, m.Rollback(ctx, tokA))
	obs, _ := m.Observe(ctx)
	assert.Equal(t, 0, obs["sessions"].(map[string]interface{})["count"])
}
