package dbsavepoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAdapterStackOrderEnforced(t *testing.T) {
	ctx := context.Background()
	m := NewMockAdapter("orders")

	m.InsertRow("orders", "order-1")
	tokA, err := m.Checkpoint(ctx)
	require.NoError(t, err)

	m.InsertRow("orders", "order-2")
	tokB, err := m.Checkpoint(ctx)
	require.NoError(t, err)

	m.InsertRow("orders", "order-3")

	// Rolling back to the outer (non-innermost) savepoint while the inner
	// one is still live must fail: the mock is stricter than Postgres, which
	// would accept it and discard the inner savepoint.
	err = m.Rollback(ctx, tokA)
	assert.Error(t, err)

	require.NoError(t, m.Rollback(ctx, tokB))
	obs, err := m.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, obs["orders"].(map[string]interface{})["count"])
}

func TestMockAdapterErrInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMockAdapter("orders")
	m.Err = assert.AnError

	_, err := m.Checkpoint(ctx)
	assert.Error(t, err)
	assert.True(t, m.CheckpointCalled)
	// Err is cleared after firing once.
	tok, err := m.Checkpoint(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Rollback(ctx, tok))
}

func TestMockAdapterCapabilities(t *testing.T) {
	m := NewMockAdapter()
	assert.True(t, m.Capabilities().StackOnlyRollback)
}
