package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRollback(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(start)

	tok, err := c.Checkpoint(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Advance(24*time.Hour))
	assert.True(t, c.Now().After(start))

	require.NoError(t, c.Rollback(ctx, tok))
	assert.Equal(t, start, c.Now())
}

func TestAdvanceRejectsNegative(t *testing.T) {
	c := New(time.Now())
	err := c.Advance(-time.Second)
	assert.Error(t, err)
}

func TestObserveStableAcrossEquivalentInstants(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := New(t0)
	b := New(t0.In(time.FixedZone("other", 3600)))

	oa, _ := a.Observe(ctx)
	ob, _ := b.Observe(ctx)
	assert.Equal(t, oa["unixNano"], ob["unixNano"], "same instant in different zones must fingerprint identically")
}
