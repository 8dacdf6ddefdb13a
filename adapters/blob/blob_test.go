package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRollbackRestoresModifiedAndRemovesAdded(t *testing.T) {
	ctx := context.Background()
	client := NewMockClient()
	a := New(client, "fixtures", "run-1/")

	putBytes(t, client, "run-1/a.json", `{"v":1}`)

	tok, err := a.Checkpoint(ctx)
	require.NoError(t, err)

	putBytes(t, client, "run-1/a.json", `{"v":2}`) // modify
	putBytes(t, client, "run-1/b.json", `{"new":true}`) // extra object

	obs, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, obs["count"])

	require.NoError(t, a.Rollback(ctx, tok))

	obs, err = a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs["count"])
	assert.Equal(t, `{"v":1}`, client.Objects["run-1/a.json"].Content)
	_, stillThere := client.Objects["run-1/b.json"]
	assert.False(t, stillThere)
}

func TestObserveIgnoresOutsidePrefix(t *testing.T) {
	ctx := context.Background()
	client := NewMockClient()
	a := New(client, "fixtures", "run-1/")

	putBytes(t, client, "other-run/a.json", `{}`)

	obs, err := a.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, obs["count"])
}

func putBytes(t *testing.T, client *MockClient, key, body string) {
	t.Helper()
	client.Objects[key] = &MockObject{Key: key, Content: body, ETag: etagOf(body)}
}
