package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMail()
	m.Send(Message{To: []string{"a@example.com"}, Subject: "welcome", Body: "hi"})

	tok, err := m.Checkpoint(ctx)
	require.NoError(t, err)

	m.Send(Message{To: []string{"b@example.com"}, Subject: "dup welcome", Body: "hi"})
	assert.Len(t, m.Sent(), 2)

	require.NoError(t, m.Rollback(ctx, tok))
	assert.Len(t, m.Sent(), 1)
	assert.Equal(t, "welcome", m.Sent()[0].Subject)
}

func TestCapabilitiesUnconstrained(t *testing.T) {
	assert.False(t, NewMail().Capabilities().StackOnlyRollback)
}

func TestObserveDistinguishesDuplicateSends(t *testing.T) {
	ctx := context.Background()
	m := NewMail()
	m.Send(Message{To: []string{"a@example.com"}, Subject: "welcome", Body: "hi"})
	once, _ := m.Observe(ctx)

	m.Send(Message{To: []string{"a@example.com"}, Subject: "welcome", Body: "hi"})
	twice, _ := m.Observe(ctx)

	assert.NotEqual(t, once["hash"], twice["hash"], "a duplicate send must change the fingerprint")
	assert.Equal(t, 2, twice["sentCount"])
}
