// Package clock implements the frozen-clock adapter (spec.md §4.1: "Frozen
// wall clock — record instant, seek; arbitrary order"), for actions under
// test whose behavior depends on server-observed time (token expiry,
// scheduled jobs, rate-limit windows) without any real wall-clock adapter to
// ground the pattern on in the teacher corpus — built in the same
// deep-copy-checkpoint idiom as adapters/memory for consistency with the
// rest of the in-process adapter family.
package clock

import (
	"context"
	"fmt"
	"time"

	"venomqa.dev/venomqa/rollback"
)

// Adapter is a settable, observable clock. Actions under test read Now and
// may call Advance/Set to simulate time passing; exploration can then assert
// invariants like "an expired token is never accepted".
type Adapter struct {
	now time.Time
}

// New creates a clock frozen at t.
func New(t time.Time) *Adapter {
	return &Adapter{now: t}
}

// Now returns the current frozen instant.
func (a *Adapter) Now() time.Time { return a.now }

// Advance moves the clock forward by d. Negative d is rejected — time does
// not run backward except via Set, which an action takes explicitly.
func (a *Adapter) Advance(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("clock: Advance: negative duration %s", d)
	}
	a.now = a.now.Add(d)
	return nil
}

// Set jumps the clock to t, forward or backward.
func (a *Adapter) Set(t time.Time) {
	a.now = t
}

// Checkpoint captures the current instant.
func (a *Adapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	return rollback.OpaqueToken{Value: a.now}, nil
}

// Rollback restores the instant captured by token.
func (a *Adapter) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("clock: rollback token of wrong type %T", token)
	}
	t, ok := tok.Value.(time.Time)
	if !ok {
		return fmt.Errorf("clock: rollback token holds wrong value type %T", tok.Value)
	}
	a.now = t
	return nil
}

// Observe returns the current instant as a Unix timestamp, so two worlds at
// the same logical clock position fingerprint the same regardless of
// time.Time's internal monotonic reading.
func (a *Adapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"unixNano": a.now.UnixNano(),
	}, nil
}

// Capabilities reports unconstrained rollback order.
func (a *Adapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: false, CheckpointCost: rollback.CostCheap}
}
