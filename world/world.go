// Package world provides World, the container for the HTTP client, the
// Context, and the named Rollbackable adapters; it orchestrates multi-system
// checkpoint/rollback atomically (spec.md §4.2).
package world

import (
	"context"
	"fmt"
	"sort"

	"venomqa.dev/venomqa/fingerprint"
	"venomqa.dev/venomqa/httpapi"
	"venomqa.dev/venomqa/rollback"
	"venomqa.dev/venomqa/telemetry"
	"venomqa.dev/venomqa/worldctx"
)

// Token is the opaque checkpoint handle for an entire World: a context
// snapshot plus one rollback.Token per registered adapter.
type Token struct {
	ctxSnapshot  *worldctx.Context
	adapterToks  map[string]rollback.Token
	adapterOrder []string // registration order, for deterministic rollback
}

// namedAdapter pairs an adapter with its registration name, preserving
// insertion order (an ordered map, since plain Go maps don't).
type namedAdapter struct {
	name    string
	adapter rollback.Rollbackable
}

// World is the testable universe: API client + Context + named adapters.
type World struct {
	api    *httpapi.Client
	ctx    *worldctx.Context
	logger *telemetry.ContextLogger

	adapters []namedAdapter

	stateFromContext  []string
	includeLastAction bool
	fingerprintHexLen int

	poisoned    bool
	poisonedErr error
}

// Config configures a World. Per spec.md §4.2, a World MUST either declare a
// non-empty StateFromContext or register at least one adapter; New does not
// check this, Validate (and Fingerprint, which calls it) does.
type Config struct {
	API               *httpapi.Client
	StateFromContext  []string
	IncludeLastAction bool // fingerprint input flag, default false
	FingerprintHexLen int  // default 16
	Logger            *telemetry.ContextLogger
}

// New constructs a World. Adapters are registered afterward via Register.
func New(cfg Config) (*World, error) {
	hexLen := cfg.FingerprintHexLen
	if hexLen == 0 {
		hexLen = 16
	}
	w := &World{
		api:               cfg.API,
		ctx:               worldctx.New(),
		logger:            cfg.Logger,
		stateFromContext:  append([]string(nil), cfg.StateFromContext...),
		includeLastAction: cfg.IncludeLastAction,
		fingerprintHexLen: hexLen,
	}
	return w, nil
}

// Register adds a named adapter. Validity (non-empty StateFromContext OR at
// least one adapter) is checked lazily in Fingerprint/Validate, since
// Register calls may come after New.
func (w *World) Register(name string, a rollback.Rollbackable) {
	w.adapters = append(w.adapters, namedAdapter{name: name, adapter: a})
}

// Validate enforces spec.md §4.2's World construction invariant.
func (w *World) Validate() error {
	if len(w.stateFromContext) == 0 && len(w.adapters) == 0 {
		return fmt.Errorf("world: must declare a non-empty stateFromContext or register at least one adapter")
	}
	return nil
}

// API returns the World's HTTP client.
func (w *World) API() *httpapi.Client { return w.api }

// Context returns the World's live Context.
func (w *World) Context() *worldctx.Context { return w.ctx }

// Adapter returns the named adapter, or nil if not registered.
func (w *World) Adapter(name string) rollback.Rollbackable {
	for _, na := range w.adapters {
		if na.name == name {
			return na.adapter
		}
	}
	return nil
}

// AdapterNames returns registered adapter names in registration order.
func (w *World) AdapterNames() []string {
	names := make([]string, len(w.adapters))
	for i, na := range w.adapters {
		names[i] = na.name
	}
	return names
}

// StackOnlyRollback reports whether any registered adapter requires
// stack-only (nested/LIFO) rollback, forcing the scheduler into DFS
// (spec.md §4.1, §4.5).
func (w *World) StackOnlyRollback() bool {
	for _, na := range w.adapters {
		if na.adapter.Capabilities().StackOnlyRollback {
			return true
		}
	}
	return false
}

// Poisoned reports whether a prior adapter rollback failure has put this
// World into a terminal failure state (spec.md §4.2, §7).
func (w *World) Poisoned() (bool, error) {
	return w.poisoned, w.poisonedErr
}

// Checkpoint captures the context snapshot plus Checkpoint() of every
// adapter, in registration order.
func (w *World) Checkpoint(ctx context.Context) (*Token, error) {
	if w.poisoned {
		return nil, fmt.Errorf("world: poisoned, refusing checkpoint: %w", w.poisonedErr)
	}
	tok := &Token{
		ctxSnapshot: w.ctx.Snapshot(),
		adapterToks: make(map[string]rollback.Token, len(w.adapters)),
	}
	for _, na := range w.adapters {
		t, err := na.adapter.Checkpoint(ctx)
		if err != nil {
			return nil, fmt.Errorf("world: checkpointing adapter %q: %w", na.name, err)
		}
		tok.adapterToks[na.name] = t
		tok.adapterOrder = append(tok.adapterOrder, na.name)
	}
	return tok, nil
}

// Rollback restores the context then calls each adapter's Rollback in
// reverse registration order, as one logical step. If any adapter rollback
// fails, the World is poisoned and subsequent operations fail (spec.md
// §4.2, §7): the caller MUST terminate exploration with a fatal error.
func (w *World) Rollback(ctx context.Context, tok *Token) error {
	if w.poisoned {
		return fmt.Errorf("world: poisoned, refusing rollback: %w", w.poisonedErr)
	}

	w.ctx.Restore(tok.ctxSnapshot)

	for i := len(tok.adapterOrder) - 1; i >= 0; i-- {
		name := tok.adapterOrder[i]
		a := w.Adapter(name)
		if a == nil {
			continue // adapter was unregistered since checkpoint; nothing to roll back
		}
		if err := a.Rollback(ctx, tok.adapterToks[name]); err != nil {
			w.poisoned = true
			w.poisonedErr = fmt.Errorf("world: adapter %q rollback failed: %w", name, err)
			if w.logger != nil {
				w.logger.WithError(w.poisonedErr).Error("world poisoned: adapter rollback failed")
			}
			return w.poisonedErr
		}
	}
	return nil
}

// Fingerprint computes the canonical StateID from the context projection and
// every adapter's Observe() result (spec.md §3).
func (w *World) Fingerprint(ctx context.Context, lastAction string) (fingerprint.StateID, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}

	ctxProjection := w.ctx.Projection(w.stateFromContext)

	observations := make(map[string]map[string]interface{}, len(w.adapters))
	names := make([]string, 0, len(w.adapters))
	for _, na := range w.adapters {
		obs, err := na.adapter.Observe(ctx)
		if err != nil {
			return "", fmt.Errorf("world: observing adapter %q: %w", na.name, err)
		}
		observations[na.name] = obs
		names = append(names, na.name)
	}
	sort.Strings(names)

	input := fingerprint.Input{
		ContextProjection: ctxProjection,
		AdapterNames:      names,
		AdapterObserve:    observations,
	}
	if w.includeLastAction {
		input.LastAction = lastAction
	}

	return fingerprint.Compute(input, w.fingerprintHexLen), nil
}
