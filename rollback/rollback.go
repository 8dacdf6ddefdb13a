// Package rollback defines the Rollbackable contract every backing-system
// adapter implements (spec.md §4.1, §6.2), plus the shared Token/Capabilities
// types. Concrete adapters live under adapters/*.
package rollback

import "context"

// Token is an opaque checkpoint handle. Concrete adapters choose their own
// representation underneath (deep copy, transaction savepoint id, file hard
// link, ...); the scheduler and World never inspect it.
type Token interface {
	// adapterToken is unexported so only this package's helpers and
	// concrete adapters can satisfy Token, keeping it a closed contract.
	adapterToken()
}

// OpaqueToken is a convenience Token implementation for adapters whose
// checkpoint state is itself an opaque value (a byte slice, an int savepoint
// id, a struct snapshot, ...).
type OpaqueToken struct {
	Value interface{}
}

func (OpaqueToken) adapterToken() {}

// CheckpointCostClass estimates the relative cost of Checkpoint(), used only
// for diagnostics/logging, never for scheduling decisions.
type CheckpointCostClass int

const (
	CostCheap CheckpointCostClass = iota
	CostModerate
	CostExpensive
)

// Capabilities describes adapter-level constraints the scheduler must honor.
type Capabilities struct {
	// StackOnlyRollback is true for adapters (e.g. SQL SAVEPOINT-backed
	// databases) whose Rollback only works in nested/LIFO order. If any
	// adapter in a World sets this, the scheduler is forced into DFS with
	// serial branching (spec.md §4.1, §4.5).
	StackOnlyRollback bool

	// CheckpointCost is an informational hint.
	CheckpointCost CheckpointCostClass
}

// Rollbackable is the contract every backing-system adapter implements.
type Rollbackable interface {
	// Checkpoint captures all adapter-owned state any action could mutate.
	Checkpoint(ctx context.Context) (Token, error)

	// Rollback restores the adapter to the exact state captured by token.
	// Must be idempotent.
	Rollback(ctx context.Context, token Token) error

	// Observe returns a small, deterministic, fingerprintable summary of the
	// adapter's observable state (counts, sorted key lists, content hashes —
	// never full payloads).
	Observe(ctx context.Context) (map[string]interface{}, error)

	// Capabilities reports this adapter's rollback constraints.
	Capabilities() Capabilities
}
