// Package shrinker implements delta-debugging path minimization (spec.md
// §4.7): given a violating path, find a shorter action subsequence that,
// replayed from the initial world state, still triggers the same
// (invariant name, severity) violation.
package shrinker

import (
	"context"

	"venomqa.dev/venomqa/action"
	"venomqa.dev/venomqa/invariant"
	"venomqa.dev/venomqa/world"
)

// defaultMaxReexecutions caps the shrinker's re-execution budget at
// min(len(path), 64) per spec.md §4.7.
const defaultMaxReexecutions = 64

// Target identifies the violation a shrunk path must still reproduce.
type Target struct {
	InvariantName string
	Severity      invariant.Severity
}

// Replay re-initializes a fresh world at the initial state and executes
// actionNames in order, returning every violation observed along the way.
// Shrink is decoupled from any concrete scheduler/world construction
// strategy via this function, supplied by the caller (typically Agent,
// which knows how to build a fresh World).
type Replay func(ctx context.Context, actionNames []string) ([]invariant.Violation, error)

// Shrink finds a minimal subsequence of path still reproducing target,
// using the supplied replay function to re-execute candidate subsequences
// from a clean world. Best-effort: if no strictly shorter reproducing
// subsequence is confirmed, path is returned unchanged.
func Shrink(ctx context.Context, path []string, target Target, replay Replay) ([]string, error) {
	current := append([]string(nil), path...)

	budget := len(current)
	if budget > defaultMaxReexecutions {
		budget = defaultMaxReexecutions
	}

	reexecutions := 0
	for reexecutions < budget {
		shrunk := false
		for i := 0; i < len(current); i++ {
			if reexecutions >= budget {
				break
			}
			candidate := removeAt(current, i)
			reexecutions++

			violations, err := replay(ctx, candidate)
			if err != nil {
				return current, err
			}
			if reproduces(violations, target) {
				current = candidate
				shrunk = true
				break // restart the omission scan over the shorter candidate
			}
		}
		if !shrunk {
			break
		}
	}

	return current, nil
}

func removeAt(path []string, i int) []string {
	out := make([]string, 0, len(path)-1)
	out = append(out, path[:i]...)
	out = append(out, path[i+1:]...)
	return out
}

func reproduces(violations []invariant.Violation, target Target) bool {
	for _, v := range violations {
		if v.InvariantName == target.InvariantName && v.Severity == target.Severity {
			return true
		}
	}
	return false
}

// NewReplayFromTable builds a Replay that walks a fresh World/action.Table
// pair action-by-action, collecting violations from ad-hoc invariant checks
// — used when the caller wants replay to run the actual action.Table
// Execute functions rather than a scheduler loop (the shrinker doesn't need
// branching, strategies, or graph bookkeeping, just straight-line replay).
func NewReplayFromTable(newWorld func() (*world.World, error), table *action.Table, invariants []invariant.Invariant) Replay {
	return func(ctx context.Context, actionNames []string) ([]invariant.Violation, error) {
		w, err := newWorld()
		if err != nil {
			return nil, err
		}

		var violations []invariant.Violation
		for _, name := range actionNames {
			act, ok := table.Get(name)
			if !ok {
				continue
			}
			result := act.Run(ctx, w)
			switch result.Outcome {
			case action.OutcomeAssertionFailed:
				violations = append(violations, invariant.Violation{
					InvariantName: "action_assertion",
					Severity:      invariant.High,
					Message:       result.Err.Error(),
					ActionName:    name,
				})
				continue
			case action.OutcomeError:
				violations = append(violations, invariant.Violation{
					InvariantName: "action_error",
					Severity:      invariant.Critical,
					Message:       result.Err.Error(),
					ActionName:    name,
				})
				continue
			case action.OutcomeSkipped:
				continue
			}

			for _, inv := range invariants {
				if v := invariant.Evaluate(ctx, inv, w); v != nil {
					v.ActionName = name
					violations = append(violations, *v)
				}
			}
		}
		return violations, nil
	}
}
