// Package agent provides Agent, the top-level exploration driver (spec.md
// §2, §4.6): it builds the world, seeds the scheduler, runs it to budget
// exhaustion or cancellation, shrinks violations, and returns a structured
// ExplorationResult.
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"venomqa.dev/venomqa/action"
	"venomqa.dev/venomqa/invariant"
	"venomqa.dev/venomqa/scheduler"
	"venomqa.dev/venomqa/shrinker"
	"venomqa.dev/venomqa/stategraph"
	"venomqa.dev/venomqa/strategy"
	"venomqa.dev/venomqa/telemetry"
	"venomqa.dev/venomqa/world"
)

// Violation is a fully resolved exploration failure: the raw
// invariant.Violation plus its shortest reproduction path, ready for
// reporting (spec.md §3 "Violation", §6.4 "Result schema").
type Violation struct {
	invariant.Violation
	ReproductionPath []string // action names, initial state to trigger
}

// ExplorationResult is the engine's sole handoff to out-of-scope reporters
// (spec.md §6.4).
type ExplorationResult struct {
	StatesVisited         int
	TransitionsTaken      int
	ActionsFired          int // distinct action names fired
	ActionCoveragePercent float64
	InvariantEvaluations  int
	Violations            []Violation // sorted descending by severity
	DurationMs            int64
	BudgetReached         scheduler.BudgetReached
	FatalError            error
}

// NewWorldFunc constructs a fresh World, with adapters registered, ready
// for exploration. Called once per Explore, and again per candidate replay
// during shrinking.
type NewWorldFunc func(ctx context.Context) (*world.World, error)

// Config wires an Agent to its domain: the action table, invariants, and
// how to build the world under test.
type Config struct {
	NewWorld   NewWorldFunc
	Table      *action.Table
	Invariants []invariant.Invariant

	// Strategy, if nil, is chosen automatically: DFS if the constructed
	// world reports StackOnlyRollback, BFS otherwise (spec.md §4.1).
	Strategy strategy.Strategy
	Seed     int64

	Budgets scheduler.Budgets
	Logger  *telemetry.ContextLogger

	// Shrink enables delta-debugging minimization of violation
	// reproduction paths (spec.md §4.7). The zero value (false) leaves
	// paths unshrunk.
	Shrink bool
}

// Agent drives one exploration run.
type Agent struct {
	cfg Config
}

// New validates cfg and returns an Agent. Per spec.md §7, configuration
// errors (duplicate names, bad preconditions) are raised synchronously here
// — exploration never starts with an invalid table or invariant set.
func New(cfg Config) (*Agent, error) {
	if cfg.NewWorld == nil {
		return nil, fmt.Errorf("agent: NewWorld is required")
	}
	if cfg.Table == nil {
		return nil, fmt.Errorf("agent: Table is required")
	}
	if err := action.ValidateTable(cfg.Table.Actions()); err != nil {
		return nil, err
	}
	if err := invariant.ValidateSet(cfg.Invariants); err != nil {
		return nil, err
	}
	if cfg.Budgets.LoopThreshold == 0 {
		cfg.Budgets.LoopThreshold = 3
	}
	if cfg.Budgets.ConsecutiveTransportFailLimit == 0 {
		cfg.Budgets.ConsecutiveTransportFailLimit = 5
	}
	return &Agent{cfg: cfg}, nil
}

// Explore runs one exploration to completion (budget exhaustion,
// cancellation, or strategy exhaustion) and returns the structured result.
// A non-nil error is returned only for world construction failure (spec.md
// §4.8: "World construction error → raised synchronously at agent start");
// all in-run failures surface via ExplorationResult.FatalError instead.
func (a *Agent) Explore(ctx context.Context) (*ExplorationResult, error) {
	start := time.Now()

	w, err := a.cfg.NewWorld(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: world construction: %w", err)
	}

	strat := a.cfg.Strategy
	if strat == nil {
		if w.StackOnlyRollback() {
			strat = strategy.DFS{}
		} else {
			strat = strategy.BFS{}
		}
	}

	sched := scheduler.New(w, a.cfg.Table, a.cfg.Invariants, strat, a.cfg.Budgets, a.cfg.Logger)
	schedResult := sched.Run(ctx)

	result := &ExplorationResult{
		StatesVisited:        schedResult.StatesVisited,
		TransitionsTaken:     schedResult.TransitionsTaken,
		ActionsFired:         len(schedResult.ActionsFired),
		InvariantEvaluations: schedResult.InvariantEvalCount,
		BudgetReached:        schedResult.BudgetReached,
		FatalError:           schedResult.FatalError,
		DurationMs:           time.Since(start).Milliseconds(),
	}

	if total := len(a.cfg.Table.Actions()); total > 0 {
		result.ActionCoveragePercent = 100 * float64(result.ActionsFired) / float64(total)
	}

	result.Violations = a.resolveViolations(ctx, sched.Graph(), schedResult.Violations)

	return result, nil
}

// resolveViolations computes each violation's reproduction path (shortest
// path to StateBefore plus the triggering action), shrinks it if enabled,
// and deduplicates by (invariant name, minimized path) per spec.md §8.1
// property 8.
func (a *Agent) resolveViolations(ctx context.Context, g *stategraph.Graph, raw []invariant.Violation) []Violation {
	shrink := a.cfg.Shrink
	var replay shrinker.Replay
	if shrink {
		replay = shrinker.NewReplayFromTable(func() (*world.World, error) {
			return a.cfg.NewWorld(ctx)
		}, a.cfg.Table, a.cfg.Invariants)
	}

	seen := make(map[string]bool)
	var out []Violation
	for _, v := range raw {
		path := reproductionPath(g, v)
		if shrink && len(path) > 0 {
			shrunk, err := shrinker.Shrink(ctx, path, shrinker.Target{InvariantName: v.InvariantName, Severity: v.Severity}, replay)
			if err == nil {
				path = shrunk
			}
		}

		dedupKey := v.InvariantName + "|" + joinActions(path)
		if seen[dedupKey] {
			continue
		}
		seen[dedupKey] = true

		out = append(out, Violation{Violation: v, ReproductionPath: path})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Severity.Less(out[i].Severity)
	})
	return out
}

func reproductionPath(g *stategraph.Graph, v invariant.Violation) []string {
	if v.StateBefore == "" {
		if v.ActionName != "" {
			return []string{v.ActionName}
		}
		return nil
	}
	transitions := g.ShortestPath(g.InitialState(), stategraph.StateID(v.StateBefore))
	var path []string
	for _, t := range transitions {
		path = append(path, t.ActionName)
	}
	if v.ActionName != "" {
		path = append(path, v.ActionName)
	}
	return path
}

func joinActions(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ">"
		}
		out += n
	}
	return out
}

// RunParallel runs n independent agents concurrently, each built by factory
// (so each gets its own World with its own adapter instances, per spec.md
// §5: "each parallel agent gets its own World with its own adapter
// instances"), and returns one result per agent, in index order;
// MergeViolations unions their violations by (invariant-name, minimized
// path) (spec.md §5). Grounded on the worker-pool fan-out shape of
// worker/pool.go, adapted from a queue-driven pool to a fixed fan-out of n
// independent explorations.
func RunParallel(ctx context.Context, n int, factory func(i int) (Config, error)) ([]*ExplorationResult, error) {
	results := make([]*ExplorationResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := factory(i)
			if err != nil {
				errs[i] = err
				return
			}
			ag, err := New(cfg)
			if err != nil {
				errs[i] = err
				return
			}
			res, err := ag.Explore(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// MergeViolations unions violation sets from multiple parallel explorations,
// deduplicating by (invariant-name, minimized path) per spec.md §5.
func MergeViolations(results []*ExplorationResult) []Violation {
	seen := make(map[string]bool)
	var out []Violation
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, v := range r.Violations {
			key := v.InvariantName + "|" + joinActions(v.ReproductionPath)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Severity.Less(out[i].Severity)
	})
	return out
}
