// Package scheduler implements the exploration inner loop (spec.md §4.6):
// ask the strategy for a (state, action) pair, restore the world to that
// state, execute the action, observe the resulting state, evaluate
// invariants, and record the transition. Grounded on the result/error/timing
// conventions of executor/executor.go, adapted to the checkpoint/rollback
// domain.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"venomqa.dev/venomqa/action"
	"venomqa.dev/venomqa/invariant"
	"venomqa.dev/venomqa/respview"
	"venomqa.dev/venomqa/stategraph"
	"venomqa.dev/venomqa/strategy"
	"venomqa.dev/venomqa/telemetry"
	"venomqa.dev/venomqa/world"
)

// BudgetReached tags why exploration stopped (spec.md §3 ExplorationResult,
// §5 cancellation).
type BudgetReached string

const (
	BudgetNone           BudgetReached = "natural"
	BudgetSteps          BudgetReached = "steps"
	BudgetStates         BudgetReached = "states"
	BudgetTime           BudgetReached = "time"
	BudgetViolationLimit BudgetReached = "violationLimit"
	BudgetCancelled      BudgetReached = "cancelled"
)

// Budgets bounds one exploration run; any one tripping terminates it
// (spec.md §4.6).
type Budgets struct {
	MaxSteps            int
	MaxStates           int
	MaxTimeMs           int64
	MaxViolations       int
	StopOnFirstCritical bool
	// LoopThreshold is the per-(state,action) consecutive no-op-producing
	// invocation count past which the action is flagged advisory-skip
	// (spec.md §4.3, default 3).
	LoopThreshold int
	// ConsecutiveTransportFailLimit fatally aborts exploration after this
	// many consecutive transport errors (spec.md §7, default 5).
	ConsecutiveTransportFailLimit int
}

// DefaultBudgets returns the spec's documented defaults for the advisory
// fields; numeric step/state/time/violation caps are left at 0 (unbounded)
// and must be set by the caller.
func DefaultBudgets() Budgets {
	return Budgets{LoopThreshold: 3, ConsecutiveTransportFailLimit: 5}
}

// Result is the outcome of one scheduler run (the scheduler-facing half of
// spec.md's ExplorationResult; Agent adds coverage/duration bookkeeping on
// top of this).
type Result struct {
	StatesVisited     int
	TransitionsTaken  int
	ActionsFired      map[string]int
	Violations        []invariant.Violation
	Skipped           int
	BudgetReached     BudgetReached
	FatalError        error
	InvariantEvalCount int
}

// Scheduler runs the exploration inner loop against one World.
type Scheduler struct {
	world      *world.World
	graph      *stategraph.Graph
	table      *action.Table
	invariants []invariant.Invariant
	strat      strategy.Strategy
	frontier   *strategy.Frontier
	budgets    Budgets
	logger     *telemetry.ContextLogger

	// spine is the list of state IDs from the root to the current live
	// world state: newly discovered states are appended, and restoreTo
	// trims it back to the state it restores.
	spine []stategraph.StateID

	loopCounts map[loopKey]int
	skippedLoop map[loopKey]bool

	// firedOnPath records, per discovered state, which action names have
	// fired at least once on the path that first reached it — the
	// "preconditions are satisfied on at least one path reaching this node"
	// test of spec.md §4.4, and property 5 of §8.1.
	firedOnPath map[stategraph.StateID]map[string]bool

	transportFailStreak int
}

type loopKey struct {
	state  stategraph.StateID
	action string
}

// New constructs a Scheduler. strat must be strategy.DFS (or another
// stack-respecting strategy) when w.StackOnlyRollback() is true; New does
// not itself enforce that — the caller (typically Agent) is responsible for
// selecting the strategy per spec.md §4.1.
func New(w *world.World, table *action.Table, invariants []invariant.Invariant, strat strategy.Strategy, budgets Budgets, logger *telemetry.ContextLogger) *Scheduler {
	return &Scheduler{
		world:       w,
		graph:       stategraph.New(),
		table:       table,
		invariants:  invariants,
		strat:       strat,
		frontier:    strategy.NewFrontier(),
		budgets:     budgets,
		logger:      logger,
		loopCounts:  make(map[loopKey]int),
		skippedLoop: make(map[loopKey]bool),
		firedOnPath: make(map[stategraph.StateID]map[string]bool),
	}
}

// Graph exposes the recorded exploration graph, e.g. for shrinking.
func (s *Scheduler) Graph() *stategraph.Graph { return s.graph }

// Run executes the inner loop until the strategy is exhausted, a budget
// trips, or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{ActionsFired: make(map[string]int)}

	initialState, err := s.world.Fingerprint(ctx, "")
	if err != nil {
		res.FatalError = fmt.Errorf("scheduler: initial fingerprint: %w", err)
		return res
	}
	s.graph.AddState(initialState, nil)
	s.graph.SetInitialState(initialState)
	tok, err := s.world.Checkpoint(ctx)
	if err != nil {
		res.FatalError = fmt.Errorf("scheduler: initial checkpoint: %w", err)
		return res
	}
	s.graph.SetToken(initialState, tok)
	s.spine = []stategraph.StateID{initialState}
	s.firedOnPath[initialState] = make(map[string]bool)
	res.StatesVisited++

	s.enqueueEligible(ctx, initialState)

	currentState := initialState

	for {
		if ctx.Err() != nil {
			res.BudgetReached = BudgetCancelled
			break
		}
		if s.budgets.MaxTimeMs > 0 && time.Since(start).Milliseconds() >= s.budgets.MaxTimeMs {
			res.BudgetReached = BudgetTime
			break
		}
		if s.budgets.MaxSteps > 0 && res.TransitionsTaken >= s.budgets.MaxSteps {
			res.BudgetReached = BudgetSteps
			break
		}
		if s.budgets.MaxStates > 0 && res.StatesVisited >= s.budgets.MaxStates {
			res.BudgetReached = BudgetStates
			break
		}
		if s.budgets.MaxViolations > 0 && len(res.Violations) >= s.budgets.MaxViolations {
			res.BudgetReached = BudgetViolationLimit
			break
		}

		pair, ok := s.strat.Pick(s.graph, s.frontier)
		if !ok {
			res.BudgetReached = BudgetNone
			break
		}

		lk := loopKey{state: pair.State, action: pair.Action}
		if s.skippedLoop[lk] {
			res.Skipped++
			continue
		}

		if pair.State != currentState {
			if err := s.restoreTo(ctx, pair.State); err != nil {
				res.FatalError = err
				return res
			}
			currentState = pair.State
		}

		act, found := s.table.Get(pair.Action)
		if !found {
			continue
		}

		preTok, err := s.world.Checkpoint(ctx)
		if err != nil {
			res.FatalError = fmt.Errorf("scheduler: pre-action checkpoint at %s: %w", pair.Action, err)
			return res
		}

		actionStart := time.Now()
		outcome := act.Run(ctx, s.world)
		elapsed := time.Since(actionStart)
		res.ActionsFired[pair.Action]++

		switch outcome.Outcome {
		case action.OutcomeSkipped:
			res.Skipped++
			s.graph.MarkExplored(pair.State, pair.Action)
			continue

		case action.OutcomeAssertionFailed:
			res.Violations = append(res.Violations, invariant.Violation{
				InvariantName: "action_assertion",
				Severity:      invariant.High,
				Message:       outcome.Err.Error(),
				StateBefore:   string(pair.State),
				ActionName:    pair.Action,
			})
			s.graph.MarkExplored(pair.State, pair.Action)
			if err := s.world.Rollback(ctx, preTok); err != nil {
				res.FatalError = fmt.Errorf("scheduler: rollback after assertion failure: %w", err)
				return res
			}
			continue

		case action.OutcomeError:
			isTransport := isTransportError(outcome.Err)
			name, sev := "action_error", invariant.Critical
			if isTransport {
				name, sev = "transport", invariant.High
				s.transportFailStreak++
			} else {
				s.transportFailStreak = 0
			}
			res.Violations = append(res.Violations, invariant.Violation{
				InvariantName: name,
				Severity:      sev,
				Message:       outcome.Err.Error(),
				StateBefore:   string(pair.State),
				ActionName:    pair.Action,
			})
			s.graph.MarkExplored(pair.State, pair.Action)
			if err := s.world.Rollback(ctx, preTok); err != nil {
				res.FatalError = fmt.Errorf("scheduler: rollback after action error: %w", err)
				return res
			}
			if s.budgets.StopOnFirstCritical && sev == invariant.Critical {
				res.BudgetReached = BudgetViolationLimit
				return res
			}
			if s.budgets.ConsecutiveTransportFailLimit > 0 && s.transportFailStreak >= s.budgets.ConsecutiveTransportFailLimit {
				res.FatalError = fmt.Errorf("scheduler: %d consecutive transport failures", s.transportFailStreak)
				return res
			}
			continue
		}

		s.transportFailStreak = 0

		newState, err := s.world.Fingerprint(ctx, pair.Action)
		if err != nil {
			res.FatalError = fmt.Errorf("scheduler: fingerprint after %s: %w", pair.Action, err)
			return res
		}

		t := stategraph.Transition{
			FromState:  pair.State,
			ActionName: pair.Action,
			ToState:    newState,
			Success:    true,
			ElapsedMs:  elapsed.Milliseconds(),
			Response:   summarizeResponse(outcome.Response),
			Timestamp:  time.Now(),
		}

		critical := false
		for _, inv := range s.invariants {
			res.InvariantEvalCount++
			if v := invariant.Evaluate(ctx, inv, s.world); v != nil {
				v.StateBefore = string(pair.State)
				v.StateAfter = string(newState)
				v.ActionName = pair.Action
				res.Violations = append(res.Violations, *v)
				t.InvariantResults = append(t.InvariantResults, stategraph.InvariantResult{
					InvariantName: v.InvariantName, Passed: false, Message: v.Message,
				})
				if v.Severity == invariant.Critical {
					critical = true
				}
			} else {
				t.InvariantResults = append(t.InvariantResults, stategraph.InvariantResult{
					InvariantName: inv.Name, Passed: true,
				})
			}
		}

		s.graph.AddTransition(t)
		res.TransitionsTaken++

		if newState == pair.State {
			s.loopCounts[lk]++
			if s.budgets.LoopThreshold > 0 && s.loopCounts[lk] > s.budgets.LoopThreshold {
				s.skippedLoop[lk] = true
			}
		} else {
			s.loopCounts[lk] = 0
		}

		isNew := !s.graph.HasState(newState)
		if isNew {
			s.graph.AddState(newState, nil)
			res.StatesVisited++
			tok, err := s.world.Checkpoint(ctx)
			if err != nil {
				res.FatalError = fmt.Errorf("scheduler: checkpoint at new state %s: %w", newState, err)
				return res
			}
			s.graph.SetToken(newState, tok)
			s.spine = append(s.spine, newState)
			currentState = newState

			fired := make(map[string]bool, len(s.firedOnPath[pair.State])+1)
			for name := range s.firedOnPath[pair.State] {
				fired[name] = true
			}
			fired[pair.Action] = true
			s.firedOnPath[newState] = fired

			s.enqueueEligible(ctx, newState)
		}
		s.graph.MarkExplored(pair.State, pair.Action)

		if s.budgets.StopOnFirstCritical && critical {
			res.BudgetReached = BudgetViolationLimit
			return res
		}
	}

	return res
}

// restoreTo rolls the world back to target with a single World.Rollback to
// target's recorded token, then trims the spine to end at target (or
// appends target when it is not on the spine). It issues no rollbacks for
// the spine entries between the live state and target, under stack-only
// adapters as well.
func (s *Scheduler) restoreTo(ctx context.Context, target stategraph.StateID) error {
	tok := s.graph.Token(target)
	if tok == nil {
		return fmt.Errorf("scheduler: no checkpoint token recorded for state %s", target)
	}
	if err := s.world.Rollback(ctx, tok); err != nil {
		return fmt.Errorf("scheduler: rollback to %s: %w", target, err)
	}
	for i, st := range s.spine {
		if st == target {
			s.spine = s.spine[:i+1]
			return nil
		}
	}
	s.spine = append(s.spine, target)
	return nil
}

// enqueueEligible pushes every precondition-satisfied action at state whose
// MaxCalls budget is not yet used up along the shortest recorded path to
// state into the frontier, and records them as state's declared actions for
// UnexploredAt bookkeeping.
func (s *Scheduler) enqueueEligible(ctx context.Context, state stategraph.StateID) {
	fired := s.firedOnPath[state]

	var eligible []string
	var pairs []strategy.Pair
	for _, act := range s.table.Actions() {
		satisfied := true
		for _, dep := range act.Preconds {
			if !fired[dep] {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}
		if act.Precond != nil && !act.Precond(ctx, s.world) {
			continue
		}
		if act.MaxCalls > 0 {
			n := 0
			for _, t := range s.graph.ShortestPath(s.graph.InitialState(), state) {
				if t.ActionName == act.Name {
					n++
				}
			}
			if n >= act.MaxCalls {
				continue
			}
		}
		eligible = append(eligible, act.Name)
		pairs = append(pairs, strategy.Pair{State: state, Action: act.Name})
	}
	s.graph.SetDeclaredActions(state, eligible)
	s.frontier.Enqueue(pairs...)
}

func summarizeResponse(r *respview.ResponseView) stategraph.ResponseSummary {
	if r == nil {
		return stategraph.ResponseSummary{}
	}
	return stategraph.ResponseSummary{Status: r.Status(), BodyExcerpt: string(r.BodyExcerpt(4096))}
}

// isTransportError reports whether err wraps the *url.Error net/http returns
// for a failed round trip (httpapi.Client.Do wraps it with %w).
func isTransportError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
