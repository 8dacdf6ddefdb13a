// Package action defines Action, the unit of state transition an agent may
// attempt during exploration (spec.md §4.3), and ValidateTable, which checks
// an action table for the structural invariants the scheduler depends on.
// Precondition cycle/reference checking is adapted from the visited/
// recursion-stack DFS cycle check in graph/dag.go.
package action

import (
	"context"
	"fmt"

	"venomqa.dev/venomqa/respview"
	"venomqa.dev/venomqa/world"
)

// Outcome classifies how an action's execution ended (spec.md §4.3).
type Outcome int

const (
	// OutcomeOK means the action ran and its assertions passed.
	OutcomeOK Outcome = iota
	// OutcomeSkipped means the action declined to run (precondition false
	// at the scheduler's discretion, or the action itself chose to no-op).
	OutcomeSkipped
	// OutcomeAssertionFailed means the action's own response assertion
	// failed — distinct from a transport/invariant violation.
	OutcomeAssertionFailed
	// OutcomeError means execution returned an error other than a
	// *respview.AssertionError (a transport failure, or any other error).
	OutcomeError
)

// Result is what Run returns.
type Result struct {
	Outcome  Outcome
	Response *respview.ResponseView // nil if the action made no HTTP call
	Err      error                  // set for OutcomeAssertionFailed and OutcomeError
}

// Precondition reports whether an action may be attempted in the current
// World state. Returning false yields OutcomeSkipped without calling Execute.
type Precondition func(ctx context.Context, w *world.World) bool

// ExecuteFunc performs the action's side effects against w and returns the
// response it got (if any) and an error. Implementations call
// w.API().Do(...) and read/write w.Context(). A returned
// *respview.AssertionError is translated to OutcomeAssertionFailed by Run;
// any other error becomes OutcomeError.
type ExecuteFunc func(ctx context.Context, w *world.World) (*respview.ResponseView, error)

// Action is one named, preconditioned operation an agent can attempt.
type Action struct {
	Name       string
	Execute    ExecuteFunc
	Preconds   []string // names of other actions; this action requires their postconditions to hold, expressed as a Precondition below
	Precond    Precondition
	MaxCalls   int // 0 means unlimited
	Tags       []string
}

// Run executes the action, applying Precond first and classifying the
// outcome.
func (a Action) Run(ctx context.Context, w *world.World) Result {
	if a.Precond != nil && !a.Precond(ctx, w) {
		return Result{Outcome: OutcomeSkipped}
	}

	resp, err := a.Execute(ctx, w)
	if err == nil {
		return Result{Outcome: OutcomeOK, Response: resp}
	}

	if _, isAssertion := err.(*respview.AssertionError); isAssertion {
		return Result{Outcome: OutcomeAssertionFailed, Response: resp, Err: err}
	}
	return Result{Outcome: OutcomeError, Response: resp, Err: err}
}

// Table is a named, ordered collection of actions, the unit the scheduler
// picks from.
type Table struct {
	actions []Action
	byName  map[string]int
}

// NewTable validates and wraps actions into a Table.
func NewTable(actions []Action) (*Table, error) {
	if err := ValidateTable(actions); err != nil {
		return nil, err
	}
	byName := make(map[string]int, len(actions))
	for i, a := range actions {
		byName[a.Name] = i
	}
	return &Table{actions: actions, byName: byName}, nil
}

// Actions returns the table's actions in declaration order.
func (t *Table) Actions() []Action { return t.actions }

// Get looks up an action by name.
func (t *Table) Get(name string) (Action, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Action{}, false
	}
	return t.actions[i], true
}

// ValidateTable checks: action names are unique, every Execute is non-nil,
// and every name listed in Preconds refers to a declared action with no
// cyclic reference chain — reusing the same visited/recursion-stack DFS
// shape graph/dag.go uses for workflow dependency cycles, since "does
// action A's precondition chain eventually depend on A" is the same
// question as "does this DAG have a cycle".
func ValidateTable(actions []Action) error {
	names := make(map[string]bool, len(actions))
	for _, a := range actions {
		if a.Name == "" {
			return fmt.Errorf("action: unnamed action in table")
		}
		if names[a.Name] {
			return fmt.Errorf("action: duplicate action name %q", a.Name)
		}
		names[a.Name] = true
		if a.Execute == nil {
			return fmt.Errorf("action %q: Execute must not be nil", a.Name)
		}
	}

	for _, a := range actions {
		for _, dep := range a.Preconds {
			if !names[dep] {
				return fmt.Errorf("action %q: precondition references undeclared action %q", a.Name, dep)
			}
		}
	}

	byName := make(map[string]Action, len(actions))
	for _, a := range actions {
		byName[a.Name] = a
	}
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	for _, a := range actions {
		if !visited[a.Name] {
			if err := checkPrecondCycle(a.Name, byName, visited, recStack); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkPrecondCycle(name string, byName map[string]Action, visited, recStack map[string]bool) error {
	visited[name] = true
	recStack[name] = true

	for _, dep := range byName[name].Preconds {
		if !visited[dep] {
			if err := checkPrecondCycle(dep, byName, visited, recStack); err != nil {
				return err
			}
		} else if recStack[dep] {
			return fmt.Errorf("action: circular precondition dependency: %s -> %s", name, dep)
		}
	}

	recStack[name] = false
	return nil
}
