package main

import (
	"context"
	"fmt"

	"venomqa.dev/venomqa/action"
	"venomqa.dev/venomqa/httpapi"
	"venomqa.dev/venomqa/invariant"
	"venomqa.dev/venomqa/scenario"
	"venomqa.dev/venomqa/venomqa"
	"venomqa.dev/venomqa/venomqa/fakeapi"
	"venomqa.dev/venomqa/world"
)

// scenarioSet bundles an action table with the invariants that judge it.
type scenarioSet struct {
	Table      *action.Table
	Invariants []invariant.Invariant
}

// loadScenario resolves one of the bundled demonstration scenarios
// (spec.md §8.2) by name. These double as the worked examples a new
// venomqa user copies from when wiring their own action table.
func loadScenario(name string) (scenarioSet, error) {
	switch name {
	case "orders":
		table, err := scenario.OrdersActionTable()
		if err != nil {
			return scenarioSet{}, err
		}
		return scenarioSet{Table: table, Invariants: []invariant.Invariant{scenario.NoOverRefund()}}, nil
	case "items":
		table, err := scenario.ItemsActionTable()
		if err != nil {
			return scenarioSet{}, err
		}
		return scenarioSet{Table: table, Invariants: []invariant.Invariant{scenario.DeletedReturns404()}}, nil
	case "poll":
		table, err := scenario.PollActionTable()
		if err != nil {
			return scenarioSet{}, err
		}
		return scenarioSet{Table: table}, nil
	default:
		return scenarioSet{}, fmt.Errorf("unknown scenario %q (want orders, items, or poll)", name)
	}
}

// demoBugs enables whichever bug the named scenario is built to catch, so
// running "venomqa explore" with no --target surfaces a violation without
// any setup.
func demoBugs(scenarioName string) fakeapi.Bugs {
	switch scenarioName {
	case "orders":
		return fakeapi.Bugs{OverRefund: true}
	case "items":
		return fakeapi.Bugs{StaleReadsOnDelete: true}
	default:
		return fakeapi.Bugs{}
	}
}

// newWorldFactory returns the World constructor and teardown func an
// agent.Config needs. With no --target it starts the bundled fakeapi demo
// in-process; with --target set it drives a live deployment over the
// venomqa control protocol (spec.md §6.3) instead.
func newWorldFactory(target, scenarioName string, stateFromContext []string) (func(ctx context.Context) (*world.World, error), func(), error) {
	if target == "" {
		h := scenario.NewOrdersHarness(demoBugs(scenarioName), stateFromContext)
		return h.NewWorld, h.Close, nil
	}

	seq := 0
	newWorld := func(ctx context.Context) (*world.World, error) {
		seq++
		ctrlAPI := httpapi.New(httpapi.Config{BaseURL: target})
		ctrl, err := venomqa.Open(ctx, ctrlAPI, fmt.Sprintf("venomqa-cli-%d", seq))
		if err != nil {
			return nil, fmt.Errorf("opening venomqa session against %s: %w", target, err)
		}

		dataAPI := httpapi.New(httpapi.Config{BaseURL: target, DefaultHeaders: ctrl.Headers()})
		w, err := world.New(world.Config{
			API:               dataAPI,
			StateFromContext:  stateFromContext,
			IncludeLastAction: true,
		})
		if err != nil {
			return nil, err
		}
		w.Register("venomqa", ctrl)
		return w, nil
	}
	return newWorld, func() {}, nil
}
