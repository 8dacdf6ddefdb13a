package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venomqa.dev/venomqa/action"
	"venomqa.dev/venomqa/agent"
	"venomqa.dev/venomqa/respview"
	"venomqa.dev/venomqa/scheduler"
	"venomqa.dev/venomqa/strategy"
	"venomqa.dev/venomqa/venomqa/fakeapi"
	"venomqa.dev/venomqa/world"
)

// TestScenarioFCancellation exercises spec.md §8.2 Scenario F: a 200ms time
// budget against a 500ms-per-call endpoint lets at most one in-flight
// action complete or time out, and the result is well-formed (no panic, no
// dangling checkpoints, BudgetReached == "time").
func TestScenarioFCancellation(t *testing.T) {
	h := NewOrdersHarness(fakeapi.Bugs{SlowPollDelay: 500 * time.Millisecond}, nil)
	defer h.Close()

	table, err := action.NewTable([]action.Action{
		{
			Name: "slow_call",
			Execute: func(ctx context.Context, w *world.World) (*respview.ResponseView, error) {
				return w.API().Do(ctx, "GET", "/slow", nil, nil)
			},
		},
	})
	require.NoError(t, err)

	budgets := scheduler.DefaultBudgets()
	budgets.MaxTimeMs = 200

	ag, err := agent.New(agent.Config{
		NewWorld: h.NewWorld,
		Table:    table,
		Strategy: strategy.BFS{},
		Budgets:  budgets,
	})
	require.NoError(t, err)

	result, err := ag.Explore(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, result.TransitionsTaken, 1)
	assert.Equal(t, scheduler.BudgetTime, result.BudgetReached)
}
