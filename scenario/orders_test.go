package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venomqa.dev/venomqa/agent"
	"venomqa.dev/venomqa/invariant"
	"venomqa.dev/venomqa/scheduler"
	"venomqa.dev/venomqa/strategy"
	"venomqa.dev/venomqa/venomqa/fakeapi"
)

// TestScenarioADoubleRefund exercises spec.md §8.2 Scenario A: with the
// over-refund bug enabled, create_order → refund_order → refund_order
// surfaces a critical no_over_refund violation.
func TestScenarioADoubleRefund(t *testing.T) {
	h := NewOrdersHarness(fakeapi.Bugs{OverRefund: true}, []string{"order_id", "order_amount", "order_refunded"})
	defer h.Close()

	table, err := OrdersActionTable()
	require.NoError(t, err)

	ag, err := agent.New(agent.Config{
		NewWorld:   h.NewWorld,
		Table:      table,
		Invariants: []invariant.Invariant{NoOverRefund()},
		Strategy:   strategy.BFS{},
		Budgets:    scheduler.Budgets{MaxSteps: 50, LoopThreshold: 3, ConsecutiveTransportFailLimit: 5},
	})
	require.NoError(t, err)

	result, err := ag.Explore(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.FatalError)

	require.Len(t, result.Violations, 1)
	v := result.Violations[0]
	assert.Equal(t, "no_over_refund", v.InvariantName)
	assert.Equal(t, invariant.Critical, v.Severity)
	assert.Equal(t, []string{"create_order", "refund_order", "refund_order"}, v.ReproductionPath)
}

// TestScenarioANoViolationWithoutBug confirms the clean implementation
// never trips no_over_refund.
func TestScenarioANoViolationWithoutBug(t *testing.T) {
	h := NewOrdersHarness(fakeapi.Bugs{}, []string{"order_id", "order_amount", "order_refunded"})
	defer h.Close()

	table, err := OrdersActionTable()
	require.NoError(t, err)

	ag, err := agent.New(agent.Config{
		NewWorld:   h.NewWorld,
		Table:      table,
		Invariants: []invariant.Invariant{NoOverRefund()},
		Strategy:   strategy.BFS{},
		Budgets:    scheduler.Budgets{MaxSteps: 50, LoopThreshold: 3, ConsecutiveTransportFailLimit: 5},
	})
	require.NoError(t, err)

	result, err := ag.Explore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

// TestScenarioBDeleteThenRead exercises spec.md §8.2 Scenario B: a stale-read
// bug surfaces deleted_returns_404 on the create → delete → read path.
func TestScenarioBDeleteThenRead(t *testing.T) {
	h := NewOrdersHarness(fakeapi.Bugs{StaleReadsOnDelete: true}, []string{"item_id", "deleted_item_id"})
	defer h.Close()

	table, err := ItemsActionTable()
	require.NoError(t, err)

	ag, err := agent.New(agent.Config{
		NewWorld:   h.NewWorld,
		Table:      table,
		Invariants: []invariant.Invariant{DeletedReturns404()},
		Strategy:   strategy.BFS{},
		Budgets:    scheduler.Budgets{MaxSteps: 50, LoopThreshold: 3, ConsecutiveTransportFailLimit: 5},
	})
	require.NoError(t, err)

	result, err := ag.Explore(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.FatalError)

	require.Len(t, result.Violations, 1)
	assert.Equal(t, "deleted_returns_404", result.Violations[0].InvariantName)
	assert.Equal(t, invariant.High, result.Violations[0].Severity)
}

// TestScenarioCNoOpLoopDetection exercises spec.md §8.2 Scenario C:
// poll_status changes nothing observable, and the scheduler only enqueues
// actions at newly discovered states, so the frontier empties within the
// loop threshold and exploration ends naturally rather than hitting maxSteps.
func TestScenarioCNoOpLoopDetection(t *testing.T) {
	h := NewOrdersHarness(fakeapi.Bugs{}, nil)
	defer h.Close()

	table, err := PollActionTable()
	require.NoError(t, err)

	budgets := scheduler.DefaultBudgets()
	budgets.MaxSteps = 20

	ag, err := agent.New(agent.Config{
		NewWorld: h.NewWorld,
		Table:    table,
		Strategy: strategy.BFS{},
		Budgets:  budgets,
	})
	require.NoError(t, err)

	result, err := ag.Explore(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.FatalError)

	assert.Equal(t, scheduler.BudgetNone, result.BudgetReached)
	assert.LessOrEqual(t, result.TransitionsTaken, budgets.LoopThreshold)
}
