package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venomqa.dev/venomqa/strategy"
)

func TestLoadScenarioKnownNames(t *testing.T) {
	for _, name := range []string{"orders", "items", "poll"} {
		set, err := loadScenario(name)
		require.NoError(t, err, name)
		assert.NotNil(t, set.Table, name)
	}
}

func TestLoadScenarioUnknownName(t *testing.T) {
	_, err := loadScenario("bogus")
	require.Error(t, err)
}

func TestDemoBugsEnablesTheBugEachScenarioTargets(t *testing.T) {
	assert.True(t, demoBugs("orders").OverRefund)
	assert.True(t, demoBugs("items").StaleReadsOnDelete)
	assert.False(t, demoBugs("poll").OverRefund)
	assert.False(t, demoBugs("poll").StaleReadsOnDelete)
}

func TestResolveStrategy(t *testing.T) {
	assert.Equal(t, strategy.BFS{}, resolveStrategy("bfs", 1))
	assert.Equal(t, strategy.DFS{}, resolveStrategy("dfs", 1))
	assert.IsType(t, &strategy.Random{}, resolveStrategy("random", 1))
	assert.IsType(t, &strategy.Weighted{}, resolveStrategy("weighted", 1))
	assert.Equal(t, strategy.CoverageGuided{}, resolveStrategy("coverage", 1))
	assert.Nil(t, resolveStrategy("", 1))
	assert.Nil(t, resolveStrategy("bogus", 1))
}
