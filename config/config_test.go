package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTargetConfigDefaults(t *testing.T) {
	t.Setenv("VENOMQATEST_TARGET", "")
	t.Setenv("VENOMQATEST_SCENARIO", "")
	t.Setenv("VENOMQATEST_STATE_FROM", "")

	cfg := LoadTargetConfig("VENOMQATEST")
	assert.Equal(t, "", cfg.URL)
	assert.Equal(t, "orders", cfg.Scenario)
	assert.Nil(t, cfg.StateFromContext)
}

func TestLoadTargetConfigFromEnv(t *testing.T) {
	t.Setenv("VENOMQATEST_TARGET", "http://localhost:9000")
	t.Setenv("VENOMQATEST_SCENARIO", "items")
	t.Setenv("VENOMQATEST_STATE_FROM", "item_id, deleted_item_id")

	cfg := LoadTargetConfig("VENOMQATEST")
	assert.Equal(t, "http://localhost:9000", cfg.URL)
	assert.Equal(t, "items", cfg.Scenario)
	assert.Equal(t, []string{"item_id", "deleted_item_id"}, cfg.StateFromContext)
}

func TestLoadBudgetsConfigOverridesOnlyNumericCaps(t *testing.T) {
	t.Setenv("VENOMQATEST_MAX_STEPS", "100")
	t.Setenv("VENOMQATEST_MAX_TIME_MS", "5000")

	budgets := LoadBudgetsConfig("VENOMQATEST")
	assert.Equal(t, 100, budgets.MaxSteps)
	assert.EqualValues(t, 5000, budgets.MaxTimeMs)
	assert.Equal(t, 3, budgets.LoopThreshold)
	assert.Equal(t, 5, budgets.ConsecutiveTransportFailLimit)
}

func TestValidateTargetRejectsBadURL(t *testing.T) {
	err := ValidateTarget(TargetConfig{URL: "not-a-url", Scenario: "orders"})
	require.Error(t, err)
}

func TestValidateTargetRejectsUnknownScenario(t *testing.T) {
	err := ValidateTarget(TargetConfig{URL: "", Scenario: "bogus"})
	require.Error(t, err)
}

func TestValidateTargetAcceptsEmptyURLAndKnownScenario(t *testing.T) {
	err := ValidateTarget(TargetConfig{URL: "", Scenario: "poll"})
	require.NoError(t, err)
}
