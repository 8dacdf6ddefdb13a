package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"venomqa.dev/venomqa/agent"
	"venomqa.dev/venomqa/config"
	"venomqa.dev/venomqa/scheduler"
	"venomqa.dev/venomqa/strategy"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "run an exploration and report any violations found",
	RunE:  runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}

// resolveStrategy maps --strategy to a concrete strategy.Strategy. An
// empty or unrecognized name returns nil, letting agent.New fall back to
// its automatic choice (DFS under StackOnlyRollback, BFS otherwise).
func resolveStrategy(name string, seed int64) strategy.Strategy {
	switch name {
	case "bfs":
		return strategy.BFS{}
	case "dfs":
		return strategy.DFS{}
	case "random":
		return strategy.NewRandom(seed)
	case "weighted":
		return strategy.NewWeighted(nil, seed)
	case "coverage":
		return strategy.CoverageGuided{}
	default:
		return nil
	}
}

func runExplore(cmd *cobra.Command, args []string) error {
	target := config.TargetConfig{
		URL:              viper.GetString("target"),
		Scenario:         viper.GetString("scenario"),
		StateFromContext: viper.GetStringSlice("state-from"),
	}
	if err := config.ValidateTarget(target); err != nil {
		return err
	}

	set, err := loadScenario(target.Scenario)
	if err != nil {
		return err
	}

	newWorld, closeFn, err := newWorldFactory(target.URL, target.Scenario, target.StateFromContext)
	if err != nil {
		return err
	}
	defer closeFn()

	budgets := scheduler.DefaultBudgets()
	budgets.MaxSteps = viper.GetInt("max-steps")
	budgets.MaxStates = viper.GetInt("max-states")
	budgets.MaxTimeMs = viper.GetInt64("max-time-ms")
	budgets.StopOnFirstCritical = viper.GetBool("stop-on-first-critical")

	seed := viper.GetInt64("seed")
	ag, err := agent.New(agent.Config{
		NewWorld:   newWorld,
		Table:      set.Table,
		Invariants: set.Invariants,
		Strategy:   resolveStrategy(viper.GetString("strategy"), seed),
		Seed:       seed,
		Budgets:    budgets,
	})
	if err != nil {
		return fmt.Errorf("configuring agent: %w", err)
	}

	result, err := ag.Explore(context.Background())
	if err != nil {
		return fmt.Errorf("exploring: %w", err)
	}

	if err := printResult(result); err != nil {
		return err
	}
	if len(result.Violations) > 0 {
		return fmt.Errorf("%d violation(s) found", len(result.Violations))
	}
	return nil
}

// printResult renders the exploration result as YAML by default, or JSON
// with --json, to stdout, preceded by a one-line human-readable summary on
// stderr.
func printResult(result *agent.ExplorationResult) error {
	fmt.Fprintf(os.Stderr, "%s states, %s transitions, %s violation(s) in %s (budget: %s)\n",
		humanize.Comma(int64(result.StatesVisited)),
		humanize.Comma(int64(result.TransitionsTaken)),
		humanize.Comma(int64(len(result.Violations))),
		time.Duration(result.DurationMs)*time.Millisecond,
		result.BudgetReached,
	)

	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	out, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
