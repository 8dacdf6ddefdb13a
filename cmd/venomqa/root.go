// Package main provides the venomqa CLI: a thin runner that drives
// agent.Agent against either a built-in demonstration scenario (spec.md
// §8.2) or a live API reachable over the control protocol (spec.md §6.3).
// venomqa is designed first as an embeddable library — NewWorldFunc,
// action.Table, and invariant.Invariant are ordinary Go values a host
// program constructs directly — so this command intentionally stays small:
// config plumbing, scenario selection, and result formatting.
package main

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venomqa.dev/venomqa/config"
)

var cfgFile string

// rootCmd is the venomqa entry point. Subcommands (explore, replay) read
// their configuration through viper, which layers flags over environment
// variables over an optional config file, matching the precedence rule the
// rest of this codebase's services use.
var rootCmd = &cobra.Command{
	Use:   "venomqa",
	Short: "autonomous stateful API exploration",
	Long: `venomqa drives an agent.Agent through an HTTP API under test,
firing actions, checking invariants after every transition, and reporting
any violation together with a minimal reproduction path.

Run "venomqa explore" against the bundled Orders/Items demo to see the
engine catch a double-refund bug, or point --target at a live deployment
speaking the venomqa control protocol (GET/POST /venomqa/*) to explore it.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.venomqa.yaml)")
	rootCmd.PersistentFlags().String("target", "", "base URL of the API under test; empty runs the bundled in-process demo")
	rootCmd.PersistentFlags().String("scenario", "orders", "built-in scenario to run: orders, items, or poll")
	rootCmd.PersistentFlags().StringSlice("state-from", nil, "context keys included in the state fingerprint")
	rootCmd.PersistentFlags().String("strategy", "", "bfs, dfs, random, weighted, or coverage (default: auto)")
	rootCmd.PersistentFlags().Int64("seed", 1, "PRNG seed for strategies that need one")
	rootCmd.PersistentFlags().Int("max-steps", 0, "maximum transitions to take (0 = unbounded)")
	rootCmd.PersistentFlags().Int("max-states", 0, "maximum distinct states to visit (0 = unbounded)")
	rootCmd.PersistentFlags().Int64("max-time-ms", 0, "wall-clock budget in milliseconds (0 = unbounded)")
	rootCmd.PersistentFlags().Bool("stop-on-first-critical", false, "stop exploring as soon as a critical violation is found")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON instead of YAML")

	for _, name := range []string{
		"target", "scenario", "state-from", "strategy", "seed",
		"max-steps", "max-states", "max-time-ms", "stop-on-first-critical", "json",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig mirrors the home/working-directory config search used
// elsewhere in this codebase, but resolves the home directory through
// go-homedir rather than os.UserHomeDir so the lookup also works from
// within environments without a conventional $HOME (notably cross-compiled
// Windows binaries, go-homedir's reason for existing).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".venomqa")
	}

	viper.SetEnvPrefix("venomqa")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}

	// Environment variables (VENOMQA_TARGET, VENOMQA_SCENARIO, ...) seed
	// flag defaults; an explicit flag still wins via viper's precedence.
	target := config.LoadTargetConfig("VENOMQA")
	viper.SetDefault("target", target.URL)
	viper.SetDefault("scenario", target.Scenario)
	viper.SetDefault("state-from", target.StateFromContext)

	budgets := config.LoadBudgetsConfig("VENOMQA")
	viper.SetDefault("max-steps", budgets.MaxSteps)
	viper.SetDefault("max-states", budgets.MaxStates)
	viper.SetDefault("max-time-ms", budgets.MaxTimeMs)
	viper.SetDefault("stop-on-first-critical", budgets.StopOnFirstCritical)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
