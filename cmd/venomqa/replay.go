package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venomqa.dev/venomqa/config"
	"venomqa.dev/venomqa/shrinker"
	"venomqa.dev/venomqa/world"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "replay a fixed action sequence from a fresh world and report any violations",
	Long: `replay re-initializes a fresh world (spec.md §4.7's Replay contract)
and fires the given comma-separated action names in order, without any
scheduler or strategy involved. Use it to confirm a reproduction path
reported by "explore" still triggers the same violation, e.g. after a fix.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("path", "", "comma-separated action names to replay in order")
	viper.BindPFlag("path", replayCmd.Flags().Lookup("path"))
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	pathFlag := viper.GetString("path")
	if strings.TrimSpace(pathFlag) == "" {
		return fmt.Errorf("--path is required, e.g. --path create_order,refund_order,refund_order")
	}
	path := strings.Split(pathFlag, ",")
	for i := range path {
		path[i] = strings.TrimSpace(path[i])
	}

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

	ctx := context.Background()
	replay := shrinker.NewReplayFromTable(ctxlessNewWorld(ctx, newWorld), set.Table, set.Invariants)
	violations, err := replay(ctx, path)
	if err != nil {
		return fmt.Errorf("replaying: %w", err)
	}

	if len(violations) == 0 {
		fmt.Println("no violations observed")
		return nil
	}
	for _, v := range violations {
		fmt.Printf("[%s] %s: %s (action: %s)\n", v.Severity, v.InvariantName, v.Message, v.ActionName)
	}
	return fmt.Errorf("%d violation(s) observed", len(violations))
}

// ctxlessNewWorld adapts a context-taking World factory to the
// context-free signature shrinker.NewReplayFromTable expects, binding it
// to a single fixed context for the lifetime of one replay call.
func ctxlessNewWorld(ctx context.Context, newWorld func(context.Context) (*world.World, error)) func() (*world.World, error) {
	return func() (*world.World, error) {
		return newWorld(ctx)
	}
}
