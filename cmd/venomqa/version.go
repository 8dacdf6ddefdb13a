package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"venomqa.dev/venomqa/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the venomqa module version and Go toolchain used to build it",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetBuildInfo()
		fmt.Printf("venomqa %s (%s)\n", version.GetVenomQAVersion(), info.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
