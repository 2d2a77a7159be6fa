package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voicectl %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
