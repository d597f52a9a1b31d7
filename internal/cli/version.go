package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Commit and Date are injected at build time alongside the version.
	Commit = "none"
	Date   = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tagship %v (commit %v, built %v, %v)\n", version, Commit, Date, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
