package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information, set at build time.
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docmapper",
		Short: "Employee directory service on a lightweight MongoDB document mapper",
		Long: `docmapper serves the employee directory over MongoDB through a small
schema/model/query layer, and carries the tooling to inspect its configuration,
collection names and indexes.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newIndexesCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newStaffCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
