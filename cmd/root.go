// Package cmd defines the CLI commands for the leadharvest executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadharvest",
		Short: "Scrapes business listings and enriches them with contact emails.",
		Long: `leadharvest walks a configured grid of locations and business categories,
resolves listings from a public directory with a places-API fallback, crawls
each listing's website for contact emails, and streams deduplicated records
to a CSV file. Progress survives interruption: dedupe state is checkpointed
so a rerun resumes where the last one stopped.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./leadharvest.yaml)")

	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
