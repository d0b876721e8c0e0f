package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd returns the gstreport command tree. Running it without a subcommand serves.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gstreport",
		Short: "GST audit report scheduler and webhook service",
		Long: `gstreport builds the monthly GST audit spreadsheet from stored orders and
emails it to the configured recipients exactly once per month.

It runs an HTTP service with an authenticated webhook and an admin API, and
carries its own wake-up timer plus cron health checks so a report is sent even
when the process restarts around the due time.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(TriggerCmd())
	rootCmd.AddCommand(NextRunCmd())
	rootCmd.AddCommand(KeyCmd())
	rootCmd.AddCommand(MigrateCmd())

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
