// Package cli implements the genie-export command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "genie-export",
	Short: "Export Opsgenie alerts to a spreadsheet",
	Long: "Fetches alerts from the Opsgenie API over a date range, enriches them " +
		"with their audit logs, and writes the result as a formatted Excel file. " +
		"Wide ranges are fetched as parallel week-sized chunks.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
