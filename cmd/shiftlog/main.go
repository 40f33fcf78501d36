package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shiftlog",
		Short: "shiftlog: driver shift-report chat bot",
		Long: "shiftlog collects driver shift reports over chat (Telegram, Slack, Discord),\n" +
			"appends them to a Google Sheet and stores photos in Google Drive.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", os.Getenv("SHIFTLOG_CONFIG"), "path to shiftlog config file (environment only when empty)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSheetCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newJournalCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shiftlog %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// configPath returns the --config flag value inherited from the root command.
func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
