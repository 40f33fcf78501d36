package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/shiftlog/internal/config"
	"github.com/zulandar/shiftlog/internal/db"
	"github.com/zulandar/shiftlog/internal/journal"
	"github.com/zulandar/shiftlog/internal/models"
)

func newJournalCmd() *cobra.Command {
	var (
		limit int
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent report outcomes",
		Long:  "Shows the newest entries of the audit journal: submitted, failed, cancelled, expired and restarted reports.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd, configPath(cmd), limit, since)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultLimit, "number of entries to show")
	cmd.Flags().DurationVar(&since, "since", 0, "also print per-status totals for this window (e.g. 24h)")
	return cmd
}

func runJournal(cmd *cobra.Command, path string, limit int, since time.Duration) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	j, err := journal.New(gormDB)
	if err != nil {
		return err
	}

	logs, err := j.Recent(limit)
	if err != nil {
		return err
	}
	printJournal(out, logs)

	if since > 0 {
		counts, err := j.CountsSince(time.Now().Add(-since))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nLast %s:\n", since)
		if len(counts) == 0 {
			fmt.Fprintln(out, "  no outcomes")
		}
		for _, c := range counts {
			fmt.Fprintf(out, "  %-10s %s\n", colorizeStatus(out, c.Status), formatCount(c.Count))
		}
	}
	return nil
}

func printJournal(out io.Writer, logs []models.ReportLog) {
	if len(logs) == 0 {
		fmt.Fprintln(out, "No outcomes recorded yet.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATUS\tPLATFORM\tUSER\tSTEP\tREPORT\tERROR")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.CreatedAt.Local().Format("2006-01-02 15:04"),
			l.Status,
			l.Platform,
			displayUser(l),
			l.Step,
			shortID(l.ReportID),
			truncate(l.Error, 40),
		)
	}
	w.Flush()
}

func displayUser(l models.ReportLog) string {
	if l.UserName != "" {
		return l.UserName
	}
	return l.UserID
}
