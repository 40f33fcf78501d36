package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/shiftlog/internal/config"
	"github.com/zulandar/shiftlog/internal/report"
	"github.com/zulandar/shiftlog/internal/sheets"
)

func newSheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Google Sheet management commands",
	}

	cmd.AddCommand(newSheetInitCmd())
	cmd.AddCommand(newSheetHeaderCmd())
	return cmd
}

func newSheetInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the header row if the sheet is empty",
		Long:  "Checks row 1 of the configured sheet and writes the column titles when it is empty. An existing header is never rewritten.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheetInit(cmd, configPath(cmd))
		},
	}
}

func newSheetHeaderCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "header",
		Short: "Print the column titles for the configured flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheetHeader(cmd, configPath(cmd), remote)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "also read row 1 from the sheet and compare")
	return cmd
}

func openSheet(ctx context.Context, path string) (*config.Config, *sheets.Appender, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	appender, err := newAppender(ctx, cfg, creds)
	if err != nil {
		return nil, nil, err
	}
	return cfg, appender, nil
}

func runSheetInit(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, appender, err := openSheet(ctx, path)
	if err != nil {
		return err
	}
	wrote, err := appender.EnsureHeader(ctx)
	if err != nil {
		return err
	}
	if wrote {
		fmt.Fprintf(out, "Header written to sheet %s\n", cfg.Google.SheetID)
	} else {
		fmt.Fprintf(out, "Sheet %s already has a header; left unchanged\n", cfg.Google.SheetID)
	}
	return nil
}

func runSheetHeader(cmd *cobra.Command, path string, remote bool) error {
	out := cmd.OutOrStdout()

	if !remote {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		fmt.Fprintln(out, strings.Join(report.Header(flowFromConfig(cfg)), " | "))
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	_, appender, err := openSheet(ctx, path)
	if err != nil {
		return err
	}
	want := appender.Header()
	fmt.Fprintf(out, "expected: %s\n", strings.Join(want, " | "))
	got, err := appender.CurrentHeader(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "sheet:    %s\n", strings.Join(got, " | "))
	if !headersEqual(want, got) {
		fmt.Fprintf(out, "%s\n", colorize(out, colorYellow, "header differs from the configured flow"))
	}
	return nil
}

func headersEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}
