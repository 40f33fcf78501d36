package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zulandar/shiftlog/internal/broker"
	"github.com/zulandar/shiftlog/internal/chat"
	"github.com/zulandar/shiftlog/internal/config"
	"github.com/zulandar/shiftlog/internal/db"
	"github.com/zulandar/shiftlog/internal/health"
	"github.com/zulandar/shiftlog/internal/journal"
	"github.com/zulandar/shiftlog/internal/metrics"
	"github.com/zulandar/shiftlog/internal/report"
)

func newServeCmd() *cobra.Command {
	var noJournal bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the report bot and the health server",
		Long: "Connects to the configured chat platform, runs report conversations, and\n" +
			"serves /health and /metrics until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath(cmd), noJournal)
		},
	}

	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not record outcomes in the audit database")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, noJournal bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return err
	}
	appender, err := newAppender(ctx, cfg, creds)
	if err != nil {
		return err
	}
	if _, err := appender.EnsureHeader(ctx); err != nil {
		// The first append retries the header check.
		log.Printf("shiftlog: sheet header check: %v", err)
	}
	uploader, err := newUploader(ctx, cfg, creds)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	sinks := []report.OutcomeSink{recorder}

	var jr *journal.Journal
	if !noJournal {
		gormDB, err := db.Open(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(gormDB); err != nil {
			return err
		}
		if jr, err = journal.New(gormDB); err != nil {
			return err
		}
		sinks = append(sinks, jr)
		fmt.Fprintf(out, "Journal: %s database\n", cfg.Database.Driver)
	}

	if cfg.Broker.Enabled() {
		pub, err := broker.NewPublisher(broker.PublisherOpts{
			URL:      cfg.Broker.URL,
			Exchange: cfg.Broker.Exchange,
			Header:   appender.Header(),
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		fmt.Fprintf(out, "Broker: publishing to %s\n", cfg.Broker.Exchange)
	}

	ctrl, err := report.NewController(report.ControllerOpts{
		Flow:      flowFromConfig(cfg),
		Persister: appender,
		Uploader:  uploader,
		PhotoDir:  cfg.PhotoDir,
		Location:  loc,
		Sinks:     sinks,
		Observer:  recorder,
	})
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	daemon, err := chat.NewDaemon(chat.DaemonOpts{
		Adapter:    adapter,
		Controller: ctrl,
		Store: chat.NewSessionStore(chat.SessionStoreOpts{
			IdleTimeout: cfg.Sessions.IdleTimeout,
		}),
		SweepSchedule: cfg.Sessions.SweepCron,
		Counter:       recorder,
		Out:           out,
	})
	if err != nil {
		return err
	}

	healthOpts := healthOptions(cfg, jr, out)
	healthErr := make(chan error, 1)
	go func() {
		err := health.Start(ctx, healthOpts)
		if err != nil {
			// A bot without its liveness probe gets restarted anyway.
			log.Printf("shiftlog: %v", err)
			cancel()
		}
		healthErr <- err
	}()

	fmt.Fprintf(out, "Platform: %s  Flow: %s\n", cfg.Platform, describeFlow(flowFromConfig(cfg)))
	runErr := daemon.Run(ctx)
	cancel()
	if err := <-healthErr; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// healthOptions wires the journal into the health server only when the
// operator asked for /api/outcomes.
func healthOptions(cfg *config.Config, jr *journal.Journal, out io.Writer) health.StartOpts {
	opts := health.StartOpts{Port: cfg.Health.Port, Out: out}
	if jr != nil && cfg.Health.ExposeOutcomes {
		opts.Journal = jr
	}
	return opts
}
