package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/zulandar/shiftlog/internal/report"
)

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, dispatches inbound messages to the Router, and sweeps idle
// conversations on a cron schedule.
type Daemon struct {
	adapter       Adapter
	ctrl          *report.Controller
	store         *SessionStore
	sweepSchedule string
	counter       InboundCounter
	out           io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	Adapter       Adapter
	Controller    *report.Controller
	Store         *SessionStore // defaults to a store without idle expiry
	SweepSchedule string         // 5-field cron; defaults to DefaultSweepSchedule
	Counter       InboundCounter // optional inbound message counter
	Out           io.Writer      // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: adapter is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("chat: controller is required")
	}
	schedule := opts.SweepSchedule
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	store := opts.Store
	if store == nil {
		store = NewSessionStore(SessionStoreOpts{})
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		adapter:       opts.Adapter,
		ctrl:          opts.Controller,
		store:         store,
		sweepSchedule: schedule,
		counter:       opts.Counter,
		out:           out,
	}, nil
}

// Run connects the adapter, builds the Router and Dispatcher, and blocks
// until the context is cancelled or the inbound channel closes. Handlers
// already running are allowed to finish their network calls before Run
// returns.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Bot connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("chat: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	router, err := NewRouter(RouterOpts{
		Controller: d.ctrl,
		Store:      d.store,
		Adapter:    d.adapter,
		BotUserID:  botUserID,
		Counter:    d.counter,
		Out:        d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: build router: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: listen: %w", err)
	}

	// In-flight handlers must not be cut off mid-append by shutdown.
	handlerCtx := context.WithoutCancel(ctx)

	sweeper, err := startSweeper(handlerCtx, d.sweepSchedule, d.store, d.ctrl, d.out)
	if err != nil {
		d.adapter.Close()
		return err
	}

	disp := NewDispatcher(router.Handle)
	fmt.Fprintf(d.out, "Bot online\n")

	shutdown := func() {
		<-sweeper.Stop().Done()
		disp.Wait()
		if err := d.adapter.Close(); err != nil {
			log.Printf("chat: close adapter: %v", err)
		}
		fmt.Fprintf(d.out, "Bot stopped\n")
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Bot shutting down...\n")
			shutdown()
			return nil

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Bot inbound channel closed\n")
				shutdown()
				return nil
			}
			disp.Submit(handlerCtx, msg)
		}
	}
}
