package chat

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/zulandar/shiftlog/internal/report"
)

// DefaultSweepSchedule runs the idle-session sweep once a minute.
const DefaultSweepSchedule = "*/1 * * * *"

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("chat: invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// startSweeper schedules store.Sweep on expr. Expired conversations are
// handed to the controller so their cached photos are removed and sinks
// are notified. The returned cron must be stopped by the caller.
func startSweeper(ctx context.Context, expr string, store *SessionStore, ctrl *report.Controller, out io.Writer) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(expr, func() {
		n := store.Sweep(func(key string, conv *report.Conversation) {
			log.Printf("chat: sweeper: expiring idle conversation %s at step %s", key, conv.Step)
			ctrl.Expire(ctx, conv)
		})
		if n > 0 {
			fmt.Fprintf(out, "chat: sweeper: expired %d idle conversation(s)\n", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("chat: schedule sweeper: %w", err)
	}
	c.Start()
	return c, nil
}
