package report

import (
	"context"
	"log"
)

// Status is the terminal result of a conversation.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusRestarted Status = "restarted"
)

// Outcome describes how a conversation ended. Row is set only for submitted
// and failed reports; discarded drafts never carry field data.
type Outcome struct {
	ReportID string
	Owner    Owner
	Status   Status
	Step     Step // step the conversation was at when it ended
	Row      []string
	Err      error
}

// OutcomeSink is notified after every terminal outcome. Sink errors are
// logged and never change what the user is told.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, o Outcome) error
}

func (c *Controller) notify(ctx context.Context, o Outcome) {
	for _, s := range c.sinks {
		if err := s.RecordOutcome(ctx, o); err != nil {
			log.Printf("report: %s: outcome sink: %v", o.ReportID, err)
		}
	}
}
