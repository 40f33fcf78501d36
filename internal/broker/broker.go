// Package broker publishes finished report events to a RabbitMQ topic
// exchange.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/zulandar/shiftlog/internal/report"
)

// Event is the JSON body published for each submitted or failed report.
type Event struct {
	ReportID   string            `json:"report_id"`
	Status     string            `json:"status"`
	Platform   string            `json:"platform"`
	UserID     string            `json:"user_id"`
	UserName   string            `json:"user_name,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Error      string            `json:"error,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// RoutingKey returns the topic routing key for a status, e.g. report.submitted.
func RoutingKey(s report.Status) string {
	return "report." + string(s)
}

// amqpChannel abstracts the channel calls we use, enabling test mocks.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher implements report.OutcomeSink. Only submitted and failed
// outcomes are published; discarded drafts carry no report data.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	header   []string
	now      func() time.Time

	mu sync.Mutex // serializes publishes on the shared channel
	ch amqpChannel
}

// PublisherOpts holds parameters for creating a Publisher.
type PublisherOpts struct {
	URL      string
	Exchange string
	Header   []string // column titles used to label Event.Fields
	// For testing: inject a mock channel instead of dialing.
	Channel amqpChannel
}

// NewPublisher dials the broker and declares a durable topic exchange.
func NewPublisher(opts PublisherOpts) (*Publisher, error) {
	if opts.Exchange == "" {
		return nil, fmt.Errorf("broker: exchange is required")
	}
	p := &Publisher{
		exchange: opts.Exchange,
		header:   opts.Header,
		now:      time.Now,
		ch:       opts.Channel,
	}
	if p.ch == nil {
		if opts.URL == "" {
			return nil, fmt.Errorf("broker: url is required")
		}
		conn, err := amqp091.Dial(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("broker: dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("broker: open channel: %w", err)
		}
		p.conn = conn
		p.ch = ch
	}
	err := p.ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("broker: declare exchange %s: %w", p.exchange, err)
	}
	log.Printf("broker: publishing to exchange %s", p.exchange)
	return p, nil
}

// RecordOutcome publishes submitted and failed outcomes and ignores the rest.
func (p *Publisher) RecordOutcome(ctx context.Context, o report.Outcome) error {
	if o.Status != report.StatusSubmitted && o.Status != report.StatusFailed {
		return nil
	}
	ev := Event{
		ReportID:   o.ReportID,
		Status:     string(o.Status),
		Platform:   o.Owner.Platform,
		UserID:     o.Owner.UserID,
		UserName:   o.Owner.UserName,
		Fields:     p.fields(o.Row),
		OccurredAt: p.now().UTC(),
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("broker: marshal %s: %w", o.ReportID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		p.exchange,           // exchange
		RoutingKey(o.Status), // routing key
		false,                // mandatory
		false,                // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			MessageId:    o.ReportID,
			Body:         body,
			Timestamp:    ev.OccurredAt,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("broker: publish %s: %w", o.ReportID, err)
	}
	return nil
}

// fields labels row values with the header titles. Extra values without a
// title are keyed by their column number.
func (p *Publisher) fields(row []string) map[string]string {
	if len(row) == 0 {
		return nil
	}
	m := make(map[string]string, len(row))
	for i, v := range row {
		key := fmt.Sprintf("col_%d", i+1)
		if i < len(p.header) {
			key = p.header[i]
		}
		m[key] = v
	}
	return m
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.conn = nil
	}
	return firstErr
}
