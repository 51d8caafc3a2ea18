// Package notify publishes rule changes to NATS so other systems (home
// dashboards, chat bridges) can react when a child's internet is switched.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/choregate/internal/logfields"
)

// Event describes one rule change made by choregate.
type Event struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Child     string    `json:"child,omitempty"`
	Action    string    `json:"action,omitempty"`
	Rule      string    `json:"rule"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close()                               {}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// flushTimeout bounds the wait for the server to acknowledge a publish.
const flushTimeout = 2 * time.Second

// NATSPublisher publishes events as JSON on a core NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{
		nats.Name("choregate"),
		nats.Timeout(5 * time.Second),
	}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", logfields.URL(nc.ConnectedUrlRedacted()), slog.String("subject", subject))
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

// Publish sends the event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	slog.Debug("Published rule event", logfields.Rule(event.Rule), logfields.State(event.State))
	return nil
}

func (p *NATSPublisher) Close() { p.conn.Close() }
