// Package history keeps a journal of decisions and scheduled actions in
// SQLite so past runs can be inspected with `choregate status`.
package history

import (
	"context"
	"time"
)

// Kind distinguishes journal entries.
type Kind string

const (
	KindDecision        Kind = "decision"
	KindScheduledAction Kind = "scheduled_action"
)

// Entry is one journal line.
type Entry struct {
	ID    int64
	RunID string
	Kind  Kind
	// Subject is the child name for decisions and the action key for
	// scheduled actions.
	Subject string
	Rule    string
	// State is the target rule state for decisions and the outcome status
	// for scheduled actions.
	State   string
	Reason  string
	Applied bool
	Error   string
	At      time.Time
}

// Journal records entries.
type Journal interface {
	Append(ctx context.Context, entries ...Entry) error
}

// NoopJournal drops entries.
type NoopJournal struct{}

func (NoopJournal) Append(context.Context, ...Entry) error { return nil }
