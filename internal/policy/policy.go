// Package policy decides, for one child at one instant, whether the child's
// firewall rule should be enabled (internet blocked) or disabled (internet allowed).
//
// Rule polarity is inverted on purpose: the firewall rule is a block rule, so
// RuleEnabled means no internet and RuleDisabled means internet allowed.
//
// Windows are evaluated in strict priority order on the hour of now in the
// configured zone:
//
//	[20,24) and [0,7)      bedtime      -> enabled, unconditionally
//	[7, cutoff)            morning      -> disabled, no task lookup
//	[cutoff, 20)           post-cutoff  -> depends on chores
//
// All boundaries are half-open. A cutoff at or below 7 or at or above 20 simply
// leaves the morning or post-cutoff window empty.
package policy

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/choregate/internal/clock"
)

const (
	// BedtimeStartHour is the first hour of the nightly block window.
	BedtimeStartHour = 20
	// MorningStartHour is the first hour after the nightly block window.
	MorningStartHour = 7
)

// RuleState is the desired state of a child's block rule.
type RuleState string

const (
	RuleEnabled  RuleState = "enabled"  // internet blocked
	RuleDisabled RuleState = "disabled" // internet allowed
)

// Enabled reports whether the rule should be switched on.
func (s RuleState) Enabled() bool { return s == RuleEnabled }

// InternetAllowed reports the effect of the state for the child.
func (s RuleState) InternetAllowed() bool { return s == RuleDisabled }

// Window names the time-of-day window an hour falls in.
type Window string

const (
	WindowBedtime    Window = "bedtime"
	WindowMorning    Window = "morning"
	WindowPostCutoff Window = "post_cutoff"
)

// Reason explains a decision.
type Reason string

const (
	ReasonBedtime              Reason = "bedtime"
	ReasonMorning              Reason = "before_cutoff"
	ReasonAlreadyDone          Reason = "already_done_today"
	ReasonIncomplete           Reason = "incomplete_tasks"
	ReasonIncompleteSuppressed Reason = "incomplete_tasks_blocking_suppressed"
	ReasonComplete             Reason = "tasks_complete"
	ReasonTaskCheckFailed      Reason = "task_check_failed"
)

// Child is the per-run configuration of one managed child.
type Child struct {
	Name      string
	SectionID string
	RuleName  string
	// SuppressBlocking turns an incomplete-chores verdict into an allowed state.
	// Bedtime and task lookup failures still block.
	SuppressBlocking bool
}

// TaskChecker reports whether a task section has incomplete items due on or before asOf.
type TaskChecker interface {
	HasIncompleteTasks(ctx context.Context, sectionID, asOf string) (bool, error)
}

// CompletionLookup answers whether a child was already confirmed done on a day.
type CompletionLookup interface {
	IsDoneToday(child, today string) bool
}

// Decision is the outcome for one child.
type Decision struct {
	State  RuleState
	Window Window
	Reason Reason
	// Date is the calendar date of now in the configured zone.
	Date string
	// MarkDone asks the caller to record the child as done on Date.
	MarkDone bool
	// CheckedTasks is true when the task manager was queried.
	CheckedTasks bool
	// Err holds the task lookup failure that forced the fail-safe state.
	Err error
}

// FailSafe reports whether the decision was forced by a lookup failure.
func (d Decision) FailSafe() bool { return d.Reason == ReasonTaskCheckFailed }

// Engine evaluates decisions for a fixed cutoff hour.
type Engine struct {
	cutoffHour int
}

// NewEngine returns an Engine for cutoffHour, which must be within 0..23.
func NewEngine(cutoffHour int) (*Engine, error) {
	if cutoffHour < 0 || cutoffHour > 23 {
		return nil, fmt.Errorf("cutoff hour must be between 0 and 23, got %d", cutoffHour)
	}
	return &Engine{cutoffHour: cutoffHour}, nil
}

// CutoffHour returns the configured cutoff hour.
func (e *Engine) CutoffHour() int { return e.cutoffHour }

// WindowFor classifies an hour of day.
func (e *Engine) WindowFor(hour int) Window {
	switch {
	case hour >= BedtimeStartHour || hour < MorningStartHour:
		return WindowBedtime
	case hour < e.cutoffHour:
		return WindowMorning
	default:
		return WindowPostCutoff
	}
}

// Decide computes the desired rule state for child at now. now must already be
// expressed in the configured zone. Decide never mutates state; the caller
// applies MarkDone.
func (e *Engine) Decide(ctx context.Context, now time.Time, child Child, done CompletionLookup, tasks TaskChecker) Decision {
	today := clock.DateOf(now)
	window := e.WindowFor(now.Hour())
	d := Decision{Window: window, Date: today}

	switch window {
	case WindowBedtime:
		d.State, d.Reason = RuleEnabled, ReasonBedtime
		return d
	case WindowMorning:
		d.State, d.Reason = RuleDisabled, ReasonMorning
		return d
	}

	if done != nil && done.IsDoneToday(child.Name, today) {
		d.State, d.Reason = RuleDisabled, ReasonAlreadyDone
		return d
	}

	d.CheckedTasks = true
	if tasks == nil {
		d.State, d.Reason = RuleEnabled, ReasonTaskCheckFailed
		d.Err = fmt.Errorf("no task checker configured")
		return d
	}

	incomplete, err := tasks.HasIncompleteTasks(ctx, child.SectionID, today)
	switch {
	case err != nil:
		d.State, d.Reason, d.Err = RuleEnabled, ReasonTaskCheckFailed, err
	case incomplete && child.SuppressBlocking:
		d.State, d.Reason = RuleDisabled, ReasonIncompleteSuppressed
	case incomplete:
		d.State, d.Reason = RuleEnabled, ReasonIncomplete
	default:
		d.State, d.Reason, d.MarkDone = RuleDisabled, ReasonComplete, true
	}
	return d
}
