// Package schedule runs once-per-day firewall actions that are independent of
// chore decisions, such as switching off a manual allow rule every evening.
//
// Each action moves between Pending(today) and Done(today). It fires on the
// first invocation at or after its trigger time, is recorded only after the
// firewall confirms success, and becomes eligible again when the calendar date
// in the configured zone changes.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"git.home.luguber.info/inful/choregate/internal/clock"
	"git.home.luguber.info/inful/choregate/internal/logfields"
)

// TimeOfDay is a wall-clock trigger time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time %q must be in HH:MM format", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("time %q: hour must be between 0 and 23", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time %q: minute must be between 0 and 59", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On returns the trigger instant on the calendar day of now, in now's location.
func (t TimeOfDay) On(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, now.Location())
}

// DailyDisable disables RuleName once per day at or after At.
type DailyDisable struct {
	RuleName string
	At       TimeOfDay
}

// Key is the persisted identity of the action.
func (a DailyDisable) Key() string {
	base := strings.ToLower(strings.TrimSpace(a.RuleName))
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, base)
	return "disable_" + safe + "_at_time"
}

// RuleDisabler switches a named firewall rule.
type RuleDisabler interface {
	SetRuleEnabled(ctx context.Context, rule string, enabled bool) error
}

// ActionState records per-action completion days.
type ActionState interface {
	HasRunToday(action, today string) bool
	MarkRun(action, today string)
	Save() error
}

// Status is the result of one action evaluation.
type Status string

const (
	StatusAlreadyDone Status = "already_done"
	StatusNotYet      Status = "not_yet"
	StatusFired       Status = "fired"
	StatusFailed      Status = "failed"
)

// Outcome describes what happened to one action during an invocation.
type Outcome struct {
	Action DailyDisable
	Status Status
	Date   string
	Err    error
	// SaveErr is set when the action fired but its record could not be written.
	SaveErr error
}

// Runner evaluates configured daily actions.
type Runner struct {
	actions  []DailyDisable
	firewall RuleDisabler
	state    ActionState
	logger   *slog.Logger
}

// NewRunner creates a Runner. A nil logger uses slog.Default.
func NewRunner(actions []DailyDisable, firewall RuleDisabler, state ActionState, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{actions: actions, firewall: firewall, state: state, logger: logger}
}

// Run evaluates every action against now, which must be in the configured zone.
func (r *Runner) Run(ctx context.Context, now time.Time) []Outcome {
	outcomes := make([]Outcome, 0, len(r.actions))
	for _, a := range r.actions {
		outcomes = append(outcomes, r.runOne(ctx, now, a))
	}
	return outcomes
}

func (r *Runner) runOne(ctx context.Context, now time.Time, a DailyDisable) Outcome {
	today := clock.DateOf(now)
	key := a.Key()
	out := Outcome{Action: a, Date: today}
	log := r.logger.With(logfields.Action(key), logfields.Rule(a.RuleName))

	if r.state.HasRunToday(key, today) {
		log.Debug("Scheduled disable already completed today", logfields.Date(today))
		out.Status = StatusAlreadyDone
		return out
	}

	if now.Before(a.At.On(now)) {
		log.Debug("Before scheduled time, no action", slog.String("now", now.Format("15:04")), slog.String("at", a.At.String()))
		out.Status = StatusNotYet
		return out
	}

	log.Info("Scheduled enforcement: disabling rule", slog.String("at", a.At.String()))
	if err := r.firewall.SetRuleEnabled(ctx, a.RuleName, false); err != nil {
		log.Error("Scheduled disable failed, will retry on next run", logfields.Error(err))
		out.Status, out.Err = StatusFailed, err
		return out
	}

	r.state.MarkRun(key, today)
	if err := r.state.Save(); err != nil {
		// The rule is disabled; a lost record only means one more idempotent attempt.
		log.Error("Failed to persist scheduled action state", logfields.Error(err))
		out.SaveErr = err
	}
	log.Info("Scheduled disable completed", logfields.Date(today))
	out.Status = StatusFired
	return out
}
