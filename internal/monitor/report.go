package monitor

import (
	"time"

	"git.home.luguber.info/inful/choregate/internal/policy"
	"git.home.luguber.info/inful/choregate/internal/schedule"
)

// ChildResult is what happened to one child.
type ChildResult struct {
	Child    policy.Child
	Decision policy.Decision
	// Applied is true when the firewall accepted the target state.
	Applied  bool
	ApplyErr error
}

// Report summarises one invocation.
type Report struct {
	RunID     string
	StartedAt time.Time
	Date      string
	Hour      int
	Children  []ChildResult
	Actions   []schedule.Outcome
	// StateErr is set when the daily state could not be opened. No rule
	// was touched in that invocation.
	StateErr error
	// SaveErr is the completion state write failure, if any.
	SaveErr  error
	Duration time.Duration
}

// Problems counts everything that went wrong: fail-safe verdicts, rejected
// rule updates, failed scheduled actions and state failures.
func (r Report) Problems() int {
	n := 0
	for _, c := range r.Children {
		if c.Decision.FailSafe() {
			n++
		}
		if c.ApplyErr != nil {
			n++
		}
	}
	for _, a := range r.Actions {
		if a.Status == schedule.StatusFailed {
			n++
		}
		if a.SaveErr != nil {
			n++
		}
	}
	if r.SaveErr != nil {
		n++
	}
	if r.StateErr != nil {
		n++
	}
	return n
}

// Blocked lists the children whose internet is blocked after this run.
func (r Report) Blocked() []string {
	var out []string
	for _, c := range r.Children {
		if c.Decision.State.Enabled() {
			out = append(out, c.Child.Name)
		}
	}
	return out
}
