package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/choregate/internal/clock"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/history"
	"git.home.luguber.info/inful/choregate/internal/logfields"
	"git.home.luguber.info/inful/choregate/internal/metrics"
	"git.home.luguber.info/inful/choregate/internal/notify"
	"git.home.luguber.info/inful/choregate/internal/policy"
	"git.home.luguber.info/inful/choregate/internal/schedule"
	"git.home.luguber.info/inful/choregate/internal/state"
)

// RuleSetter switches a firewall rule.
type RuleSetter interface {
	SetRuleEnabled(ctx context.Context, rule string, enabled bool) error
}

// CompletionState is the per-child done-today record.
type CompletionState interface {
	policy.CompletionLookup
	MarkDone(child, today string)
	Dirty() bool
	Save() error
}

// StateSource opens the daily state. It is called at the start of every
// invocation, so edits made to the state between invocations are honoured.
type StateSource interface {
	OpenCompletion() (CompletionState, error)
	OpenActions() (schedule.ActionState, error)
}

// StateFiles is the StateSource backed by the JSON state files.
type StateFiles struct {
	CompletionPath string
	ActionPath     string
}

func (f StateFiles) OpenCompletion() (CompletionState, error) {
	return state.OpenCompletionStore(f.CompletionPath)
}

func (f StateFiles) OpenActions() (schedule.ActionState, error) {
	return state.OpenActionStore(f.ActionPath)
}

// Deps are the collaborators of a Monitor. Clock, Engine, Tasks, Firewall and
// State are required; the rest default to no-ops.
type Deps struct {
	Clock    *clock.Clock
	Engine   *policy.Engine
	Children []policy.Child
	Tasks    policy.TaskChecker
	Firewall RuleSetter
	State    StateSource
	Disables []schedule.DailyDisable

	Recorder  metrics.Recorder
	Journal   history.Journal
	Publisher notify.Publisher
	Logger    *slog.Logger
	// NewRunID overrides run id generation.
	NewRunID func() string
}

// Monitor performs invocations.
type Monitor struct {
	deps Deps
}

// New validates deps and fills in defaults.
func New(deps Deps) (*Monitor, error) {
	switch {
	case deps.Clock == nil:
		return nil, errors.InternalError("monitor requires a clock").Build()
	case deps.Engine == nil:
		return nil, errors.InternalError("monitor requires a decision engine").Build()
	case deps.Tasks == nil:
		return nil, errors.InternalError("monitor requires a task checker").Build()
	case deps.Firewall == nil:
		return nil, errors.InternalError("monitor requires a firewall client").Build()
	case deps.State == nil:
		return nil, errors.InternalError("monitor requires a state source").Build()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.Journal == nil {
		deps.Journal = history.NoopJournal{}
	}
	if deps.Publisher == nil {
		deps.Publisher = notify.NoopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	return &Monitor{deps: deps}, nil
}

// Run performs one invocation. The state is opened first, children are
// handled sequentially in configuration order, then scheduled actions, then
// the completion state is written if it changed. When the state cannot be
// opened no rule is touched and the failure is reported in StateErr.
func (m *Monitor) Run(ctx context.Context) Report {
	d := m.deps
	started := time.Now()
	now := d.Clock.Now()
	today := clock.DateOf(now)

	report := Report{
		RunID:     d.NewRunID(),
		StartedAt: now,
		Date:      today,
		Hour:      now.Hour(),
	}
	log := d.Logger.With(logfields.RunID(report.RunID))
	log.Info("Starting chore check",
		logfields.Date(today),
		logfields.Hour(report.Hour),
		slog.String("window", string(d.Engine.WindowFor(report.Hour))),
		slog.Int("children", len(d.Children)))

	completion, actions, err := m.openState()
	if err != nil {
		log.Error("Failed to open state", logfields.Error(err))
		report.StateErr = err
		report.Duration = time.Since(started)
		m.record(ctx, log, report)
		return report
	}

	for _, child := range d.Children {
		report.Children = append(report.Children, m.handleChild(ctx, log, now, child, completion))
	}

	runner := schedule.NewRunner(d.Disables, d.Firewall, actions, log)
	report.Actions = runner.Run(ctx, now)

	if completion.Dirty() {
		if err := completion.Save(); err != nil {
			log.Error("Failed to save completion state", logfields.Error(err))
			report.SaveErr = err
		}
	}

	report.Duration = time.Since(started)
	m.record(ctx, log, report)

	log.Info("Chore check finished",
		slog.Int("problems", report.Problems()),
		slog.Any("blocked", report.Blocked()),
		logfields.DurationMS(float64(report.Duration.Microseconds())/1000))
	return report
}

func (m *Monitor) openState() (CompletionState, schedule.ActionState, error) {
	completion, err := m.deps.State.OpenCompletion()
	if err != nil {
		return nil, nil, errors.StateError("failed to open completion state").WithCause(err).Build()
	}
	actions, err := m.deps.State.OpenActions()
	if err != nil {
		return nil, nil, errors.StateError("failed to open scheduled action state").WithCause(err).Build()
	}
	return completion, actions, nil
}

func (m *Monitor) handleChild(ctx context.Context, log *slog.Logger, now time.Time, child policy.Child, completion CompletionState) ChildResult {
	d := m.deps
	log = log.With(logfields.Child(child.Name), logfields.Rule(child.RuleName))

	decision := d.Engine.Decide(ctx, now, child, completion, d.Tasks)
	result := ChildResult{Child: child, Decision: decision}

	attrs := []any{
		logfields.State(string(decision.State)),
		logfields.Reason(string(decision.Reason)),
		slog.String("window", string(decision.Window)),
	}
	switch {
	case decision.FailSafe():
		log.Warn("Task check failed, blocking internet", append(attrs, logfields.Error(decision.Err))...)
	case decision.State.Enabled():
		log.Warn("Blocking internet", attrs...)
	default:
		log.Info("Allowing internet", attrs...)
	}

	if err := d.Firewall.SetRuleEnabled(ctx, child.RuleName, decision.State.Enabled()); err != nil {
		log.Error("Failed to apply rule state", logfields.State(string(decision.State)), logfields.Error(err))
		result.ApplyErr = err
	} else {
		result.Applied = true
	}

	// Recorded from the decision alone: a failed apply is retried by the
	// next invocation, which re-applies DISABLED for a child marked done.
	if decision.MarkDone {
		completion.MarkDone(child.Name, decision.Date)
	}
	return result
}

// record fans the report out to metrics, the journal and the publisher.
// Failures here are logged only.
func (m *Monitor) record(ctx context.Context, log *slog.Logger, r Report) {
	d := m.deps

	entries := make([]history.Entry, 0, len(r.Children)+len(r.Actions))
	for _, c := range r.Children {
		dec := c.Decision
		d.Recorder.ObserveDecision(c.Child.Name, string(dec.State), string(dec.Reason))
		if dec.CheckedTasks {
			d.Recorder.IncTaskCheck(c.Child.Name, metrics.ResultOf(dec.Err == nil))
		}
		d.Recorder.IncRuleApply(c.Child.RuleName, metrics.ResultOf(c.Applied))

		entry := history.Entry{
			RunID:   r.RunID,
			Kind:    history.KindDecision,
			Subject: c.Child.Name,
			Rule:    c.Child.RuleName,
			State:   string(dec.State),
			Reason:  string(dec.Reason),
			Applied: c.Applied,
			Error:   errorText(dec.Err, c.ApplyErr),
			At:      r.StartedAt,
		}
		entries = append(entries, entry)

		if c.Applied {
			m.publish(ctx, log, notify.Event{
				RunID:  r.RunID,
				Kind:   string(history.KindDecision),
				Child:  c.Child.Name,
				Rule:   c.Child.RuleName,
				State:  string(dec.State),
				Reason: string(dec.Reason),
				Date:   r.Date,
			})
		}
	}

	for _, a := range r.Actions {
		key := a.Action.Key()
		d.Recorder.IncScheduledAction(key, string(a.Status))
		if a.SaveErr != nil {
			d.Recorder.IncStateSaveFailure("actions")
		}
		if a.Status == schedule.StatusNotYet || a.Status == schedule.StatusAlreadyDone {
			continue
		}
		entries = append(entries, history.Entry{
			RunID:   r.RunID,
			Kind:    history.KindScheduledAction,
			Subject: key,
			Rule:    a.Action.RuleName,
			State:   string(a.Status),
			Applied: a.Status == schedule.StatusFired,
			Error:   errorText(a.Err, a.SaveErr),
			At:      r.StartedAt,
		})
		if a.Status == schedule.StatusFired {
			m.publish(ctx, log, notify.Event{
				RunID:  r.RunID,
				Kind:   string(history.KindScheduledAction),
				Action: key,
				Rule:   a.Action.RuleName,
				State:  string(policy.RuleDisabled),
				Date:   r.Date,
			})
		}
	}

	if r.SaveErr != nil {
		d.Recorder.IncStateSaveFailure("completion")
	}
	d.Recorder.ObserveRunDuration(r.Duration)
	d.Recorder.SetLastRun(r.StartedAt)

	if err := d.Journal.Append(ctx, entries...); err != nil {
		log.Warn("Failed to write history", logfields.Error(err))
	}
}

func (m *Monitor) publish(ctx context.Context, log *slog.Logger, ev notify.Event) {
	if err := m.deps.Publisher.Publish(ctx, ev); err != nil {
		log.Warn("Failed to publish rule event", logfields.Rule(ev.Rule), logfields.Error(err))
	}
}

func errorText(errs ...error) string {
	for _, err := range errs {
		if err != nil {
			return err.Error()
		}
	}
	return ""
}
