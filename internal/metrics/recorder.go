package metrics

import "time"

// ResultLabel enumerates outcome labels for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// ResultOf maps a success flag onto a label.
func ResultOf(ok bool) ResultLabel {
	if ok {
		return ResultSuccess
	}
	return ResultFailed
}

// Recorder is the metrics surface used by the monitor.
type Recorder interface {
	// ObserveDecision counts one verdict for a child.
	ObserveDecision(child, state, reason string)
	// IncTaskCheck counts task service lookups.
	IncTaskCheck(child string, result ResultLabel)
	// IncRuleApply counts firewall rule updates.
	IncRuleApply(rule string, result ResultLabel)
	// IncScheduledAction counts scheduled action outcomes by status.
	IncScheduledAction(action, status string)
	// IncStateSaveFailure counts failed state file writes.
	IncStateSaveFailure(store string)
	ObserveRunDuration(d time.Duration)
	SetLastRun(t time.Time)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveDecision(string, string, string) {}
func (NoopRecorder) IncTaskCheck(string, ResultLabel)       {}
func (NoopRecorder) IncRuleApply(string, ResultLabel)       {}
func (NoopRecorder) IncScheduledAction(string, string)      {}
func (NoopRecorder) IncStateSaveFailure(string)             {}
func (NoopRecorder) ObserveRunDuration(time.Duration)       {}
func (NoopRecorder) SetLastRun(time.Time)                   {}
