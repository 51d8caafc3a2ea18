package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveDecision("a", "enabled", "bedtime")
	r.IncTaskCheck("a", ResultSkipped)
	r.IncRuleApply("rule", ResultSuccess)
	r.IncScheduledAction("x", "fired")
	r.IncStateSaveFailure("actions")
	r.ObserveRunDuration(time.Second)
	r.SetLastRun(time.Now())
}

func TestResultOf(t *testing.T) {
	require.Equal(t, ResultSuccess, ResultOf(true))
	require.Equal(t, ResultFailed, ResultOf(false))
}

var _ Recorder = (*PrometheusRecorder)(nil)
