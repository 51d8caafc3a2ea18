package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveDecision("daniel", "enabled", "incomplete_tasks")
	pr.ObserveDecision("daniel", "enabled", "incomplete_tasks")
	pr.ObserveDecision("sophie", "disabled", "tasks_complete")
	pr.IncTaskCheck("daniel", ResultSuccess)
	pr.IncRuleApply("Block Daniel", ResultFailed)
	pr.IncScheduledAction("disable_allow_sophie_at_time", "fired")
	pr.IncStateSaveFailure("completion")
	pr.ObserveRunDuration(150 * time.Millisecond)
	pr.SetLastRun(time.Unix(1714575600, 0))

	text := exposition(t, pr)
	for _, want := range []string{
		`choregate_decisions_total{child="daniel",reason="incomplete_tasks",state="enabled"} 2`,
		`choregate_child_blocked{child="daniel"} 1`,
		`choregate_child_blocked{child="sophie"} 0`,
		`choregate_rule_applies_total{result="failed",rule="Block Daniel"} 1`,
		`choregate_scheduled_actions_total{action="disable_allow_sophie_at_time",status="fired"} 1`,
		`choregate_state_save_failures_total{store="completion"} 1`,
		`choregate_last_run_timestamp_seconds 1.7145756e+09`,
	} {
		require.Contains(t, text, want)
	}

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func exposition(t *testing.T, pr *PrometheusRecorder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, pr.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPrometheusRecorderTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.ObserveDecision("sophie", "disabled", "bedtime")

	path := filepath.Join(t.TempDir(), "choregate.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `choregate_decisions_total{child="sophie",reason="bedtime",state="disabled"} 1`)
}

func TestPrometheusRecorderHTTPHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncTaskCheck("kim", ResultFailed)

	srv := httptest.NewServer(pr.HTTPHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `choregate_task_checks_total{child="kim",result="failed"} 1`))
}
