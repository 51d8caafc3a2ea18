package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "choregate"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry         *prom.Registry
	decisions        *prom.CounterVec
	ruleState        *prom.GaugeVec
	taskChecks       *prom.CounterVec
	ruleApplies      *prom.CounterVec
	scheduledActions *prom.CounterVec
	stateSaveErrors  *prom.CounterVec
	runDuration      prom.Histogram
	lastRun          prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg, or
// on a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		decisions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Rule decisions by child, target state and reason",
		}, []string{"child", "state", "reason"}),
		ruleState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "child_blocked",
			Help:      "1 when the last decision blocked the child's internet",
		}, []string{"child"}),
		taskChecks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_checks_total",
			Help:      "Task service lookups by child and result",
		}, []string{"child", "result"}),
		ruleApplies: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rule_applies_total",
			Help:      "Firewall rule updates by rule and result",
		}, []string{"rule", "result"}),
		scheduledActions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_actions_total",
			Help:      "Scheduled action outcomes by action and status",
		}, []string{"action", "status"}),
		stateSaveErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "state_save_failures_total",
			Help:      "Failed state file writes by store",
		}, []string{"store"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of one monitor invocation",
			Buckets:   prom.DefBuckets,
		}),
		lastRun: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed invocation",
		}),
	}
	reg.MustRegister(pr.decisions, pr.ruleState, pr.taskChecks, pr.ruleApplies,
		pr.scheduledActions, pr.stateSaveErrors, pr.runDuration, pr.lastRun)
	return pr
}

// Registry returns the registry the metrics live in.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObserveDecision(child, state, reason string) {
	p.decisions.WithLabelValues(child, state, reason).Inc()
	blocked := 0.0
	if state == "enabled" {
		blocked = 1
	}
	p.ruleState.WithLabelValues(child).Set(blocked)
}

func (p *PrometheusRecorder) IncTaskCheck(child string, result ResultLabel) {
	p.taskChecks.WithLabelValues(child, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRuleApply(rule string, result ResultLabel) {
	p.ruleApplies.WithLabelValues(rule, string(result)).Inc()
}

func (p *PrometheusRecorder) IncScheduledAction(action, status string) {
	p.scheduledActions.WithLabelValues(action, status).Inc()
}

func (p *PrometheusRecorder) IncStateSaveFailure(store string) {
	p.stateSaveErrors.WithLabelValues(store).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetLastRun(t time.Time) {
	p.lastRun.Set(float64(t.Unix()))
}

// HTTPHandler serves the recorder's registry.
func (p *PrometheusRecorder) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The write goes through a temporary file and a rename.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
