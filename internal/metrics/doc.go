// Package metrics records what choregate decided and did.
//
// Components receive a Recorder and never check for nil: NoopRecorder is the
// default and PrometheusRecorder is swapped in when metrics are wanted, either
// exported to a node_exporter textfile after a one-shot run or served on
// /metrics by the daemon.
package metrics
