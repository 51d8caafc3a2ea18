// Package monitor runs one choregate invocation: decide and apply the rule
// state of every child, run the scheduled actions, then persist state.
//
// An invocation never fails as a whole. Task lookups, firewall updates and
// state writes that go wrong are logged and recorded in the Report; the
// next invocation re-applies every rule, so transient faults heal on their own.
package monitor
