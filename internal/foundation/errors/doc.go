// Package errors provides the classified error primitives used across choregate.
//
// Every failure that leaves a collaborator (task manager, firewall, state files,
// configuration) is a ClassifiedError carrying a category, a severity, a retry
// strategy and structured context. Callers decide how to react by category:
// configuration problems abort the process, external API problems trigger the
// fail-safe path and are retried by the next invocation.
//
// Example usage:
//
//	err := errors.FirewallError("rule update rejected").
//		WithContext("rule", ruleName).
//		WithCause(originalErr).
//		Build()
package errors
