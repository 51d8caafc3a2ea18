package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("variable", "CUTOFF_HOUR").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		name, exists := err.Context().GetString("variable")
		if !exists || name != "CUTOFF_HOUR" {
			t.Errorf("expected context variable=CUTOFF_HOUR, got %v", name)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if !HasSeverity(err, SeverityFatal) {
			t.Error("expected error to have fatal severity")
		}
		if err.CanRetry() {
			t.Error("expected config error to not be retryable")
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
	})

	t.Run("Wrapped classification is found", func(t *testing.T) {
		inner := FirewallError("update rejected").Build()
		wrapped := fmt.Errorf("apply rule: %w", inner)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if GetCategory(wrapped) != CategoryFirewall {
			t.Errorf("expected firewall category, got %s", GetCategory(wrapped))
		}
		if !IsRetryable(wrapped) {
			t.Error("expected firewall error to be retryable on next run")
		}
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		err := errors.New("plain")
		if GetCategory(err) != CategoryInternal {
			t.Errorf("expected internal category, got %s", GetCategory(err))
		}
		if IsRetryable(err) {
			t.Error("expected unclassified error to not be retryable")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("connection refused")
		err := WrapError(originalErr, CategoryNetwork, "task manager unreachable").
			Warning().
			Retryable().
			WithContext("section", "123").
			Build()

		if err.Cause() != originalErr {
			t.Error("expected cause to be preserved")
		}
		if !errors.Is(err, originalErr) {
			t.Error("expected errors.Is to reach the cause")
		}
		if err.Severity() != SeverityWarning {
			t.Errorf("expected warning severity, got %s", err.Severity())
		}
		if err.RetryStrategy() != RetryBackoff {
			t.Errorf("expected backoff retry, got %s", err.RetryStrategy())
		}
		if got := err.Error(); got != "[network:warning] task manager unreachable: connection refused" {
			t.Errorf("unexpected message %q", got)
		}
	})

	t.Run("WithContext does not mutate original", func(t *testing.T) {
		base := StateError("write failed").Build()
		derived := base.WithContext("path", "/tmp/state.json")

		if _, ok := base.Context().Get("path"); ok {
			t.Error("expected original context to be untouched")
		}
		if p, _ := derived.Context().GetString("path"); p != "/tmp/state.json" {
			t.Errorf("expected derived context path, got %q", p)
		}
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		cases := []struct {
			err      *ClassifiedError
			category ErrorCategory
			retry    RetryStrategy
		}{
			{AuthError("bad login").Build(), CategoryAuth, RetryUserAction},
			{NotFoundError("firewall rule").Build(), CategoryNotFound, RetryUserAction},
			{TasksError("bad payload").Build(), CategoryTasks, RetryNextRun},
			{FirewallError("bad status").Build(), CategoryFirewall, RetryNextRun},
			{InternalError("bug").Build(), CategoryInternal, RetryNever},
		}
		for _, c := range cases {
			if c.err.Category() != c.category {
				t.Errorf("expected %s, got %s", c.category, c.err.Category())
			}
			if c.err.RetryStrategy() != c.retry {
				t.Errorf("%s: expected retry %s, got %s", c.category, c.retry, c.err.RetryStrategy())
			}
		}
		if NotFoundError("firewall rule").Build().Message() != "firewall rule not found" {
			t.Error("unexpected not found message")
		}
	})
}
