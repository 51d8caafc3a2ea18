package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/choregate/internal/config"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // maximum retry attempts after the first failure
}

// DefaultPolicy returns the task lookup default: a single attempt. The
// external scheduler provides the retry cadence; the backoff fields apply
// once retries are opted into.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 10 * time.Second, MaxRetries: 0}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds a policy from a RetryConfig, where MaxAttempts includes the first try.
func FromConfig(rc config.RetryConfig) Policy {
	return NewPolicy(rc.Backoff, rc.InitialDelay, rc.MaxDelay, rc.MaxAttempts-1)
}

// Attempts is the total number of calls the policy allows.
func (p Policy) Attempts() int { return p.MaxRetries + 1 }

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// policy runs out of attempts. fn receives the 1-based attempt number. The
// last error is returned. A cancelled context stops waiting between attempts.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= p.Attempts(); attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.Attempts() {
			break
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
