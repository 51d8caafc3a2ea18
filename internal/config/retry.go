package config

import (
	"strings"
	"time"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	default:
		return ""
	}
}

// RetryConfig tunes retries of transient task service failures.
// MaxAttempts counts the first try; the default of 1 disables retries within
// an invocation.
type RetryConfig struct {
	MaxAttempts  int
	Backoff      RetryBackoffMode
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

const (
	defaultRetryAttempts = 1
	defaultRetryDelay    = time.Second
	defaultRetryMaxDelay = 10 * time.Second
)

func applyRetryDefaults(rc *RetryConfig) {
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = defaultRetryAttempts
	}
	if rc.Backoff == "" {
		rc.Backoff = RetryBackoffLinear
	}
	if rc.InitialDelay <= 0 {
		rc.InitialDelay = defaultRetryDelay
	}
	if rc.MaxDelay <= 0 {
		rc.MaxDelay = defaultRetryMaxDelay
	}
}
