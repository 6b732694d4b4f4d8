package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy configures how a PromptRuntime retries failed completions.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// Retryable optionally overrides IsRetryable.
	Retryable func(error) bool
}

// DefaultRetry is the standard retry configuration.
var DefaultRetry = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryPolicy{MaxAttempts: 1}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = max(p.MaxBackoff, p.InitialBackoff)
	if p.BackoffFactor > 0 {
		b.Multiplier = p.BackoffFactor
	}
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsRetryable(err)
}

// CompletionError is returned by completers that know whether a failure
// is worth retrying.
type CompletionError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient completion failure: a
// CompletionError marked retryable, or an error whose message names a
// rate limit, overload or timeout on the provider side. Context
// cancellation and deadlines are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return isTransientMessage(err.Error())
}

func isTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"rate limit", "timeout", "overloaded", "503", "529"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
