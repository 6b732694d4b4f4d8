package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Completer sends a prompt to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, a *Agent, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, a *Agent, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, a *Agent, prompt string) (string, error) {
	return f(ctx, a, prompt)
}

// ExecutionError wraps a failed agent execution.
type ExecutionError struct {
	AgentID string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.AgentID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PromptRuntime executes agents by building a prompt from the agent
// description, the task and the state, and passing it to a Completer.
type PromptRuntime struct {
	completer Completer
	logger    *slog.Logger
	timeout   time.Duration
	retry     RetryPolicy
}

// RuntimeOption configures a PromptRuntime.
type RuntimeOption func(*PromptRuntime)

// WithLogger sets the runtime's logger.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(r *PromptRuntime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDefaultTimeout bounds executions of agents that set no Timeout.
func WithDefaultTimeout(d time.Duration) RuntimeOption {
	return func(r *PromptRuntime) {
		r.timeout = d
	}
}

// WithRetry retries transient completion failures according to policy.
func WithRetry(policy RetryPolicy) RuntimeOption {
	return func(r *PromptRuntime) {
		r.retry = policy
	}
}

// NewPromptRuntime creates a runtime over completer.
func NewPromptRuntime(completer Completer, opts ...RuntimeOption) *PromptRuntime {
	r := &PromptRuntime{
		completer: completer,
		logger:    slog.Default(),
		retry:     NoRetry,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs a on task and returns
// {agent_id, task, status, output, attempts, duration_ms}.
func (r *PromptRuntime) Execute(ctx context.Context, a *Agent, task string, state map[string]any) (map[string]any, error) {
	if timeout := r.timeoutFor(a); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	r.logger.Debug("executing agent", slog.String("agent_id", a.ID), slog.String("task", task))

	output, attempts, err := r.complete(ctx, a, BuildPrompt(a, task, state))
	if err != nil {
		r.logger.Error("agent execution failed", slog.String("agent_id", a.ID), slog.String("error", err.Error()))
		return nil, &ExecutionError{AgentID: a.ID, Err: err}
	}

	return map[string]any{
		"agent_id":    a.ID,
		"task":        task,
		"status":      "completed",
		"output":      output,
		"attempts":    attempts,
		"duration_ms": float64(time.Since(start).Milliseconds()),
	}, nil
}

func (r *PromptRuntime) complete(ctx context.Context, a *Agent, prompt string) (string, int, error) {
	if r.retry.MaxAttempts <= 1 {
		output, err := r.completer.Complete(ctx, a, prompt)
		return output, 1, err
	}

	attempts := 0
	output, err := backoff.Retry(ctx, func() (string, error) {
		attempts++
		output, err := r.completer.Complete(ctx, a, prompt)
		if err != nil && !r.retry.retryable(err) {
			return "", backoff.Permanent(err)
		}
		return output, err
	},
		backoff.WithBackOff(r.retry.backOff()),
		backoff.WithMaxTries(uint(r.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("agent completion failed, retrying",
				slog.String("agent_id", a.ID),
				slog.Int("attempt", attempts),
				slog.Duration("backoff", next),
				slog.String("error", err.Error()))
		}),
	)
	return output, attempts, err
}

func (r *PromptRuntime) timeoutFor(a *Agent) time.Duration {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return r.timeout
}

// BuildPrompt renders the prompt sent to the model. The state is included
// as JSON when it is non-empty.
func BuildPrompt(a *Agent, task string, state map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s.\n", a.Role)
	fmt.Fprintf(&b, "Your goal is: %s\n", a.Goal)
	if a.Backstory != "" {
		fmt.Fprintf(&b, "\nBackground: %s\n", a.Backstory)
	}
	if len(a.Tools) > 0 {
		fmt.Fprintf(&b, "\nAvailable tools: %s\n", strings.Join(a.Tools, ", "))
	}
	if len(state) > 0 {
		if data, err := json.Marshal(state); err == nil {
			fmt.Fprintf(&b, "\nContext: %s\n", data)
		}
	}
	fmt.Fprintf(&b, "\nTask: %s\n", task)
	b.WriteString("\nPlease complete the task.")
	return b.String()
}
