package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLICompleter implements Completer by running a model CLI binary in
// print mode, one process per completion. The agent's Model and Tools map
// to --model and --allowedTools.
type CLICompleter struct {
	path    string
	model   string
	workdir string
	args    []string
}

// CLIOption configures a CLICompleter.
type CLIOption func(*CLICompleter)

// NewCLICompleter creates a completer. Assumes "claude" is available in
// PATH unless overridden with WithCLIPath.
func NewCLICompleter(opts ...CLIOption) *CLICompleter {
	c := &CLICompleter{path: "claude"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCLIPath sets the path to the binary.
func WithCLIPath(path string) CLIOption {
	return func(c *CLICompleter) { c.path = path }
}

// WithDefaultModel sets the model used for agents that don't name one.
func WithDefaultModel(model string) CLIOption {
	return func(c *CLICompleter) { c.model = model }
}

// WithWorkdir sets the working directory for the process.
func WithWorkdir(dir string) CLIOption {
	return func(c *CLICompleter) { c.workdir = dir }
}

// WithExtraArgs appends args to every invocation.
func WithExtraArgs(args ...string) CLIOption {
	return func(c *CLICompleter) { c.args = append(c.args, args...) }
}

// Complete implements Completer.
func (c *CLICompleter) Complete(ctx context.Context, a *Agent, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, c.path, c.buildArgs(a, prompt)...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Check for context cancellation first
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		return "", &CompletionError{
			Op:        "complete",
			Err:       fmt.Errorf("%w: %s", err, msg),
			Retryable: isTransientMessage(msg),
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *CLICompleter) buildArgs(a *Agent, prompt string) []string {
	args := []string{"--print"}

	// Model priority: agent > completer default
	model := c.model
	if a.Model != "" {
		model = a.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	for _, tool := range a.Tools {
		args = append(args, "--allowedTools", tool)
	}
	args = append(args, c.args...)
	return append(args, "-p", prompt)
}
