package agentgraph

import (
	"log/slog"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/expr"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/observability"
)

// DefaultMaxIterations is the iteration budget used when WithMaxIterations
// is not given.
const DefaultMaxIterations = 100

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder used for node and run metrics.
// Combine recorders with observability.MultiMetrics.
//
// Example:
//
//	g := agentgraph.New("review",
//	    agentgraph.WithMetrics(observability.NewMetricsRecorder(nil)))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(g *Graph) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithSpans sets the span manager used for run and node spans.
func WithSpans(s observability.SpanManager) Option {
	return func(g *Graph) {
		if s != nil {
			g.spans = s
		}
	}
}

// WithAgents sets the registry that agent nodes resolve their agent from.
func WithAgents(r AgentRegistry) Option {
	return func(g *Graph) {
		g.agents = r
	}
}

// WithAgentRuntime sets the runtime that executes agents.
func WithAgentRuntime(rt AgentRuntime) Option {
	return func(g *Graph) {
		g.runtime = rt
	}
}

// WithPredicate registers a named edge predicate for WhenPredicate.
// Registering the same name twice replaces the earlier predicate.
func WithPredicate(name string, fn PredicateFunc) Option {
	return func(g *Graph) {
		g.predicates.Put(name, fn)
	}
}

// WithNodeLogic replaces the behavior of every node of type t in the graph.
// It is how tool, condition, human and subgraph nodes get real behavior.
func WithNodeLogic(t NodeType, logic NodeLogic) Option {
	return func(g *Graph) {
		g.logic[t] = logic
	}
}

// WithCheckpointStore sets the store used by SaveCheckpointTo and friends
// when called with a nil store.
func WithCheckpointStore(store checkpoint.Store) Option {
	return func(g *Graph) {
		g.store = store
	}
}

// WithEvaluator replaces the evaluator for expression conditions, for
// example to add custom operators.
func WithEvaluator(e *expr.Evaluator) Option {
	return func(g *Graph) {
		if e != nil {
			g.evaluator = e
		}
	}
}

// runConfig holds configuration for a single Run.
type runConfig struct {
	maxIterations  int
	initialState   map[string]any
	resume         *checkpoint.Checkpoint
	runID          string
	maxConcurrency int64
}

func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the run-wide node visit budget.
// Default: 100. Zero is allowed and fails before any node runs;
// negative values are ignored.
//
// Example:
//
//	state, err := g.Run(ctx, input, agentgraph.WithMaxIterations(10))
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n >= 0 {
			c.maxIterations = n
		}
	}
}

// WithInitialState seeds the state before "input" is set. The map is
// copied. Ignored when resuming.
func WithInitialState(state map[string]any) RunOption {
	return func(c *runConfig) {
		c.initialState = state
	}
}

// WithResume resumes from a checkpoint: its state seeds the run and its
// completed nodes are not executed again.
func WithResume(cp *checkpoint.Checkpoint) RunOption {
	return func(c *runConfig) {
		c.resume = cp
	}
}

// WithRunID sets the run identifier used in logs and spans.
// Default: a random UUID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithMaxConcurrency bounds how many node logics execute at once across
// parallel branches. Zero or negative means unbounded.
func WithMaxConcurrency(n int) RunOption {
	return func(c *runConfig) {
		c.maxConcurrency = int64(n)
	}
}
