package agentgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/agent"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/config"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/template"
)

// DefaultTask is the agent task used when neither the node nor the state
// supplies one.
const DefaultTask = "Process the input data"

// AgentRegistry resolves agents by id. *agent.Registry implements it.
type AgentRegistry interface {
	Get(id string) (*agent.Agent, bool)
}

// AgentRuntime executes an agent on a task. state is a private deep copy
// of the run state. *agent.PromptRuntime implements it.
type AgentRuntime interface {
	Execute(ctx context.Context, a *agent.Agent, task string, state map[string]any) (map[string]any, error)
}

// NodeLogic computes a node's result.
type NodeLogic interface {
	Execute(ctx context.Context, inv *Invocation) (any, error)
}

// NodeLogicFunc adapts a function to NodeLogic.
type NodeLogicFunc func(ctx context.Context, inv *Invocation) (any, error)

// Execute implements NodeLogic.
func (f NodeLogicFunc) Execute(ctx context.Context, inv *Invocation) (any, error) {
	return f(ctx, inv)
}

// Invocation is what node logic sees of the run.
type Invocation struct {
	// Node is the node being executed. Its Config must be treated as read-only.
	Node *Node
	// Logger is enriched with the workflow, run and node ids.
	Logger *slog.Logger
	// RunID identifies the run.
	RunID string

	graph *Graph
	state *runState

	once sync.Once
	snap map[string]any
}

// Config returns typed accessors over the node's config data.
func (inv *Invocation) Config() config.Config {
	return config.New(inv.Node.Config.Data)
}

// Input returns the run input.
func (inv *Invocation) Input() any {
	v, _ := inv.state.get(StateKeyInput)
	return v
}

// Get reads a single state key, such as an upstream node's result.
func (inv *Invocation) Get(key string) (any, bool) {
	return inv.state.get(key)
}

// Snapshot returns a deep copy of the state taken on first call. Later
// calls return the same copy.
func (inv *Invocation) Snapshot() map[string]any {
	inv.once.Do(func() {
		inv.snap = inv.state.snapshot()
	})
	return inv.snap
}

func defaultLogic(t NodeType) NodeLogic {
	switch t {
	case NodeInput:
		return NodeLogicFunc(inputLogic)
	case NodeOutput:
		return NodeLogicFunc(outputLogic)
	case NodeAgent:
		return NodeLogicFunc(agentLogic)
	case NodeCondition:
		return NodeLogicFunc(conditionLogic)
	default:
		return NodeLogicFunc(placeholderLogic)
	}
}

// logicFor returns the graph-level override for the node's type, if any.
func (g *Graph) logicFor(n *Node) NodeLogic {
	if logic, ok := g.logic[n.Type]; ok {
		return logic
	}
	if n.logic == nil {
		return defaultLogic(n.Type)
	}
	return n.logic
}

func inputLogic(_ context.Context, inv *Invocation) (any, error) {
	return deepCopy(inv.Input()), nil
}

func outputLogic(_ context.Context, inv *Invocation) (any, error) {
	return inv.Snapshot(), nil
}

func agentLogic(ctx context.Context, inv *Invocation) (any, error) {
	g := inv.graph
	cfg := inv.Config()
	agentID := cfg.String("agent_id", inv.Node.ID)

	if g.agents == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	a, ok := g.agents.Get(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if g.runtime == nil {
		return nil, ErrNoAgentRuntime
	}

	state := inv.Snapshot()
	task, err := buildTask(cfg, state)
	if err != nil {
		return nil, err
	}
	return g.runtime.Execute(ctx, a, task, deepCopyMap(state))
}

// buildTask renders data.task against the state, falling back to
// state["task"] and then DefaultTask. data.on_missing ("keep", "empty" or
// "error") controls placeholders whose path is absent.
func buildTask(cfg config.Config, state map[string]any) (string, error) {
	if tmpl := cfg.String("task", ""); tmpl != "" {
		action, err := template.ParseMissingAction(cfg.String("on_missing", ""))
		if err != nil {
			return "", err
		}
		return template.NewExpander(template.WithMissingAction(action)).Expand(tmpl, state)
	}
	if task, ok := state[StateKeyTask].(string); ok && task != "" {
		return task, nil
	}
	return DefaultTask, nil
}

// conditionLogic reports the value of data.condition. It does not gate
// edges; use edge conditions for routing.
func conditionLogic(ctx context.Context, inv *Invocation) (any, error) {
	expression := inv.Config().String("condition", "")
	if expression == "" {
		return placeholderLogic(ctx, inv)
	}
	result, err := inv.graph.evaluator.Evaluate(expression, inv.state.view())
	if err != nil {
		return nil, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}
	return map[string]any{
		"node_id":   inv.Node.ID,
		"type":      string(inv.Node.Type),
		"condition": expression,
		"result":    result,
	}, nil
}

func placeholderLogic(_ context.Context, inv *Invocation) (any, error) {
	return map[string]any{
		"node_id": inv.Node.ID,
		"type":    string(inv.Node.Type),
	}, nil
}
