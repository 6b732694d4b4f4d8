// Package definition loads declarative workflow documents (YAML or JSON)
// and builds agentgraph graphs from them.
//
// A document looks like:
//
//	name: research
//	settings:
//	  max_iterations: 50
//	  checkpoint:
//	    backend: file
//	    dir: ./checkpoints
//	agents:
//	  - id: researcher
//	    role: Researcher
//	    goal: Find sources
//	nodes:
//	  - id: input
//	    type: input
//	  - id: researcher
//	    type: agent
//	    config:
//	      task: "Research ${input.topic}"
//	edges:
//	  - source: input
//	    target: researcher
package definition

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/agent"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/config"
)

// ErrInvalidDocument indicates a document that cannot describe a graph.
var ErrInvalidDocument = errors.New("invalid workflow document")

// Document is a declarative workflow.
type Document struct {
	Name     string         `json:"name" yaml:"name"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
	Agents   []agent.Agent  `json:"agents,omitempty" yaml:"agents,omitempty"`
	Nodes    []NodeSpec     `json:"nodes" yaml:"nodes"`
	Edges    []EdgeSpec     `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// NodeSpec declares one node. Type accepts the agentgraph node types plus
// the aliases start and end.
type NodeSpec struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// EdgeSpec declares one edge. Condition is an expression; Predicate names
// a predicate registered on the graph with agentgraph.WithPredicate.
type EdgeSpec struct {
	Source    string         `json:"source" yaml:"source"`
	Target    string         `json:"target" yaml:"target"`
	Condition string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Predicate string         `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Parallel  bool           `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Priority  int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Parse decodes a document in the given format.
func Parse(data []byte, format checkpoint.Format) (*Document, error) {
	var doc Document
	if err := config.Decode(data, string(format), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return doc.checked()
}

// LoadFile reads a .yaml, .yml or .json document.
func LoadFile(path string) (*Document, error) {
	var doc Document
	if err := config.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return doc.checked()
}

func (d *Document) checked() (*Document, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDocument)
	}
	return d, nil
}

// Config returns typed accessors over the settings.
func (d *Document) Config() config.Config {
	return config.New(d.Settings)
}

// AgentRegistry returns a registry holding the document's agents.
func (d *Document) AgentRegistry() (*agent.Registry, error) {
	r := agent.NewRegistry()
	var errs []error
	for i := range d.Agents {
		a := d.Agents[i]
		if err := r.Register(&a); err != nil {
			errs = append(errs, fmt.Errorf("agent %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Build creates the graph. opts are applied before nodes are added, so
// they can supply the agent runtime, predicates and observability.
// When the document declares agents and opts do not set a registry,
// the document's agents are used. All node and edge problems are
// reported together.
func (d *Document) Build(opts ...agentgraph.Option) (*agentgraph.Graph, error) {
	if len(d.Agents) > 0 {
		agents, err := d.AgentRegistry()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		opts = append([]agentgraph.Option{agentgraph.WithAgents(agents)}, opts...)
	}

	g := agentgraph.New(d.Name, opts...)
	var errs []error

	for _, ns := range d.Nodes {
		node, err := ns.node()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := g.AddNode(node); err != nil {
			errs = append(errs, err)
		}
	}

	for _, es := range d.Edges {
		if err := g.AddEdge(es.edge()); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return g, nil
}

func (s NodeSpec) node() (*agentgraph.Node, error) {
	nodeType, err := agentgraph.ParseNodeType(s.Type)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", s.ID, err)
	}

	data := make(map[string]any, len(s.Config)+1)
	for k, v := range s.Config {
		data[k] = v
	}
	if nodeType == agentgraph.NodeAgent {
		if _, ok := data["agent_id"]; !ok {
			data["agent_id"] = s.ID
		}
	}

	node := agentgraph.NewNode(s.ID, nodeType, data)
	for k, v := range s.Metadata {
		node.WithMetadata(k, v)
	}
	return node, nil
}

func (s EdgeSpec) edge() agentgraph.Edge {
	opts := []agentgraph.EdgeOption{agentgraph.WithPriority(s.Priority)}
	if s.Parallel {
		opts = append(opts, agentgraph.Parallel())
	}
	for k, v := range s.Metadata {
		opts = append(opts, agentgraph.WithMetadata(k, v))
	}
	switch {
	case s.Condition != "":
		opts = append(opts, agentgraph.When(s.Condition))
	case s.Predicate != "":
		opts = append(opts, agentgraph.WhenPredicate(s.Predicate))
	}
	return agentgraph.NewEdge(s.Source, s.Target, opts...)
}

// RunOptions turns settings.max_iterations and settings.max_concurrency
// into run options.
func (d *Document) RunOptions() []agentgraph.RunOption {
	cfg := d.Config()
	var opts []agentgraph.RunOption
	if cfg.Has("max_iterations") {
		opts = append(opts, agentgraph.WithMaxIterations(cfg.Int("max_iterations", agentgraph.DefaultMaxIterations)))
	}
	if n := cfg.Int("max_concurrency", 0); n > 0 {
		opts = append(opts, agentgraph.WithMaxConcurrency(n))
	}
	if state, ok := cfg.Any("initial_state", nil).(map[string]any); ok {
		opts = append(opts, agentgraph.WithInitialState(state))
	}
	return opts
}

// CheckpointStore opens the store described by settings.checkpoint:
//
//	backend: file (dir, format) | sqlite (path) | redis (addr, password,
//	         db, key_prefix, ttl) | memory
//
// It returns nil and no error when no checkpoint settings exist.
func (d *Document) CheckpointStore(ctx context.Context) (checkpoint.Store, error) {
	cfg := d.Config().Sub("checkpoint")
	if len(cfg.Raw()) == 0 {
		return nil, nil
	}

	switch backend := cfg.String("backend", "file"); backend {
	case "file":
		format, err := checkpoint.ParseFormat(cfg.String("format", "json"))
		if err != nil {
			return nil, err
		}
		return checkpoint.NewFileStore(cfg.String("dir", "checkpoints"), format), nil
	case "memory":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		store, err := checkpoint.NewSQLiteStore(cfg.String("path", "checkpoints.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := checkpoint.NewRedisStore(ctx, checkpoint.RedisConfig{
			Addr:      cfg.String("addr", "localhost:6379"),
			Password:  cfg.String("password", ""),
			DB:        cfg.Int("db", 0),
			KeyPrefix: cfg.String("key_prefix", ""),
			TTL:       cfg.Duration("ttl", 0),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown checkpoint backend %q", ErrInvalidDocument, backend)
	}
}
