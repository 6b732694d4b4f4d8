package agentgraph

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/expr"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/observability"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/registry"
)

// Graph is a directed graph of typed nodes. Nodes and edges are added at
// build time; Run walks the graph and collects node results into a shared
// state map.
//
// A Graph is safe for concurrent use, but runs on the same Graph are
// serialized because node status lives on the graph.
type Graph struct {
	name string

	mu       sync.RWMutex
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	outgoing map[string][]Edge
	incoming map[string][]string

	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	agents     AgentRegistry
	runtime    AgentRuntime
	predicates *registry.Registry[PredicateFunc]
	logic      map[NodeType]NodeLogic
	store      checkpoint.Store
	evaluator  *expr.Evaluator

	runMu sync.Mutex
}

// New creates an empty graph. name identifies the workflow in logs,
// metrics and checkpoints.
//
// Example:
//
//	g := agentgraph.New("research",
//	    agentgraph.WithAgents(agents),
//	    agentgraph.WithAgentRuntime(runtime))
//	g.AddNode(agentgraph.NewInputNode("input"))
//	g.AddNode(agentgraph.NewAgentNode("researcher", "researcher"))
//	g.AddEdge(agentgraph.NewEdge("input", "researcher"))
func New(name string, opts ...Option) *Graph {
	g := &Graph{
		name:       name,
		nodes:      make(map[string]*Node),
		outgoing:   make(map[string][]Edge),
		incoming:   make(map[string][]string),
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		predicates: registry.New[PredicateFunc]("predicate"),
		logic:      make(map[NodeType]NodeLogic),
		evaluator:  expr.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the workflow name.
func (g *Graph) Name() string {
	return g.name
}

// AddNode adds a node. It fails with ErrInvalidNode for an empty id or
// unknown type and ErrDuplicateNode if the id is taken.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: empty node id", ErrInvalidNode)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: node %s has unknown type %q", ErrInvalidNode, n.ID, n.Type)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge adds an edge. Both endpoints must already exist; otherwise it
// fails with ErrUnknownNode and the graph is left unchanged.
func (g *Graph) AddEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range []string{e.Source, e.Target} {
		if _, ok := g.nodes[id]; !ok {
			return fmt.Errorf("%w: %s (edge %s -> %s)", ErrUnknownNode, id, e.Source, e.Target)
		}
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}

	g.edges = append(g.edges, e)
	g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	g.incoming[e.Target] = append(g.incoming[e.Target], e.Source)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges)
}

// OutgoingEdges returns the edges leaving id, in insertion order.
func (g *Graph) OutgoingEdges(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.outgoing[id])
}

// IncomingNodeIDs returns the sources of edges entering id. A source
// appears once per edge.
func (g *Graph) IncomingNodeIDs(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.incoming[id])
}

// Validate checks structural integrity. Disconnected components are
// logged as a warning, not returned.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.nodes) == 0 {
		return ErrEmptyGraph
	}

	for _, e := range g.edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return fmt.Errorf("%w: source %s", ErrDanglingEdge, e.Source)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return fmt.Errorf("%w: target %s", ErrDanglingEdge, e.Target)
		}
	}

	if unreachable := g.unreachableLocked(); len(unreachable) > 0 {
		observability.LogDisconnected(g.logger, unreachable)
	}
	return nil
}

// unreachableLocked walks edges in both directions from the first node and
// returns the nodes it never reached, in insertion order.
func (g *Graph) unreachableLocked() []string {
	seen := map[string]bool{g.order[0]: true}
	stack := []string{g.order[0]}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		neighbors := slices.Clone(g.incoming[id])
		for _, e := range g.outgoing[id] {
			neighbors = append(neighbors, e.Target)
		}
		for _, nb := range neighbors {
			if !seen[nb] {
				seen[nb] = true
				stack = append(stack, nb)
			}
		}
	}

	var missing []string
	for _, id := range g.order {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// TopologicalSort orders nodes so every edge points forward. Nodes that
// become ready together come out in insertion order. It fails with
// ErrCycle if the graph has a cycle. Execution does not require a
// topological order; cycles are bounded by the iteration budget instead.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	position := make(map[string]int, len(g.order))
	indegree := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
		indegree[id] = len(g.incoming[id])
	}

	var queue []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		var ready []string
		for _, e := range g.outgoing[id] {
			indegree[e.Target]--
			if indegree[e.Target] == 0 {
				ready = append(ready, e.Target)
			}
		}
		slices.SortFunc(ready, func(a, b string) int { return position[a] - position[b] })
		queue = append(queue, ready...)
	}

	if len(sorted) < len(g.order) {
		return nil, fmt.Errorf("%w: %d of %d nodes sorted", ErrCycle, len(sorted), len(g.order))
	}
	return sorted, nil
}

// cyclicNodes returns the nodes that lie on a cycle: members of strongly
// connected components with more than one node, and nodes with an edge to
// themselves. Tarjan's algorithm with an explicit stack.
func (g *Graph) cyclicNodes() map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type item struct {
		id   string
		edge int
	}

	index := make(map[string]int, len(g.order))
	low := make(map[string]int, len(g.order))
	onStack := make(map[string]bool, len(g.order))
	var stack []string
	cyclic := make(map[string]bool)
	next := 0

	push := func(id string) {
		index[id], low[id] = next, next
		next++
		stack = append(stack, id)
		onStack[id] = true
	}

	for _, root := range g.order {
		if _, seen := index[root]; seen {
			continue
		}
		push(root)
		work := []item{{id: root}}

		for len(work) > 0 {
			top := &work[len(work)-1]
			edges := g.outgoing[top.id]
			if top.edge < len(edges) {
				target := edges[top.edge].Target
				top.edge++
				if target == top.id {
					cyclic[target] = true
				}
				if _, seen := index[target]; !seen {
					push(target)
					work = append(work, item{id: target})
				} else if onStack[target] {
					low[top.id] = min(low[top.id], index[target])
				}
				continue
			}

			id := top.id
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].id
				low[parent] = min(low[parent], low[id])
			}
			if low[id] != index[id] {
				continue
			}

			var members []string
			for {
				n := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[n] = false
				members = append(members, n)
				if n == id {
					break
				}
			}
			if len(members) > 1 {
				for _, m := range members {
					cyclic[m] = true
				}
			}
		}
	}
	return cyclic
}

// EntryPoints returns the nodes with no incoming edges in insertion order,
// or, if there are none, the input nodes. It fails with ErrNoEntryPoint
// when neither exists.
func (g *Graph) EntryPoints() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var entries []string
	for _, id := range g.order {
		if len(g.incoming[id]) == 0 {
			entries = append(entries, id)
		}
	}
	if len(entries) > 0 {
		return entries, nil
	}

	for _, id := range g.order {
		if g.nodes[id].Type == NodeInput {
			entries = append(entries, id)
		}
	}
	if len(entries) == 0 {
		return nil, ErrNoEntryPoint
	}
	return entries, nil
}

// Description is a serializable view of a graph and its node statuses.
type Description struct {
	Name  string            `json:"name" yaml:"name"`
	Nodes []NodeDescription `json:"nodes" yaml:"nodes"`
	Edges []EdgeDescription `json:"edges" yaml:"edges"`
}

// NodeDescription describes one node.
type NodeDescription struct {
	ID     string     `json:"id" yaml:"id"`
	Type   NodeType   `json:"type" yaml:"type"`
	Config NodeConfig `json:"config" yaml:"config"`
	Status NodeStatus `json:"status" yaml:"status"`
	Error  string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// EdgeDescription describes one edge. Closure conditions render as "<func>".
type EdgeDescription struct {
	Source    string         `json:"source" yaml:"source"`
	Target    string         `json:"target" yaml:"target"`
	Condition string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Priority  int            `json:"priority" yaml:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Describe returns a snapshot of the graph suitable for JSON or YAML.
func (g *Graph) Describe() Description {
	g.mu.RLock()
	defer g.mu.RUnlock()

	d := Description{
		Name:  g.name,
		Nodes: make([]NodeDescription, 0, len(g.order)),
		Edges: make([]EdgeDescription, 0, len(g.edges)),
	}
	for _, id := range g.order {
		n := g.nodes[id]
		nd := NodeDescription{ID: n.ID, Type: n.Type, Config: n.Config, Status: n.Status()}
		if err := n.Err(); err != nil {
			nd.Error = err.Error()
		}
		d.Nodes = append(d.Nodes, nd)
	}
	for _, e := range g.edges {
		d.Edges = append(d.Edges, EdgeDescription{
			Source:    e.Source,
			Target:    e.Target,
			Condition: e.Condition.String(),
			Priority:  e.Priority,
			Metadata:  e.Metadata,
		})
	}
	return d
}

// statuses returns the status of every node keyed by id.
func (g *Graph) statuses() map[string]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]string, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = string(n.Status())
	}
	return out
}

// NodeStatuses returns the current status of every node keyed by id.
func (g *Graph) NodeStatuses() map[string]NodeStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]NodeStatus, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = n.Status()
	}
	return out
}
