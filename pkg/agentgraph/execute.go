package agentgraph

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/observability"
)

// Run executes the graph and returns the final state: every completed
// node's result keyed by node id, plus "input" and "iterations".
//
// On error, Run returns the state at the point of failure (useful for
// debugging and for saving a checkpoint to resume from).
//
// Execution flow:
//  1. Validate the graph and find entry points
//  2. Seed state from the resume checkpoint or WithInitialState
//  3. From each entry point, visit nodes depth-first: check cancellation,
//     consume one iteration, execute the node unless it already completed
//  4. After a node, fan out to its parallel edges and wait for all of them,
//     then follow its sequential edges in priority order
//
// Example:
//
//	state, err := g.Run(ctx, map[string]any{"topic": "graphs"},
//	    agentgraph.WithMaxIterations(50))
//	if err != nil {
//	    // state contains results of nodes that completed
//	}
func (g *Graph) Run(ctx context.Context, input any, opts ...RunOption) (map[string]any, error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	g.runMu.Lock()
	defer g.runMu.Unlock()

	if err := g.Validate(); err != nil {
		return nil, err
	}
	entries, err := g.EntryPoints()
	if err != nil {
		return nil, err
	}

	var seed map[string]any
	if cfg.resume != nil {
		seed = deepCopyMap(cfg.resume.State)
	} else {
		seed = cfg.initialState
	}
	state := newRunState(seed)
	state.set(StateKeyInput, input)
	g.prepare(cfg.resume, state)

	runID := cfg.runID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := observability.EnrichLogger(g.logger, g.name, runID)

	ctx, span := g.spans.StartRunSpan(ctx, g.name, runID)
	startTime := time.Now()
	observability.LogRunStart(logger, entries, cfg.resume != nil)

	r := &run{
		graph:    g,
		cfg:      cfg,
		state:    state,
		logger:   logger,
		runID:    runID,
		cyclic:   g.cyclicNodes(),
		expanded: make(map[string]bool),
	}
	if cfg.maxConcurrency > 0 {
		r.sem = semaphore.NewWeighted(cfg.maxConcurrency)
	}

	var runErr error
	for _, id := range entries {
		if runErr = r.walk(ctx, id); runErr != nil {
			break
		}
	}

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	g.metrics.RecordRun(ctx, g.name, runErr == nil, duration)
	g.spans.EndSpanWithError(span, runErr)

	final := state.final()
	if runErr != nil {
		observability.LogRunError(logger, runErr, durationMs, failedNode(runErr))
	} else {
		observability.LogRunComplete(logger, durationMs, final[StateKeyIterations].(int))
	}
	return final, runErr
}

// prepare sets node statuses for a new run. Nodes completed in the resume
// checkpoint keep their state entry as result; everything else is reset.
func (g *Graph) prepare(cp *checkpoint.Checkpoint, state *runState) {
	for _, n := range g.Nodes() {
		if cp != nil && cp.Status(n.ID) == string(StatusCompleted) {
			result, _ := state.get(n.ID)
			n.restore(StatusCompleted, result)
			continue
		}
		n.Reset()
	}
}

// failedNode extracts the node id carried by a run error.
func failedNode(err error) string {
	var nodeErr *NodeExecutionError
	if errors.As(err, &nodeErr) {
		return nodeErr.NodeID
	}
	var maxErr *MaxIterationsError
	if errors.As(err, &maxErr) {
		return maxErr.NodeID
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return cancelErr.NodeID
	}
	return ""
}

// run holds the per-run execution machinery.
type run struct {
	graph  *Graph
	cfg    runConfig
	state  *runState
	logger *slog.Logger
	runID  string

	// guard makes concurrent visits to the same node share one execution.
	guard singleflight.Group
	sem   *semaphore.Weighted

	// cyclic holds the nodes on a cycle; they follow their edges on every
	// visit. Any other node follows them once per run.
	cyclic     map[string]bool
	expandedMu sync.Mutex
	expanded   map[string]bool
}

// expands reports whether a visit to id should follow its edges, and
// records the expansion.
func (r *run) expands(id string) bool {
	if r.cyclic[id] {
		return true
	}
	r.expandedMu.Lock()
	defer r.expandedMu.Unlock()
	if r.expanded[id] {
		return false
	}
	r.expanded[id] = true
	return true
}

// frame is a pending visit. edge is set for sequential edges, whose
// condition is evaluated when the frame is popped.
type frame struct {
	nodeID string
	edge   *Edge
}

// walk visits nodes depth-first from id using an explicit stack.
func (r *run) walk(ctx context.Context, id string) error {
	stack := []frame{{nodeID: id}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.edge != nil && !r.taken(*f.edge) {
			continue
		}

		next, err := r.visit(ctx, f.nodeID)
		if err != nil {
			return err
		}
		stack = append(stack, next...)
	}
	return nil
}

// visit runs one node and its parallel branches, and returns the frames
// for its sequential edges in the order they must be popped.
//
// A node that already completed is not executed again. Its edges are
// followed once per run, so nodes restored from a checkpoint still lead on
// to the nodes that need to run, and a fan-in node reached from several
// parents walks its descendants once. Nodes on a cycle follow their edges
// on every visit and keep consuming the iteration budget until it runs out.
func (r *run) visit(ctx context.Context, id string) ([]frame, error) {
	select {
	case <-ctx.Done():
		return nil, &CancellationError{NodeID: id, Cause: ctx.Err()}
	default:
	}

	if err := r.state.tick(r.cfg.maxIterations, id); err != nil {
		return nil, err
	}

	node, ok := r.graph.Node(id)
	if !ok {
		return nil, &NodeExecutionError{NodeID: id, Err: ErrUnknownNode}
	}

	_, err, _ := r.guard.Do(id, func() (any, error) {
		if node.Status() == StatusCompleted {
			return nil, nil
		}
		return nil, r.execute(ctx, node)
	})
	if err != nil {
		return nil, err
	}
	if !r.expands(id) {
		return nil, nil
	}

	var sequential []Edge
	var parallel []string
	for _, e := range r.graph.OutgoingEdges(id) {
		if !e.IsParallel() {
			sequential = append(sequential, e)
			continue
		}
		if r.taken(e) {
			parallel = append(parallel, e.Target)
		}
	}

	if len(parallel) > 0 {
		eg, egCtx := errgroup.WithContext(ctx)
		for _, target := range parallel {
			eg.Go(func() error {
				return r.walk(egCtx, target)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(sequential, func(a, b Edge) int { return a.Priority - b.Priority })
	frames := make([]frame, 0, len(sequential))
	for i := len(sequential) - 1; i >= 0; i-- {
		frames = append(frames, frame{nodeID: sequential[i].Target, edge: &sequential[i]})
	}
	return frames, nil
}

// taken evaluates an edge condition. Failures count as false and are
// logged. A target whose only attempt so far was refused is marked skipped.
func (r *run) taken(e Edge) bool {
	ok, err := r.graph.evalCondition(e, r.state.view())
	if err != nil {
		observability.LogConditionError(r.logger, e.Source, e.Target, err)
		ok = false
	}
	if !ok {
		if target, found := r.graph.Node(e.Target); found && target.skip() {
			observability.LogNodeSkipped(r.logger, e.Target, e.Source)
		}
	}
	return ok
}

// execute runs node logic and records the outcome on the node, the state
// and the observability stack.
func (r *run) execute(ctx context.Context, node *Node) error {
	g := r.graph

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return &CancellationError{NodeID: node.ID, Cause: err}
		}
		defer r.sem.Release(1)
	}

	ctx, span := g.spans.StartNodeSpan(ctx, node.ID, string(node.Type))
	node.setRunning()
	g.metrics.NodeStarted(ctx, node.ID)
	observability.LogNodeStart(r.logger, node.ID, string(node.Type))
	startTime := time.Now()

	result, err := r.dispatch(ctx, node)

	duration := time.Since(startTime)
	g.metrics.NodeFinished(ctx, node.ID, string(node.Type), duration, err)
	g.spans.EndSpanWithError(span, err)

	if err != nil {
		node.fail(err)
		observability.LogNodeError(r.logger, node.ID, err)
		return &NodeExecutionError{NodeID: node.ID, NodeType: node.Type, Err: err}
	}

	r.state.set(node.ID, result)
	node.complete(result)
	observability.LogNodeComplete(r.logger, node.ID, float64(duration.Milliseconds()))
	return nil
}

// dispatch calls the node's logic, converting a panic into a PanicError.
func (r *run) dispatch(ctx context.Context, node *Node) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = &PanicError{NodeID: node.ID, Value: p, Stack: string(debug.Stack())}
		}
	}()

	inv := &Invocation{
		Node:   node,
		Logger: r.logger.With("node_id", node.ID),
		RunID:  r.runID,
		graph:  r.graph,
		state:  r.state,
	}
	return r.graph.logicFor(node).Execute(ctx, inv)
}
