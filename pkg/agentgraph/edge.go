package agentgraph

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// PredicateFunc decides whether an edge is taken. It receives a read-only
// view of the state and must not mutate it.
type PredicateFunc func(state map[string]any) bool

// Condition gates an edge. Expression and Predicate are persistable; fn is
// an in-process closure set with WhenFunc.
type Condition struct {
	// Expression is evaluated by package expr against the state.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
	// Predicate names a function registered with WithPredicate.
	Predicate string `json:"predicate,omitempty" yaml:"predicate,omitempty"`

	fn PredicateFunc
}

// String renders the condition for descriptions and logs.
func (c *Condition) String() string {
	switch {
	case c == nil:
		return ""
	case c.Expression != "":
		return c.Expression
	case c.Predicate != "":
		return "predicate:" + c.Predicate
	default:
		return "<func>"
	}
}

// Edge is a directed link between two nodes. An edge without a condition
// is always taken.
type Edge struct {
	Source    string
	Target    string
	Condition *Condition
	Metadata  map[string]any
	Priority  int
}

// EdgeOption configures an Edge.
type EdgeOption func(*Edge)

// NewEdge creates an edge from source to target.
func NewEdge(source, target string, opts ...EdgeOption) Edge {
	e := Edge{
		Source:   source,
		Target:   target,
		Metadata: make(map[string]any),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WithPriority orders sequential edges from the same source; lower runs first.
func WithPriority(p int) EdgeOption {
	return func(e *Edge) {
		e.Priority = p
	}
}

// Parallel marks the edge for concurrent fan-out.
func Parallel() EdgeOption {
	return func(e *Edge) {
		e.Metadata["parallel"] = true
	}
}

// WithMetadata sets a metadata tag on the edge.
func WithMetadata(key string, value any) EdgeOption {
	return func(e *Edge) {
		e.Metadata[key] = value
	}
}

// When gates the edge on an expression such as `score > 0.5` or
// `review.approved == true`. An empty expression leaves the edge
// unconditional.
func When(expression string) EdgeOption {
	return func(e *Edge) {
		if expression == "" {
			e.Condition = nil
			return
		}
		e.Condition = &Condition{Expression: expression}
	}
}

// WhenPredicate gates the edge on a predicate registered with WithPredicate.
func WhenPredicate(name string) EdgeOption {
	return func(e *Edge) {
		e.Condition = &Condition{Predicate: name}
	}
}

// WhenFunc gates the edge on a closure. Closures do not survive
// persistence; use When or WhenPredicate for edges that must.
func WhenFunc(fn PredicateFunc) EdgeOption {
	return func(e *Edge) {
		if fn == nil {
			e.Condition = nil
			return
		}
		e.Condition = &Condition{fn: fn}
	}
}

// IsParallel reports whether the edge carries the parallel flag.
func (e Edge) IsParallel() bool {
	v, ok := e.Metadata["parallel"].(bool)
	return ok && v
}

var errUnknownPredicate = errors.New("unknown predicate")

// evalCondition evaluates the edge condition against a state view.
// Panics inside predicates are returned as errors.
func (g *Graph) evalCondition(e Edge, view map[string]any) (ok bool, err error) {
	c := e.Condition
	if c == nil {
		return true, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &PanicError{NodeID: e.Source, Value: r, Stack: string(debug.Stack())}
		}
	}()

	switch {
	case c.fn != nil:
		return c.fn(view), nil
	case c.Predicate != "":
		fn, found := g.predicates.Get(c.Predicate)
		if !found {
			return false, fmt.Errorf("%w: %s", errUnknownPredicate, c.Predicate)
		}
		return fn(view), nil
	default:
		return g.evaluator.Evaluate(c.Expression, view)
	}
}
