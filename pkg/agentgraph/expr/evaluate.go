package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExpression is returned for blank expressions.
var ErrEmptyExpression = errors.New("empty expression")

// UnresolvedError reports an identifier that names nothing in the variables.
type UnresolvedError struct {
	Path string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved identifier %q", e.Path)
}

// BinaryOp compares two resolved operands.
type BinaryOp func(left, right any) (bool, error)

// Evaluator evaluates boolean expressions over a variable map.
type Evaluator struct {
	customOps map[string]BinaryOp
	lenient   bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a word operator such as "matches".
// Custom operators are tried after the built-in ones.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// WithLenientIdentifiers makes unknown bare identifiers resolve to their own
// text instead of failing with UnresolvedError.
func WithLenientIdentifiers() Option {
	return func(e *Evaluator) {
		e.lenient = true
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates expr against vars. Identifiers may be dotted paths
// into nested maps and slices ("review.score", "items.0").
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return false, ErrEmptyExpression
	}
	return e.eval(expr, vars)
}

// Eval evaluates expr with a default Evaluator.
func Eval(expr string, vars map[string]any) (bool, error) {
	return New().Evaluate(expr, vars)
}

func (e *Evaluator) eval(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, ErrEmptyExpression
	}

	// or binds looser than and, so split on it first.
	if left, right, ok := splitOutsideQuotes(expr, " or "); ok {
		l, err := e.eval(left, vars)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return e.eval(right, vars)
	}

	if left, right, ok := splitOutsideQuotes(expr, " and "); ok {
		l, err := e.eval(left, vars)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return e.eval(right, vars)
	}

	if inner, ok := strings.CutPrefix(expr, "not "); ok {
		r, err := e.eval(inner, vars)
		return !r, err
	}
	if inner, ok := strings.CutPrefix(expr, "!"); ok && !strings.HasPrefix(expr, "!=") {
		r, err := e.eval(inner, vars)
		return !r, err
	}

	if path, ok := strings.CutPrefix(expr, "exists "); ok {
		_, found := Lookup(vars, strings.TrimSpace(path))
		return found, nil
	}

	for _, op := range builtinOps {
		if left, right, ok := splitOutsideQuotes(expr, op.token); ok {
			return e.apply(op.compare, left, right, vars)
		}
	}

	for name, fn := range e.customOps {
		if left, right, ok := splitOutsideQuotes(expr, " "+name+" "); ok {
			return e.apply(fn, left, right, vars)
		}
	}

	v, err := e.resolve(expr, vars)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

func (e *Evaluator) apply(fn BinaryOp, left, right string, vars map[string]any) (bool, error) {
	l, err := e.resolve(left, vars)
	if err != nil {
		return false, err
	}
	r, err := e.resolve(right, vars)
	if err != nil {
		return false, err
	}
	return fn(l, r)
}

func (e *Evaluator) resolve(s string, vars map[string]any) (any, error) {
	v, err := Resolve(s, vars)
	var unresolved *UnresolvedError
	if e.lenient && errors.As(err, &unresolved) {
		return strings.TrimSpace(s), nil
	}
	return v, err
}

// splitOutsideQuotes splits s at the first sep that is not inside a quoted
// literal.
func splitOutsideQuotes(s, sep string) (string, string, bool) {
	var quote byte
	for i := 0; i+len(sep) <= len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case s[i:i+len(sep)] == sep:
			return s[:i], s[i+len(sep):], true
		}
	}
	return "", "", false
}
