package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/expr"
)

// placeholder matches ${path} where path is a dotted state path.
var placeholder = regexp.MustCompile(`\$\{\s*([a-zA-Z_][a-zA-Z0-9_\-]*(?:\.[a-zA-Z0-9_\-]+)*)\s*\}`)

// Expander renders ${path} placeholders against a state map.
// It is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
}

// NewExpander creates an Expander. Missing paths are kept verbatim
// unless WithMissingAction says otherwise.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingKeep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces every ${path} in s. Strings render as-is; maps and
// slices render as compact JSON; other values use their default format.
//
//	exp.Expand("Summarize ${input.topic}", state)
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		if v, ok := expr.Lookup(vars, path); ok {
			return render(v)
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, path)
		}
		return match
	})

	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

// ExpandMap expands string values of m, recursing into nested maps and
// slices. Other values are copied unchanged.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		expanded, err := e.expandValue(v, vars)
		if err != nil {
			return nil, err
		}
		out[k] = expanded
	}
	return out, nil
}

func (e *Expander) expandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return e.Expand(val, vars)
	case map[string]any:
		return e.ExpandMap(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := e.expandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

func render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// UndefinedVariableError lists the paths that MissingError could not resolve.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

var defaultExpander = NewExpander()

// Expand expands s with the default expander, keeping unknown placeholders.
func Expand(s string, vars map[string]any) string {
	out, _ := defaultExpander.Expand(s, vars)
	return out
}
