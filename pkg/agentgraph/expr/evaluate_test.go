package expr

import (
	"errors"
	"regexp"
	"testing"
)

type evalCase struct {
	name    string
	expr    string
	vars    map[string]any
	want    bool
	wantErr bool
}

func runCases(t *testing.T, e *Evaluator, tests []evalCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.vars)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Evaluate(%q) expected error, got %v", tt.expr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate(%q) unexpected error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Equality(t *testing.T) {
	runCases(t, New(), []evalCase{
		{name: "quoted string", expr: "status == 'active'", vars: map[string]any{"status": "active"}, want: true},
		{name: "double quoted", expr: `status == "active"`, vars: map[string]any{"status": "active"}, want: true},
		{name: "mismatch", expr: "status == 'inactive'", vars: map[string]any{"status": "active"}, want: false},
		{name: "int literal vs json float", expr: "count == 5", vars: map[string]any{"count": float64(5)}, want: true},
		{name: "int vs int", expr: "count == 5", vars: map[string]any{"count": 5}, want: true},
		{name: "bool", expr: "enabled == true", vars: map[string]any{"enabled": true}, want: true},
		{name: "null", expr: "missing == null", vars: map[string]any{"missing": nil}, want: true},
		{name: "not equals", expr: "a != b", vars: map[string]any{"a": "x", "b": "y"}, want: true},
	})
}

func TestEval_Ordering(t *testing.T) {
	vars := map[string]any{"score": 0.85, "count": 3, "label": "high"}
	runCases(t, New(), []evalCase{
		{name: "gte", expr: "score >= 0.8", vars: vars, want: true},
		{name: "lte", expr: "count <= 2", vars: vars, want: false},
		{name: "gt", expr: "count > 2", vars: vars, want: true},
		{name: "lt", expr: "score < 0.5", vars: vars, want: false},
		{name: "numeric string", expr: "'10' > 9", vars: vars, want: true},
		{name: "non numeric operand", expr: "label > 3", vars: vars, wantErr: true},
	})
}

func TestEval_Paths(t *testing.T) {
	vars := map[string]any{
		"review": map[string]any{
			"score": float64(7),
			"tags":  []any{"urgent", "billing"},
		},
		"a.b": "flat",
	}
	runCases(t, New(), []evalCase{
		{name: "nested map", expr: "review.score > 5", vars: vars, want: true},
		{name: "slice index", expr: "review.tags.1 == 'billing'", vars: vars, want: true},
		{name: "dotted key wins", expr: "a.b == 'flat'", vars: vars, want: true},
		{name: "missing path", expr: "review.author == 'x'", vars: vars, wantErr: true},
		{name: "index out of range", expr: "review.tags.5", vars: vars, wantErr: true},
		{name: "exists present", expr: "exists review.score", vars: vars, want: true},
		{name: "exists absent", expr: "exists review.author", vars: vars, want: false},
	})
}

func TestEval_Contains(t *testing.T) {
	vars := map[string]any{
		"message": "payment error occurred",
		"tags":    []any{"a", "b"},
		"meta":    map[string]any{"k": 1},
		"nums":    []any{float64(1), float64(2)},
	}
	runCases(t, New(), []evalCase{
		{name: "substring", expr: "message contains 'error'", vars: vars, want: true},
		{name: "slice element", expr: "tags contains 'b'", vars: vars, want: true},
		{name: "map key", expr: "meta contains 'k'", vars: vars, want: true},
		{name: "in", expr: "'a' in tags", vars: vars, want: true},
		{name: "numeric in", expr: "2 in nums", vars: vars, want: true},
		{name: "absent", expr: "'z' in tags", vars: vars, want: false},
	})
}

func TestEval_Logical(t *testing.T) {
	vars := map[string]any{"ready": true, "count": 0, "name": "x"}
	runCases(t, New(), []evalCase{
		{name: "and", expr: "ready and name == 'x'", vars: vars, want: true},
		{name: "or", expr: "count > 1 or ready", vars: vars, want: true},
		{name: "not", expr: "not ready", vars: vars, want: false},
		{name: "bang", expr: "!count", vars: vars, want: true},
		{name: "or looser than and", expr: "ready and count > 1 or name == 'x'", vars: vars, want: true},
		{name: "separator in quotes", expr: "name == 'x and y' or ready", vars: vars, want: true},
		{name: "short circuit skips bad right side", expr: "ready or missing > 1", vars: vars, want: true},
	})
}

func TestEval_Truthiness(t *testing.T) {
	runCases(t, New(), []evalCase{
		{name: "empty string", expr: "s", vars: map[string]any{"s": ""}, want: false},
		{name: "empty slice", expr: "s", vars: map[string]any{"s": []any{}}, want: false},
		{name: "zero", expr: "n", vars: map[string]any{"n": 0}, want: false},
		{name: "map", expr: "m", vars: map[string]any{"m": map[string]any{"x": 1}}, want: true},
		{name: "literal true", expr: "true", want: true},
	})
}

func TestEval_Errors(t *testing.T) {
	_, err := Eval("   ", nil)
	if !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}

	_, err = Eval("unknown == 1", map[string]any{})
	var unresolved *UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedError, got %v", err)
	}
	if unresolved.Path != "unknown" {
		t.Errorf("Path = %q, want %q", unresolved.Path, "unknown")
	}
}

func TestEval_LenientIdentifiers(t *testing.T) {
	e := New(WithLenientIdentifiers())
	got, err := e.Evaluate("route == approve", map[string]any{"route": "approve"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected bare identifier to compare as text")
	}
}

func TestEval_CustomOperator(t *testing.T) {
	e := New(WithCustomOperator("matches", func(left, right any) (bool, error) {
		return regexp.MatchString(right.(string), left.(string))
	}))
	runCases(t, e, []evalCase{
		{name: "match", expr: "name matches '^test.*'", vars: map[string]any{"name": "test_one"}, want: true},
		{name: "no match", expr: "name matches '^x'", vars: map[string]any{"name": "test_one"}, want: false},
	})
}

func TestCompare(t *testing.T) {
	got, err := Compare(3, 2, ">")
	if err != nil || !got {
		t.Errorf("Compare(3, 2, >) = %v, %v", got, err)
	}
	got, err = Compare("abc", "b", "contains")
	if err != nil || !got {
		t.Errorf("Compare(abc, b, contains) = %v, %v", got, err)
	}
	if _, err := Compare(1, 2, "~"); err == nil {
		t.Error("expected error for unknown operator")
	}
}

func TestLookup(t *testing.T) {
	vars := map[string]any{"a": map[string]any{"b": []any{"c"}}}
	if v, ok := Lookup(vars, "a.b.0"); !ok || v != "c" {
		t.Errorf("Lookup(a.b.0) = %v, %v", v, ok)
	}
	if _, ok := Lookup(nil, "a"); ok {
		t.Error("Lookup on nil vars should miss")
	}
	if _, ok := Lookup(vars, "a.b.x"); ok {
		t.Error("non-numeric slice index should miss")
	}
}
