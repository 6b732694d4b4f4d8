package expr

import (
	"fmt"
	"reflect"
	"strings"
)

var builtinOps = []struct {
	token   string
	compare BinaryOp
}{
	// Two-character tokens first so ">=" is not read as ">".
	{"==", equals},
	{"!=", notEquals},
	{">=", numeric(func(l, r float64) bool { return l >= r })},
	{"<=", numeric(func(l, r float64) bool { return l <= r })},
	{">", numeric(func(l, r float64) bool { return l > r })},
	{"<", numeric(func(l, r float64) bool { return l < r })},
	{" contains ", contains},
	{" in ", func(l, r any) (bool, error) { return contains(r, l) }},
}

// Compare applies a named operator to two values.
func Compare(left, right any, op string) (bool, error) {
	for _, b := range builtinOps {
		if strings.TrimSpace(b.token) == op {
			return b.compare(left, right)
		}
	}
	return false, fmt.Errorf("unknown operator: %s", op)
}

// equals compares numbers numerically and everything else by formatted value,
// so an int literal matches a float64 decoded from JSON.
func equals(left, right any) (bool, error) {
	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if lok && rok {
		return lf == rf, nil
	}
	if left == nil || right == nil {
		return left == nil && right == nil, nil
	}
	return fmt.Sprint(left) == fmt.Sprint(right), nil
}

func notEquals(left, right any) (bool, error) {
	eq, err := equals(left, right)
	return !eq, err
}

func numeric(cmp func(l, r float64) bool) BinaryOp {
	return func(left, right any) (bool, error) {
		l, ok := asNumber(left)
		if !ok {
			return false, fmt.Errorf("left operand %v (%T) is not a number", left, left)
		}
		r, ok := asNumber(right)
		if !ok {
			return false, fmt.Errorf("right operand %v (%T) is not a number", right, right)
		}
		return cmp(l, r), nil
	}
}

// contains reports whether haystack holds needle: substring for strings,
// element for slices, key for maps.
func contains(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case nil:
		return false, nil
	case string:
		return strings.Contains(h, fmt.Sprint(needle)), nil
	case map[string]any:
		_, ok := h[fmt.Sprint(needle)]
		return ok, nil
	}

	rv := reflect.ValueOf(haystack)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if eq, _ := equals(rv.Index(i).Interface(), needle); eq {
				return true, nil
			}
		}
		return false, nil
	}
	return strings.Contains(fmt.Sprint(haystack), fmt.Sprint(needle)), nil
}
