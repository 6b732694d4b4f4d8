package expr

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resolve turns an operand into a value. Quoted strings, numbers, true,
// false and null are literals; anything else is a path looked up in vars.
func Resolve(s string, vars map[string]any) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyExpression
	}

	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}

	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "nil", "none":
		return nil, nil
	}

	var num json.Number
	if err := json.Unmarshal([]byte(s), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i, nil
		}
		if f, err := num.Float64(); err == nil {
			return f, nil
		}
	}

	if v, ok := Lookup(vars, s); ok {
		return v, nil
	}
	return nil, &UnresolvedError{Path: s}
}

// Lookup walks a dotted path through nested maps and slices.
// A key containing dots is matched whole before the path is split.
func Lookup(vars map[string]any, path string) (any, bool) {
	if vars == nil {
		return nil, false
	}
	if v, ok := vars[path]; ok {
		return v, true
	}

	var cur any = vars
	for _, part := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// IsTruthy reports whether a value counts as true: nil, false, empty strings,
// empty collections and zero numbers are false.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}
	if f, ok := asNumber(v); ok {
		return f != 0
	}
	return true
}

// ToFloat64 converts numbers and numeric strings to float64, returning 0
// when v is not numeric.
func ToFloat64(v any) float64 {
	f, _ := asNumber(v)
	return f
}

func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
