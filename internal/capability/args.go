package capability

import (
	"encoding/json"
	"math"
)

// Argument decoding is deliberately defensive: malformed remote input
// degrades to the documented default rather than erroring. Absent keys,
// null values, and wrong-typed values all yield the default.

// StringArg returns the string value for key, or def.
func StringArg(args map[string]any, key, def string) string {
	if args == nil {
		return def
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

// IntArg returns the integer value for key, or def. JSON decoding yields
// float64 for all numbers; non-integral floats fall back to the default.
func IntArg(args map[string]any, key string, def int) int {
	if args == nil {
		return def
	}
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v != math.Trunc(v) {
			return def
		}
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// BoolArg returns the boolean value for key, or def.
func BoolArg(args map[string]any, key string, def bool) bool {
	if args == nil {
		return def
	}
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
