package condition

import (
	"fmt"
	"reflect"
	"strings"
)

// Result is the outcome of evaluating a condition tree. Warnings record
// comparisons that referenced fields absent from the context; those
// comparisons evaluate to false but never fail the evaluation itself.
type Result struct {
	Value    bool
	Warnings []string
}

// Evaluate walks the tree against the given field values. A nil tree is true.
func (n *Node) Evaluate(fields map[string]any) Result {
	if n == nil {
		return Result{Value: true}
	}

	switch {
	case n.Compare != nil:
		return evalCompare(n.Compare, fields)

	case n.All != nil:
		res := Result{Value: true}
		for _, child := range n.All {
			cr := child.Evaluate(fields)
			res.Warnings = append(res.Warnings, cr.Warnings...)
			if !cr.Value {
				res.Value = false
			}
		}
		return res

	case n.Any != nil:
		res := Result{Value: false}
		for _, child := range n.Any {
			cr := child.Evaluate(fields)
			res.Warnings = append(res.Warnings, cr.Warnings...)
			if cr.Value {
				res.Value = true
			}
		}
		return res
	}

	// Structurally invalid node; Validate rejects these before storage.
	return Result{Value: false}
}

func evalCompare(c *Compare, fields map[string]any) Result {
	actual, ok := fields[c.Field]
	if !ok || actual == nil {
		return Result{
			Value:    false,
			Warnings: []string{fmt.Sprintf("condition references missing field %q", c.Field)},
		}
	}

	switch c.Op {
	case OpEquals:
		return Result{Value: looseEqual(actual, c.Value)}
	case OpNotEquals:
		return Result{Value: !looseEqual(actual, c.Value)}
	case OpGreaterThan:
		v, ok := compareOrdered(actual, c.Value)
		return Result{Value: ok && v > 0}
	case OpLessThan:
		v, ok := compareOrdered(actual, c.Value)
		return Result{Value: ok && v < 0}
	case OpIn:
		return Result{Value: containsValue(c.Value, actual)}
	case OpContains:
		return Result{Value: containsValue(actual, c.Value)}
	}

	return Result{Value: false}
}

// looseEqual compares values with numeric coercion, so a JSON-decoded float64
// matches an int supplied by the caller.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered returns the sign of a-b for numbers, or a lexical comparison
// for strings. The second return is false when the two values are not ordered
// comparables.
func compareOrdered(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af > bf:
				return 1, true
			case af < bf:
				return -1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// containsValue handles both variants: a haystack string containing a needle
// substring, and a haystack slice containing a needle element.
func containsValue(haystack, needle any) bool {
	if hs, ok := haystack.(string); ok {
		if ns, ok := needle.(string); ok {
			return strings.Contains(hs, ns)
		}
		return false
	}

	rv := reflect.ValueOf(haystack)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if looseEqual(rv.Index(i).Interface(), needle) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
