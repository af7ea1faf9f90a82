package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Comparison operators accepted in rule conditions.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
	OpIn           = "in"
	OpNotIn        = "not in"
	OpContains     = "contains"
	OpStartsWith   = "startsWith"
	OpMatches      = "matches"
)

var operators = map[string]struct{}{
	OpEqual:        {},
	OpNotEqual:     {},
	OpGreater:      {},
	OpLess:         {},
	OpGreaterEqual: {},
	OpLessEqual:    {},
	OpIn:           {},
	OpNotIn:        {},
	OpContains:     {},
	OpStartsWith:   {},
	OpMatches:      {},
}

func knownOperator(op string) bool {
	_, ok := operators[op]
	return ok
}

// EvaluateCondition evaluates a condition tree against the context data.
// AND groups short-circuit on the first false branch and OR groups on the
// first true one. A missing context field resolves to nil and participates
// in comparisons as a non-match rather than raising.
func EvaluateCondition(cond Condition, contextData map[string]any) (bool, error) {
	if len(cond.And) > 0 {
		for _, sub := range cond.And {
			matched, err := EvaluateCondition(sub, contextData)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	}

	if len(cond.Or) > 0 {
		for _, sub := range cond.Or {
			matched, err := EvaluateCondition(sub, contextData)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}

	value := lookupPath(contextData, cond.Field)
	return compare(cond, value)
}

// lookupPath resolves a dotted path ("position.size") through nested
// string-keyed maps. Any missing segment yields nil.
func lookupPath(contextData map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = contextData
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = node[segment]
		if !ok {
			return nil
		}
	}
	return current
}

func compare(cond Condition, value any) (bool, error) {
	switch cond.Operator {
	case OpEqual:
		return looseEqual(value, cond.Value), nil
	case OpNotEqual:
		return !looseEqual(value, cond.Value), nil
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return ordered(cond.Operator, value, cond.Value), nil
	case OpIn:
		return member(value, cond.Value), nil
	case OpNotIn:
		return !member(value, cond.Value), nil
	case OpContains:
		return containsValue(value, cond.Value), nil
	case OpStartsWith:
		haystack, ok1 := value.(string)
		prefix, ok2 := cond.Value.(string)
		return ok1 && ok2 && strings.HasPrefix(haystack, prefix), nil
	case OpMatches:
		return matchPattern(cond, value)
	default:
		return false, &EvaluationError{
			Operator: cond.Operator,
			Field:    cond.Field,
			Reason:   "unknown operator",
		}
	}
}

// looseEqual compares with numeric coercion so that 5 and 5.0 from
// different decoders compare equal.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, okA := toFloat(a); okA {
		if fb, okB := toFloat(b); okB {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// ordered applies a relational operator. Non-numeric operands fall back to
// lexical comparison when both are strings; anything else is a non-match.
func ordered(op string, a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch op {
		case OpGreater:
			return fa > fb
		case OpLess:
			return fa < fb
		case OpGreaterEqual:
			return fa >= fb
		case OpLessEqual:
			return fa <= fb
		}
		return false
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		switch op {
		case OpGreater:
			return sa > sb
		case OpLess:
			return sa < sb
		case OpGreaterEqual:
			return sa >= sb
		case OpLessEqual:
			return sa <= sb
		}
	}
	return false
}

// member reports whether the context value appears in the condition's list
// value.
func member(value, list any) bool {
	items := reflect.ValueOf(list)
	if !items.IsValid() || (items.Kind() != reflect.Slice && items.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < items.Len(); i++ {
		if looseEqual(value, items.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// containsValue handles both string substring checks and list membership,
// depending on the shape of the context value.
func containsValue(value, needle any) bool {
	if haystack, ok := value.(string); ok {
		sub, ok := needle.(string)
		return ok && strings.Contains(haystack, sub)
	}

	items := reflect.ValueOf(value)
	if !items.IsValid() || (items.Kind() != reflect.Slice && items.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < items.Len(); i++ {
		if looseEqual(items.Index(i).Interface(), needle) {
			return true
		}
	}
	return false
}

func matchPattern(cond Condition, value any) (bool, error) {
	pattern, ok := cond.Value.(string)
	if !ok {
		return false, &EvaluationError{
			Operator: cond.Operator,
			Field:    cond.Field,
			Reason:   fmt.Sprintf("pattern must be a string, got %T", cond.Value),
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, &EvaluationError{
			Operator: cond.Operator,
			Field:    cond.Field,
			Reason:   fmt.Sprintf("invalid pattern: %v", err),
		}
	}

	text, ok := value.(string)
	if !ok {
		return false, nil
	}
	return re.MatchString(text), nil
}

// toFloat normalizes the numeric types produced by the YAML and JSON
// decoders and by Go callers into float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
