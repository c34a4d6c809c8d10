package condition

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNeq      Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

func (op Operator) valid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpMatches:
		return true
	}
	return false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compare(op Operator, left, right interface{}) (bool, error) {
	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	case OpGt, OpGte, OpLt, OpLte:
		return ordered(op, left, right)
	case OpContains:
		return contains(left, right)
	case OpMatches:
		return matches(left, right)
	}
	return false, fmt.Errorf("unknown operator %s", op)
}

// equal compares numbers by value and everything else by its printed form.
func equal(left, right interface{}) bool {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		return math.Abs(lf-rf) < 1e-9
	}
	if lb, ok := left.(bool); ok {
		rb, ok := right.(bool)
		return ok && lb == rb
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func ordered(op Operator, left, right interface{}) (bool, error) {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case OpGt:
		return lf > rf, nil
	case OpGte:
		return lf >= rf, nil
	case OpLt:
		return lf < rf, nil
	default:
		return lf <= rf, nil
	}
}

// contains is substring match on strings, membership on lists, and key
// presence on records. List membership is what multi-select answers need.
func contains(left, right interface{}) (bool, error) {
	needle := fmt.Sprintf("%v", right)
	switch l := left.(type) {
	case string:
		return strings.Contains(l, needle), nil
	case []string:
		for _, item := range l {
			if item == needle {
				return true, nil
			}
		}
		return false, nil
	case []interface{}:
		for _, item := range l {
			if equal(item, right) {
				return true, nil
			}
		}
		return false, nil
	case map[string]string:
		_, ok := l[needle]
		return ok, nil
	}
	return false, fmt.Errorf("contains: unsupported left operand %T", left)
}

var patternCache sync.Map // pattern -> *regexp.Regexp

func matches(left, right interface{}) (bool, error) {
	s, ok := left.(string)
	if !ok {
		return false, fmt.Errorf("matches: left operand must be a string, got %T", left)
	}
	pattern, ok := right.(string)
	if !ok {
		return false, fmt.Errorf("matches: pattern must be a string, got %T", right)
	}
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(s), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("matches: invalid regex %q: %w", pattern, err)
	}
	patternCache.Store(pattern, re)
	return re.MatchString(s), nil
}
