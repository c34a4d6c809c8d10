package condition

import (
	"fmt"
	"strings"
)

// Env resolves field paths during evaluation.
type Env interface {
	Resolve(path []string) (interface{}, bool)
}

// Evaluate runs expr against env.
func Evaluate(expr Expr, env Env) (bool, error) {
	switch e := expr.(type) {
	case *LogicalExpr:
		left, err := Evaluate(e.Left, env)
		if err != nil {
			return false, err
		}
		if e.Op == "AND" && !left {
			return false, nil
		}
		if e.Op == "OR" && left {
			return true, nil
		}
		return Evaluate(e.Right, env)
	case *NotExpr:
		v, err := Evaluate(e.Expr, env)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *ComparisonExpr:
		left, err := operandValue(e.Left, env)
		if err != nil {
			return false, err
		}
		right, err := operandValue(e.Right, env)
		if err != nil {
			return false, err
		}
		return compare(e.Op, left, right)
	}
	return false, fmt.Errorf("unknown expression %T", expr)
}

func operandValue(op Operand, env Env) (interface{}, error) {
	switch o := op.(type) {
	case *Literal:
		return o.Value, nil
	case *Field:
		v, ok := env.Resolve(o.Path)
		if !ok {
			return nil, fmt.Errorf("field %q not found", strings.Join(o.Path, "."))
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown operand %T", op)
}

// Fields lists the distinct field paths referenced by expr, in first-seen order.
func Fields(expr Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Expr)
	add := func(op Operand) {
		if f, ok := op.(*Field); ok {
			p := strings.Join(f.Path, ".")
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	walk = func(e Expr) {
		switch x := e.(type) {
		case *LogicalExpr:
			walk(x.Left)
			walk(x.Right)
		case *NotExpr:
			walk(x.Expr)
		case *ComparisonExpr:
			add(x.Left)
			add(x.Right)
		}
	}
	walk(expr)
	return out
}
