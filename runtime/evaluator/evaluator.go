// Package evaluator implements the restricted expression language used by
// conditional edges and router branches.  Expressions are parsed with Go's
// own parser; identifiers and selector chains resolve against a variable map,
// and only comparison, boolean and basic arithmetic operators are allowed.
package evaluator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"
)

// Evaluate parses and evaluates the expression against the supplied
// variables.  Single quotes are accepted as string delimiters.
func Evaluate(expr string, vars map[string]interface{}) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	node, err := parser.ParseExpr(normalizeQuotes(expr))
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression %q: %w", expr, err)
	}
	return eval(node, vars)
}

// EvaluateBool evaluates the expression and coerces the result to a boolean.
// Non-empty strings, non-zero numbers and non-nil values are truthy.
func EvaluateBool(expr string, vars map[string]interface{}) (bool, error) {
	value, err := Evaluate(expr, vars)
	if err != nil {
		return false, err
	}
	return Truthy(value), nil
}

// Truthy reports whether a value counts as true under the expression
// language's coercion rules.
func Truthy(value interface{}) bool {
	switch actual := value.(type) {
	case nil:
		return false
	case bool:
		return actual
	case string:
		return actual != ""
	case int:
		return actual != 0
	case int64:
		return actual != 0
	case float64:
		return actual != 0
	default:
		return true
	}
}

// normalizeQuotes rewrites single-quoted literals to double-quoted ones so
// that 'label' parses as a string rather than an invalid char literal.
func normalizeQuotes(expr string) string {
	var out strings.Builder
	inDouble := false
	for _, r := range expr {
		switch r {
		case '"':
			inDouble = !inDouble
			out.WriteRune(r)
		case '\'':
			if inDouble {
				out.WriteRune(r)
			} else {
				out.WriteRune('"')
			}
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func eval(node ast.Expr, vars map[string]interface{}) (interface{}, error) {
	switch actual := node.(type) {
	case *ast.ParenExpr:
		return eval(actual.X, vars)
	case *ast.BasicLit:
		return evalLiteral(actual)
	case *ast.Ident:
		return evalIdent(actual, vars)
	case *ast.SelectorExpr:
		return evalSelector(actual, vars)
	case *ast.IndexExpr:
		return evalIndex(actual, vars)
	case *ast.UnaryExpr:
		return evalUnary(actual, vars)
	case *ast.BinaryExpr:
		return evalBinary(actual, vars)
	default:
		return nil, fmt.Errorf("unsupported expression construct %T", node)
	}
}

func evalLiteral(lit *ast.BasicLit) (interface{}, error) {
	switch lit.Kind {
	case token.INT:
		value, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return nil, err
		}
		return float64(value), nil
	case token.FLOAT:
		return strconv.ParseFloat(lit.Value, 64)
	case token.STRING:
		return strconv.Unquote(lit.Value)
	default:
		return nil, fmt.Errorf("unsupported literal %s", lit.Value)
	}
}

func evalIdent(ident *ast.Ident, vars map[string]interface{}) (interface{}, error) {
	switch ident.Name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil", "null":
		return nil, nil
	}
	value, ok := vars[ident.Name]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func evalSelector(sel *ast.SelectorExpr, vars map[string]interface{}) (interface{}, error) {
	parent, err := eval(sel.X, vars)
	if err != nil {
		return nil, err
	}
	return member(parent, sel.Sel.Name)
}

func evalIndex(expr *ast.IndexExpr, vars map[string]interface{}) (interface{}, error) {
	parent, err := eval(expr.X, vars)
	if err != nil {
		return nil, err
	}
	index, err := eval(expr.Index, vars)
	if err != nil {
		return nil, err
	}
	switch holder := parent.(type) {
	case map[string]interface{}:
		key, ok := index.(string)
		if !ok {
			return nil, fmt.Errorf("map index must be a string, got %T", index)
		}
		return holder[key], nil
	case []interface{}:
		at, ok := asFloat(index)
		if !ok {
			return nil, fmt.Errorf("slice index must be numeric, got %T", index)
		}
		i := int(at)
		if i < 0 || i >= len(holder) {
			return nil, nil
		}
		return holder[i], nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot index value of type %T", parent)
	}
}

func member(parent interface{}, name string) (interface{}, error) {
	switch holder := parent.(type) {
	case map[string]interface{}:
		return holder[name], nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot access field %q on value of type %T", name, parent)
	}
}

func evalUnary(expr *ast.UnaryExpr, vars map[string]interface{}) (interface{}, error) {
	operand, err := eval(expr.X, vars)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case token.NOT:
		return !Truthy(operand), nil
	case token.SUB:
		value, ok := asFloat(operand)
		if !ok {
			return nil, fmt.Errorf("cannot negate value of type %T", operand)
		}
		return -value, nil
	default:
		return nil, fmt.Errorf("unsupported unary operator %s", expr.Op)
	}
}

func evalBinary(expr *ast.BinaryExpr, vars map[string]interface{}) (interface{}, error) {
	left, err := eval(expr.X, vars)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case token.LAND:
		if !Truthy(left) {
			return false, nil
		}
		right, err := eval(expr.Y, vars)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	case token.LOR:
		if Truthy(left) {
			return true, nil
		}
		right, err := eval(expr.Y, vars)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}
	right, err := eval(expr.Y, vars)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case token.EQL:
		return equal(left, right), nil
	case token.NEQ:
		return !equal(left, right), nil
	case token.LSS, token.LEQ, token.GTR, token.GEQ:
		return compare(expr.Op, left, right)
	case token.ADD, token.SUB, token.MUL, token.QUO, token.REM:
		return arithmetic(expr.Op, left, right)
	default:
		return nil, fmt.Errorf("unsupported operator %s", expr.Op)
	}
}

func equal(left, right interface{}) bool {
	if lf, ok := asFloat(left); ok {
		if rf, ok := asFloat(right); ok {
			return lf == rf
		}
	}
	if left == nil || right == nil {
		return left == right
	}
	// maps and slices are legal memory values; == would panic on them
	if !reflect.TypeOf(left).Comparable() || !reflect.TypeOf(right).Comparable() {
		return reflect.DeepEqual(left, right)
	}
	return left == right
}

func compare(op token.Token, left, right interface{}) (interface{}, error) {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case token.LSS:
				return ls < rs, nil
			case token.LEQ:
				return ls <= rs, nil
			case token.GTR:
				return ls > rs, nil
			case token.GEQ:
				return ls >= rs, nil
			}
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot compare %T with %T", left, right)
	}
	switch op {
	case token.LSS:
		return lf < rf, nil
	case token.LEQ:
		return lf <= rf, nil
	case token.GTR:
		return lf > rf, nil
	case token.GEQ:
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("unsupported comparison %s", op)
}

func arithmetic(op token.Token, left, right interface{}) (interface{}, error) {
	if op == token.ADD {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", op, left, right)
	}
	switch op {
	case token.ADD:
		return lf + rf, nil
	case token.SUB:
		return lf - rf, nil
	case token.MUL:
		return lf * rf, nil
	case token.QUO:
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case token.REM:
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, fmt.Errorf("unsupported arithmetic %s", op)
}

func asFloat(value interface{}) (float64, bool) {
	switch actual := value.(type) {
	case int:
		return float64(actual), true
	case int32:
		return float64(actual), true
	case int64:
		return float64(actual), true
	case uint:
		return float64(actual), true
	case uint64:
		return float64(actual), true
	case float32:
		return float64(actual), true
	case float64:
		return actual, true
	default:
		return 0, false
	}
}
