// Package evaluator evaluates step conditions and transition guards. An
// expression is parsed with go/parser and interpreted against run state, so
// conditions stay declarative: comparisons, boolean logic, negation and len().
package evaluator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/relforge/tagship/runtime/expander"
)

// Evaluate parses expr and evaluates it against state, returning the result
// as a boolean. Non-boolean results follow truthiness: non-empty strings,
// non-zero numbers and non-nil values are true.
func Evaluate(expr string, state map[string]interface{}) (bool, error) {
	value, err := Value(expr, state)
	if err != nil {
		return false, err
	}
	return isTruthy(value), nil
}

// Value evaluates expr against state and returns the raw result.
func Value(expr string, state map[string]interface{}) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	normalized, err := normalize(expr, state)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.ParseExpr(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", expr, err)
	}
	return eval(parsed, state)
}

// normalize expands $refs into literals and rewrites single quoted strings,
// which YAML authors tend to use, into Go string literals.
func normalize(expr string, state map[string]interface{}) (string, error) {
	var b strings.Builder
	inSingle := false
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == '\'':
			b.WriteByte('"')
			inSingle = !inSingle
			i++
		case c == '$' && !inSingle:
			path, width := referenceWidth(expr[i:])
			if width == 0 {
				b.WriteByte(c)
				i++
				continue
			}
			value, found := expander.Lookup(path, state)
			if !found {
				value = nil
			}
			b.WriteString(literal(value))
			i += width
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func referenceWidth(text string) (string, int) {
	if len(text) < 2 || text[0] != '$' {
		return "", 0
	}
	if text[1] == '{' {
		end := strings.IndexByte(text, '}')
		if end < 0 {
			return "", 0
		}
		return text[2:end], end + 1
	}
	end := 1
	for end < len(text) && isPathByte(text[end]) {
		end++
	}
	if end == 1 {
		return "", 0
	}
	return text[1:end], end
}

func isPathByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.':
		return true
	}
	return false
}

// literal renders a state value as a Go expression literal.
func literal(value interface{}) string {
	switch actual := value.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(actual)
	case bool:
		return strconv.FormatBool(actual)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", actual)
	case float32, float64:
		return fmt.Sprintf("%v", actual)
	default:
		return strconv.Quote(fmt.Sprintf("%v", actual))
	}
}

func eval(node ast.Expr, state map[string]interface{}) (interface{}, error) {
	switch actual := node.(type) {
	case *ast.ParenExpr:
		return eval(actual.X, state)
	case *ast.BasicLit:
		return basicLit(actual)
	case *ast.Ident:
		return identValue(actual.Name, state)
	case *ast.SelectorExpr:
		path, err := selectorPath(actual)
		if err != nil {
			return nil, err
		}
		value, _ := expander.Lookup(path, state)
		return value, nil
	case *ast.IndexExpr:
		return indexValue(actual, state)
	case *ast.UnaryExpr:
		return unary(actual, state)
	case *ast.BinaryExpr:
		return binary(actual, state)
	case *ast.CallExpr:
		return call(actual, state)
	}
	return nil, fmt.Errorf("unsupported expression: %T", node)
}

func basicLit(lit *ast.BasicLit) (interface{}, error) {
	switch lit.Kind {
	case token.INT:
		return strconv.Atoi(lit.Value)
	case token.FLOAT:
		return strconv.ParseFloat(lit.Value, 64)
	case token.STRING, token.CHAR:
		return strconv.Unquote(lit.Value)
	}
	return nil, fmt.Errorf("unsupported literal: %s", lit.Value)
}

func identValue(name string, state map[string]interface{}) (interface{}, error) {
	switch name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil":
		return nil, nil
	}
	value, _ := expander.Lookup(name, state)
	return value, nil
}

func selectorPath(node ast.Expr) (string, error) {
	switch actual := node.(type) {
	case *ast.Ident:
		return actual.Name, nil
	case *ast.SelectorExpr:
		prefix, err := selectorPath(actual.X)
		if err != nil {
			return "", err
		}
		return prefix + "." + actual.Sel.Name, nil
	}
	return "", fmt.Errorf("unsupported selector: %T", node)
}

func indexValue(node *ast.IndexExpr, state map[string]interface{}) (interface{}, error) {
	holder, err := eval(node.X, state)
	if err != nil {
		return nil, err
	}
	index, err := eval(node.Index, state)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(holder)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := asInt(index)
		if !ok || i < 0 || i >= rv.Len() {
			return nil, nil
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		value := rv.MapIndex(reflect.ValueOf(index))
		if !value.IsValid() {
			return nil, nil
		}
		return value.Interface(), nil
	}
	return nil, nil
}

func unary(node *ast.UnaryExpr, state map[string]interface{}) (interface{}, error) {
	operand, err := eval(node.X, state)
	if err != nil {
		return nil, err
	}
	switch node.Op {
	case token.NOT:
		return !isTruthy(operand), nil
	case token.SUB:
		if f, ok := asFloat(operand); ok {
			if i, isInt := asInt(operand); isInt {
				return -i, nil
			}
			return -f, nil
		}
	}
	return nil, fmt.Errorf("unsupported unary operator: %s", node.Op)
}

func binary(node *ast.BinaryExpr, state map[string]interface{}) (interface{}, error) {
	switch node.Op {
	case token.LAND:
		left, err := eval(node.X, state)
		if err != nil {
			return nil, err
		}
		if !isTruthy(left) {
			return false, nil
		}
		right, err := eval(node.Y, state)
		if err != nil {
			return nil, err
		}
		return isTruthy(right), nil
	case token.LOR:
		left, err := eval(node.X, state)
		if err != nil {
			return nil, err
		}
		if isTruthy(left) {
			return true, nil
		}
		right, err := eval(node.Y, state)
		if err != nil {
			return nil, err
		}
		return isTruthy(right), nil
	}

	left, err := eval(node.X, state)
	if err != nil {
		return nil, err
	}
	right, err := eval(node.Y, state)
	if err != nil {
		return nil, err
	}
	switch node.Op {
	case token.EQL:
		return equals(left, right), nil
	case token.NEQ:
		return !equals(left, right), nil
	case token.LSS, token.LEQ, token.GTR, token.GEQ:
		return compare(left, right, node.Op)
	case token.ADD:
		if ls, ok := left.(string); ok {
			return ls + fmt.Sprintf("%v", right), nil
		}
		lf, lok := asFloat(left)
		rf, rok := asFloat(right)
		if lok && rok {
			li, lInt := asInt(left)
			ri, rInt := asInt(right)
			if lInt && rInt {
				return li + ri, nil
			}
			return lf + rf, nil
		}
	}
	return nil, fmt.Errorf("unsupported operator: %s", node.Op)
}

func call(node *ast.CallExpr, state map[string]interface{}) (interface{}, error) {
	ident, ok := node.Fun.(*ast.Ident)
	if !ok || ident.Name != "len" {
		return nil, fmt.Errorf("unsupported function call")
	}
	if len(node.Args) != 1 {
		return nil, fmt.Errorf("len expects one argument")
	}
	operand, err := eval(node.Args[0], state)
	if err != nil {
		return nil, err
	}
	if operand == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(operand)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return 0, nil
}

func equals(left, right interface{}) bool {
	if left == nil || right == nil {
		return left == right
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		return lf == rf
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func compare(left, right interface{}, op token.Token) (interface{}, error) {
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
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
	}
	ls := fmt.Sprintf("%v", left)
	rs := fmt.Sprintf("%v", right)
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
	return nil, fmt.Errorf("unsupported comparison: %s", op)
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
	case string:
		f, err := strconv.ParseFloat(actual, 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(value interface{}) (int, bool) {
	switch actual := value.(type) {
	case int:
		return actual, true
	case int32:
		return int(actual), true
	case int64:
		return int(actual), true
	case uint:
		return int(actual), true
	case uint64:
		return int(actual), true
	case float64:
		if actual == float64(int(actual)) {
			return int(actual), true
		}
	case string:
		i, err := strconv.Atoi(actual)
		return i, err == nil
	}
	return 0, false
}

func isTruthy(value interface{}) bool {
	switch actual := value.(type) {
	case nil:
		return false
	case bool:
		return actual
	case string:
		return actual != "" && actual != "false"
	}
	if f, ok := asFloat(value); ok {
		return f != 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
