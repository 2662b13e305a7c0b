package evaluator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var singleQuoted = regexp.MustCompile(`'([^']*)'`)

// Evaluator evaluates sequence flow guards such as ${number <= 1}.
type Evaluator struct{}

// New creates a new expression evaluator
func New() *Evaluator {
	return &Evaluator{}
}

// Condition evaluates expr and requires a boolean result.
func (e *Evaluator) Condition(expr string, variables map[string]interface{}) (bool, error) {
	value, err := e.Evaluate(expr, variables)
	if err != nil {
		return false, err
	}
	result, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q: expected bool, but had %T", expr, value)
	}
	return result, nil
}

// Evaluate evaluates an expression; a ${...} wrapper is optional.
func (e *Evaluator) Evaluate(expr string, variables map[string]interface{}) (interface{}, error) {
	source := strings.TrimSpace(expr)
	if strings.HasPrefix(source, "${") && strings.HasSuffix(source, "}") {
		source = source[2 : len(source)-1]
	}
	source = singleQuoted.ReplaceAllString(source, `"$1"`)
	node, err := parser.ParseExpr(source)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	value, err := evaluate(node, variables)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", expr, err)
	}
	return value, nil
}

func evaluate(node ast.Expr, variables map[string]interface{}) (interface{}, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		return literal(n)
	case *ast.Ident:
		switch n.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "nil", "null":
			return nil, nil
		}
		return variables[n.Name], nil
	case *ast.ParenExpr:
		return evaluate(n.X, variables)
	case *ast.SelectorExpr:
		x, err := evaluate(n.X, variables)
		if err != nil {
			return nil, err
		}
		return property(x, n.Sel.Name), nil
	case *ast.IndexExpr:
		x, err := evaluate(n.X, variables)
		if err != nil {
			return nil, err
		}
		index, err := evaluate(n.Index, variables)
		if err != nil {
			return nil, err
		}
		return element(x, index), nil
	case *ast.CallExpr:
		return call(n, variables)
	case *ast.UnaryExpr:
		x, err := evaluate(n.X, variables)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.NOT:
			b, ok := x.(bool)
			if !ok {
				return nil, fmt.Errorf("operator ! not defined on %T", x)
			}
			return !b, nil
		case token.SUB:
			f, ok := number(x)
			if !ok {
				return nil, fmt.Errorf("operator - not defined on %T", x)
			}
			return normalize(-f), nil
		}
		return nil, fmt.Errorf("unsupported unary operator %v", n.Op)
	case *ast.BinaryExpr:
		return binary(n, variables)
	}
	return nil, fmt.Errorf("unsupported expression %T", node)
}

func binary(n *ast.BinaryExpr, variables map[string]interface{}) (interface{}, error) {
	x, err := evaluate(n.X, variables)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.LAND, token.LOR:
		left, ok := x.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %v not defined on %T", n.Op, x)
		}
		if (n.Op == token.LAND && !left) || (n.Op == token.LOR && left) {
			return left, nil
		}
		y, err := evaluate(n.Y, variables)
		if err != nil {
			return nil, err
		}
		right, ok := y.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %v not defined on %T", n.Op, y)
		}
		return right, nil
	}
	y, err := evaluate(n.Y, variables)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.EQL:
		return equal(x, y), nil
	case token.NEQ:
		return !equal(x, y), nil
	case token.ADD:
		if xs, ok := x.(string); ok {
			return xs + stringify(y), nil
		}
		if ys, ok := y.(string); ok {
			return stringify(x) + ys, nil
		}
	}
	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok {
			return compareStrings(n.Op, xs, ys)
		}
	}
	xf, okX := number(x)
	yf, okY := number(y)
	if !okX || !okY {
		return nil, fmt.Errorf("operator %v not defined on %T and %T", n.Op, x, y)
	}
	switch n.Op {
	case token.ADD:
		return normalize(xf + yf), nil
	case token.SUB:
		return normalize(xf - yf), nil
	case token.MUL:
		return normalize(xf * yf), nil
	case token.QUO:
		if yf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return xf / yf, nil
	case token.REM:
		if int64(yf) == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return normalize(float64(int64(xf) % int64(yf))), nil
	case token.LSS:
		return xf < yf, nil
	case token.GTR:
		return xf > yf, nil
	case token.LEQ:
		return xf <= yf, nil
	case token.GEQ:
		return xf >= yf, nil
	}
	return nil, fmt.Errorf("unsupported operator %v", n.Op)
}

func compareStrings(op token.Token, x, y string) (interface{}, error) {
	switch op {
	case token.LSS:
		return x < y, nil
	case token.GTR:
		return x > y, nil
	case token.LEQ:
		return x <= y, nil
	case token.GEQ:
		return x >= y, nil
	}
	return nil, fmt.Errorf("operator %v not defined on strings", op)
}

func call(n *ast.CallExpr, variables map[string]interface{}) (interface{}, error) {
	name, ok := n.Fun.(*ast.Ident)
	if !ok || len(n.Args) != 1 {
		return nil, fmt.Errorf("unsupported call")
	}
	arg, err := evaluate(n.Args[0], variables)
	if err != nil {
		return nil, err
	}
	switch name.Name {
	case "len":
		if arg == nil {
			return 0, nil
		}
		rv := reflect.ValueOf(arg)
		switch rv.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
			return rv.Len(), nil
		}
		return nil, fmt.Errorf("len not defined on %T", arg)
	case "isNil":
		return isNil(arg), nil
	}
	return nil, fmt.Errorf("unknown function %v", name.Name)
}

func literal(n *ast.BasicLit) (interface{}, error) {
	switch n.Kind {
	case token.INT:
		return strconv.Atoi(n.Value)
	case token.FLOAT:
		return strconv.ParseFloat(n.Value, 64)
	case token.STRING, token.CHAR:
		return strconv.Unquote(n.Value)
	}
	return nil, fmt.Errorf("unsupported literal %v", n.Value)
}

// number converts any numeric value (including JSON float64) to float64.
func number(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

// normalize keeps integral results as int.
func normalize(f float64) interface{} {
	if f == float64(int64(f)) {
		return int(f)
	}
	return f
}

func equal(x, y interface{}) bool {
	if xf, ok := number(x); ok {
		if yf, ok := number(y); ok {
			return xf == yf
		}
	}
	if x == nil || y == nil {
		return isNil(x) && isNil(y)
	}
	return reflect.DeepEqual(x, y)
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if f, ok := number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// property navigates maps and exported struct fields.
func property(obj interface{}, name string) interface{} {
	if obj == nil {
		return nil
	}
	if m, ok := obj.(map[string]interface{}); ok {
		return m[name]
	}
	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}
	field := val.FieldByNameFunc(func(candidate string) bool { return strings.EqualFold(candidate, name) })
	if !field.IsValid() || !field.CanInterface() {
		return nil
	}
	return field.Interface()
}

func element(obj interface{}, index interface{}) interface{} {
	if obj == nil {
		return nil
	}
	if key, ok := index.(string); ok {
		return property(obj, key)
	}
	i, ok := number(index)
	if !ok {
		return nil
	}
	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Array && val.Kind() != reflect.Slice {
		return nil
	}
	if int(i) < 0 || int(i) >= val.Len() {
		return nil
	}
	return val.Index(int(i)).Interface()
}
