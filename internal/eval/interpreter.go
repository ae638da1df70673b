package eval

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
)

// ErrDivideByZero is returned when integer division or modulo by zero is
// folded.
var ErrDivideByZero = errors.New("integer divide by zero")

// Func is a host function callable from expressions. For method-style calls
// the receiver is passed as the first argument.
type Func func(args []ir.Value) (ir.Value, error)

// Interpreter is the default Host. It computes operators over ir values,
// reads captured variables through their accessors, and dispatches calls to
// a function table.
type Interpreter struct {
	funcs map[string]Func
}

// NewInterpreter returns an interpreter with the builtin functions plus
// extra, which override builtins of the same name.
func NewInterpreter(extra ...map[string]Func) *Interpreter {
	funcs := make(map[string]Func, len(builtins))
	for name, fn := range builtins {
		funcs[name] = fn
	}
	for _, m := range extra {
		for name, fn := range m {
			funcs[name] = fn
		}
	}
	return &Interpreter{funcs: funcs}
}

// CanEvaluate implements Host.
func (in *Interpreter) CanEvaluate(n expr.Expr) bool {
	switch n := n.(type) {
	case *expr.Literal, *expr.Member, *expr.Binary, *expr.Unary,
		*expr.Conditional, *expr.New:
		return true
	case *expr.Captured:
		return n.Value != nil
	case *expr.Call:
		_, ok := in.funcs[n.Func]
		return ok
	default:
		return false
	}
}

// Evaluate implements Host. Errors returned by captured-variable accessors
// and host functions are passed through unchanged.
func (in *Interpreter) Evaluate(e expr.Expr) (ir.Value, error) {
	switch n := e.(type) {
	case *expr.Literal:
		return n.Value, nil

	case *expr.Captured:
		if n.Value == nil {
			return nil, fmt.Errorf("captured %s has no host value", n.Name)
		}
		raw, err := n.Value()
		if err != nil {
			return nil, err
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("captured %s: %w", n.Name, err)
		}
		return v, nil

	case *expr.Member:
		target, err := in.Evaluate(n.Target)
		if err != nil {
			return nil, err
		}
		return member(target, n.Name)

	case *expr.Unary:
		v, err := in.Evaluate(n.Operand)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, v)

	case *expr.Binary:
		return in.binary(n)

	case *expr.Conditional:
		test, err := in.Evaluate(n.Test)
		if err != nil {
			return nil, err
		}
		b, ok := test.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("conditional test is %s, not bool", test.TypeName())
		}
		if b {
			return in.Evaluate(n.Then)
		}
		return in.Evaluate(n.Else)

	case *expr.New:
		obj := make(ir.Object, len(n.Fields))
		for _, f := range n.Fields {
			v, err := in.Evaluate(f.Value)
			if err != nil {
				return nil, err
			}
			obj[f.Name] = v
		}
		return obj, nil

	case *expr.Call:
		fn, ok := in.funcs[n.Func]
		if !ok {
			return nil, fmt.Errorf("unknown function %s", n.Func)
		}
		var args []ir.Value
		if n.Target != nil {
			v, err := in.Evaluate(n.Target)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		for _, a := range n.Args {
			v, err := in.Evaluate(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return fn(args)

	default:
		return nil, fmt.Errorf("cannot evaluate %s expression", e.Kind())
	}
}

func member(target ir.Value, name string) (ir.Value, error) {
	switch t := target.(type) {
	case ir.Object:
		v, ok := t[name]
		if !ok {
			return nil, fmt.Errorf("object has no field %q", name)
		}
		return v, nil
	case ir.String:
		if name == "Length" {
			return ir.Int(len([]rune(string(t)))), nil
		}
	case ir.Array:
		if name == "Length" || name == "Count" {
			return ir.Int(len(t)), nil
		}
	}
	return nil, fmt.Errorf("%s has no member %q", target.TypeName(), name)
}

func unary(op expr.UnaryOp, v ir.Value) (ir.Value, error) {
	switch op {
	case expr.OpNot:
		b, ok := v.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("operator ! on %s", v.TypeName())
		}
		return !b, nil
	case expr.OpNeg:
		switch n := v.(type) {
		case ir.Int:
			return -n, nil
		case ir.Float:
			return -n, nil
		}
		return nil, fmt.Errorf("operator - on %s", v.TypeName())
	}
	return nil, fmt.Errorf("unknown unary operator %s", op)
}

func (in *Interpreter) binary(n *expr.Binary) (ir.Value, error) {
	left, err := in.Evaluate(n.Left)
	if err != nil {
		return nil, err
	}

	// Short-circuit forms evaluate the right operand lazily.
	switch n.Op {
	case expr.OpAnd, expr.OpOr:
		lb, ok := left.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("operator %s on %s", n.Op, left.TypeName())
		}
		if (n.Op == expr.OpAnd && !bool(lb)) || (n.Op == expr.OpOr && bool(lb)) {
			return lb, nil
		}
		right, err := in.Evaluate(n.Right)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("operator %s on %s", n.Op, right.TypeName())
		}
		return rb, nil
	case expr.OpCoalesce:
		if _, isNull := left.(ir.Null); !isNull {
			return left, nil
		}
		return in.Evaluate(n.Right)
	}

	right, err := in.Evaluate(n.Right)
	if err != nil {
		return nil, err
	}
	if n.Op.IsComparison() {
		return compare(n.Op, left, right)
	}
	return arithmetic(n.Op, left, right)
}

func arithmetic(op expr.BinaryOp, l, r ir.Value) (ir.Value, error) {
	if ls, ok := l.(ir.String); ok && op == expr.OpAdd {
		if rs, ok := r.(ir.String); ok {
			return ls + rs, nil
		}
	}

	li, lInt := l.(ir.Int)
	ri, rInt := r.(ir.Int)
	if lInt && rInt {
		switch op {
		case expr.OpAdd:
			return li + ri, nil
		case expr.OpSub:
			return li - ri, nil
		case expr.OpMul:
			return li * ri, nil
		case expr.OpDiv:
			if ri == 0 {
				return nil, ErrDivideByZero
			}
			return li / ri, nil
		case expr.OpMod:
			if ri == 0 {
				return nil, ErrDivideByZero
			}
			return li % ri, nil
		}
	}

	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %s on %s and %s", op, l.TypeName(), r.TypeName())
	}
	switch op {
	case expr.OpAdd:
		return ir.Float(lf + rf), nil
	case expr.OpSub:
		return ir.Float(lf - rf), nil
	case expr.OpMul:
		return ir.Float(lf * rf), nil
	case expr.OpDiv:
		return ir.Float(lf / rf), nil
	case expr.OpMod:
		return ir.Float(math.Mod(lf, rf)), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %s", op)
}

func compare(op expr.BinaryOp, l, r ir.Value) (ir.Value, error) {
	_, lNull := l.(ir.Null)
	_, rNull := r.(ir.Null)
	if lNull || rNull {
		switch op {
		case expr.OpEq:
			return ir.Bool(lNull && rNull), nil
		case expr.OpNe:
			return ir.Bool(lNull != rNull), nil
		}
		return ir.Bool(false), nil
	}

	var c int
	switch lv := l.(type) {
	case ir.String:
		rv, ok := r.(ir.String)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %s", r.TypeName())
		}
		switch {
		case lv < rv:
			c = -1
		case lv > rv:
			c = 1
		}
	case ir.Bool:
		rv, ok := r.(ir.Bool)
		if !ok || (op != expr.OpEq && op != expr.OpNe) {
			return nil, fmt.Errorf("operator %s on bool and %s", op, r.TypeName())
		}
		if lv != rv {
			c = 1
		}
	default:
		lf, lok := toFloat(l)
		rf, rok := toFloat(r)
		if !lok || !rok {
			return nil, fmt.Errorf("cannot compare %s with %s", l.TypeName(), r.TypeName())
		}
		switch {
		case lf < rf:
			c = -1
		case lf > rf:
			c = 1
		}
	}

	switch op {
	case expr.OpEq:
		return ir.Bool(c == 0), nil
	case expr.OpNe:
		return ir.Bool(c != 0), nil
	case expr.OpLt:
		return ir.Bool(c < 0), nil
	case expr.OpLe:
		return ir.Bool(c <= 0), nil
	case expr.OpGt:
		return ir.Bool(c > 0), nil
	case expr.OpGe:
		return ir.Bool(c >= 0), nil
	}
	return nil, fmt.Errorf("unknown comparison %s", op)
}

func toFloat(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case ir.Int:
		return float64(n), true
	case ir.Float:
		return float64(n), true
	}
	return 0, false
}
