package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/querymodel"
)

type fragKind int

const (
	fragScalar  fragKind = iota // a plain SQL value
	fragJSON                    // JSON text
	fragBoolean                 // a SQL condition
)

// fragment is a compiled expression.
type fragment struct {
	sql  string
	kind fragKind

	// jsonAlt, if set, is the JSON text form of a scalar fragment.
	jsonAlt string
}

func (f fragment) asScalar() string {
	if f.kind == fragJSON {
		return fmt.Sprintf("json_extract(%s, '$')", f.sql)
	}
	return f.sql
}

func (f fragment) asJSON() string {
	switch {
	case f.kind == fragJSON:
		return f.sql
	case f.jsonAlt != "":
		return f.jsonAlt
	case f.kind == fragBoolean:
		return fmt.Sprintf("CASE WHEN %s THEN %s WHEN NOT %s THEN %s END", f.sql, jsonTrue, f.sql, jsonFalse)
	}
	return fmt.Sprintf("json_quote(%s)", f.sql)
}

// comparable renders two operands so they compare as values: JSON texts
// when both are JSON, SQL values otherwise.
func comparable(l, r fragment) (string, string) {
	if l.kind == fragJSON && r.kind == fragJSON {
		return l.sql, r.sql
	}
	return l.asScalar(), r.asScalar()
}

var comparisonSQL = map[expr.BinaryOp]string{
	expr.OpEq: "IS",
	expr.OpNe: "IS NOT",
	expr.OpLt: "<",
	expr.OpLe: "<=",
	expr.OpGt: ">",
	expr.OpGe: ">=",
}

var arithmeticSQL = map[expr.BinaryOp]string{
	expr.OpAdd: "+",
	expr.OpSub: "-",
	expr.OpMul: "*",
	expr.OpDiv: "/",
	expr.OpMod: "%",
}

// expr compiles an expression in the model's scope.
func (m *modelCompiler) expr(e expr.Expr) (fragment, error) {
	switch n := e.(type) {
	case *expr.Literal:
		return m.literal(n.Value)

	case *expr.SourceRef:
		b, ok := m.sc.lookup(n.Source)
		if !ok {
			return fragment{}, fmt.Errorf("reference to %s is not in scope", n.Source.ItemName())
		}
		return fragment{sql: b.item, kind: fragJSON}, nil

	case *expr.Member:
		return m.member(n)

	case *expr.Binary:
		return m.binary(n)

	case *expr.Unary:
		operand, err := m.expr(n.Operand)
		if err != nil {
			return fragment{}, err
		}
		if n.Op == expr.OpNot {
			return fragment{sql: "(NOT " + operand.asScalar() + ")", kind: fragBoolean}, nil
		}
		return fragment{sql: "(-" + operand.asScalar() + ")"}, nil

	case *expr.Conditional:
		test, err := m.expr(n.Test)
		if err != nil {
			return fragment{}, err
		}
		then, err := m.expr(n.Then)
		if err != nil {
			return fragment{}, err
		}
		els, err := m.expr(n.Else)
		if err != nil {
			return fragment{}, err
		}
		if then.kind == fragScalar && els.kind == fragScalar && then.jsonAlt == "" && els.jsonAlt == "" {
			return fragment{sql: fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", test.asScalar(), then.sql, els.sql)}, nil
		}
		return fragment{
			sql:  fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", test.asScalar(), then.asJSON(), els.asJSON()),
			kind: fragJSON,
		}, nil

	case *expr.New:
		parts := make([]string, 0, 2*len(n.Fields))
		for _, f := range n.Fields {
			v, err := m.expr(f.Value)
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, quoteString(f.Name), v.asJSON())
		}
		return fragment{sql: "json_object(" + strings.Join(parts, ", ") + ")", kind: fragJSON}, nil

	case *expr.Call:
		return m.call(n)

	case *expr.SubQuery:
		return m.subquery(n)

	case *expr.Sequence:
		return fragment{
			sql:  fmt.Sprintf("json((SELECT json_group_array(json(item)) FROM (SELECT item FROM %s ORDER BY id)))", quoteIdent(n.Name)),
			kind: fragJSON,
		}, nil

	case *expr.Captured:
		return fragment{}, fmt.Errorf("captured value %s was not folded to a literal: %w", n.Name, ErrNotPortable)
	}
	return fragment{}, fmt.Errorf("%s expression %s: %w", e.Kind(), expr.String(e), ErrNotPortable)
}

func (m *modelCompiler) literal(v ir.Value) (fragment, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return fragment{sql: "NULL"}, nil
	case ir.Bool:
		if val {
			return fragment{sql: "TRUE", kind: fragBoolean}, nil
		}
		return fragment{sql: "FALSE", kind: fragBoolean}, nil
	case ir.Array, ir.Object:
		text, err := ir.MarshalValue(v)
		if err != nil {
			return fragment{}, err
		}
		return fragment{sql: "json(" + m.st.bind(string(text)) + ")", kind: fragJSON}, nil
	}
	p, err := literalParam(v)
	if err != nil {
		return fragment{}, err
	}
	return fragment{sql: m.st.bind(p)}, nil
}

// member compiles a chain of member accesses into one JSON path lookup.
func (m *modelCompiler) member(n *expr.Member) (fragment, error) {
	path := []string{n.Name}
	target := n.Target
	for {
		inner, ok := target.(*expr.Member)
		if !ok {
			break
		}
		path = append([]string{inner.Name}, path...)
		target = inner.Target
	}
	for _, name := range path {
		if !identifier.MatchString(name) {
			return fragment{}, fmt.Errorf("member %q cannot be used in a JSON path: %w", name, ErrNotPortable)
		}
	}
	base, err := m.expr(target)
	if err != nil {
		return fragment{}, err
	}
	obj := base.asJSON()
	p := quoteString("$." + strings.Join(path, "."))
	return fragment{
		sql:     fmt.Sprintf("json_extract(%s, %s)", obj, p),
		jsonAlt: fmt.Sprintf("json(%s -> %s)", obj, p),
	}, nil
}

func (m *modelCompiler) binary(n *expr.Binary) (fragment, error) {
	l, err := m.expr(n.Left)
	if err != nil {
		return fragment{}, err
	}
	r, err := m.expr(n.Right)
	if err != nil {
		return fragment{}, err
	}

	if op, ok := comparisonSQL[n.Op]; ok {
		ls, rs := comparable(l, r)
		return fragment{sql: fmt.Sprintf("(%s %s %s)", ls, op, rs), kind: fragBoolean}, nil
	}
	switch n.Op {
	case expr.OpAnd:
		return fragment{sql: fmt.Sprintf("(%s AND %s)", l.asScalar(), r.asScalar()), kind: fragBoolean}, nil
	case expr.OpOr:
		return fragment{sql: fmt.Sprintf("(%s OR %s)", l.asScalar(), r.asScalar()), kind: fragBoolean}, nil
	case expr.OpCoalesce:
		if l.kind == fragJSON && r.kind == fragJSON {
			return fragment{sql: fmt.Sprintf("COALESCE(%s, %s)", l.sql, r.sql), kind: fragJSON}, nil
		}
		return fragment{sql: fmt.Sprintf("COALESCE(%s, %s)", l.asScalar(), r.asScalar())}, nil
	case expr.OpAdd:
		if isString(n.Left) || isString(n.Right) {
			return fragment{sql: fmt.Sprintf("(%s || %s)", l.asScalar(), r.asScalar())}, nil
		}
	}
	op, ok := arithmeticSQL[n.Op]
	if !ok {
		return fragment{}, fmt.Errorf("operator %s: %w", n.Op, ErrNotPortable)
	}
	return fragment{sql: fmt.Sprintf("(%s %s %s)", l.asScalar(), op, r.asScalar())}, nil
}

// isString reports whether e is known to produce a string, which makes +
// a concatenation.
func isString(e expr.Expr) bool {
	switch n := e.(type) {
	case *expr.Literal:
		_, ok := n.Value.(ir.String)
		return ok
	case *expr.Member:
		return n.Type == "string"
	case *expr.Call:
		switch n.Func {
		case "ToUpper", "ToLower", "Trim", "Concat":
			return true
		}
	case *expr.Binary:
		return n.Op == expr.OpAdd && (isString(n.Left) || isString(n.Right))
	}
	return false
}

// call compiles the portable host functions. A method-style target is the
// first argument.
func (m *modelCompiler) call(n *expr.Call) (fragment, error) {
	var operands []expr.Expr
	if n.Target != nil {
		operands = append(operands, n.Target)
	}
	operands = append(operands, n.Args...)

	args := make([]string, len(operands))
	for i, o := range operands {
		f, err := m.expr(o)
		if err != nil {
			return fragment{}, err
		}
		args[i] = f.asScalar()
	}
	want := func(k int) error {
		if len(args) != k {
			return fmt.Errorf("%s takes %d operands, got %d", n.Func, k, len(args))
		}
		return nil
	}

	switch n.Func {
	case "ToUpper", "ToLower", "Trim", "Abs":
		if err := want(1); err != nil {
			return fragment{}, err
		}
		fn := map[string]string{"ToUpper": "upper", "ToLower": "lower", "Trim": "trim", "Abs": "abs"}[n.Func]
		return fragment{sql: fmt.Sprintf("%s(%s)", fn, args[0])}, nil
	case "Contains":
		if err := want(2); err != nil {
			return fragment{}, err
		}
		return fragment{sql: fmt.Sprintf("(instr(%s, %s) > 0)", args[0], args[1]), kind: fragBoolean}, nil
	case "StartsWith":
		if err := want(2); err != nil {
			return fragment{}, err
		}
		return fragment{sql: fmt.Sprintf("(substr(%s, 1, length(%s)) = %s)", args[0], args[1], args[1]), kind: fragBoolean}, nil
	case "EndsWith":
		if err := want(2); err != nil {
			return fragment{}, err
		}
		return fragment{
			sql:  fmt.Sprintf("(substr(%s, length(%s) - length(%s) + 1) = %s)", args[0], args[0], args[1], args[1]),
			kind: fragBoolean,
		}, nil
	case "Concat":
		if len(args) == 0 {
			return fragment{sql: "''"}, nil
		}
		return fragment{sql: "(" + strings.Join(args, " || ") + ")"}, nil
	}
	return fragment{}, fmt.Errorf("host function %s: %w", n.Func, ErrNotPortable)
}

// subquery compiles a nested model used as a value. Any and Count become
// EXISTS and COUNT(*); everything else yields JSON text: a single value or
// item, or an array for sequences.
func (m *modelCompiler) subquery(sq *expr.SubQuery) (fragment, error) {
	qm, ok := sq.Model.(*querymodel.QueryModel)
	if !ok {
		return fragment{}, fmt.Errorf("unknown model type %T", sq.Model)
	}
	inner, err := m.st.walk(qm, m.sc)
	if err != nil {
		return fragment{}, err
	}

	if len(inner.ops) == 1 {
		switch op := inner.ops[0].(type) {
		case *querymodel.AnyOp:
			return fragment{sql: "EXISTS (" + inner.rows() + ")", kind: fragBoolean}, nil
		case *querymodel.ValueOp:
			if op.Kind == querymodel.ValueCount || op.Kind == querymodel.ValueLongCount {
				return fragment{sql: "(SELECT COUNT(*) FROM (" + inner.rows() + "))"}, nil
			}
		}
	}

	sql, shape, _, err := inner.finish()
	if err != nil {
		return fragment{}, err
	}
	if shape == ShapeSequence {
		return fragment{sql: fmt.Sprintf("json((SELECT json_group_array(json(item)) FROM (%s)))", sql), kind: fragJSON}, nil
	}
	if shape == ShapeSingle {
		sql = strings.TrimSuffix(sql, "LIMIT 2") + "LIMIT 1"
	}
	return fragment{sql: "json((" + sql + "))", kind: fragJSON}, nil
}
