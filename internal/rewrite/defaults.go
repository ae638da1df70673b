package rewrite

import (
	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
)

var invertedComparison = map[expr.BinaryOp]expr.BinaryOp{
	expr.OpEq: expr.OpNe,
	expr.OpNe: expr.OpEq,
	expr.OpLt: expr.OpGe,
	expr.OpGe: expr.OpLt,
	expr.OpGt: expr.OpLe,
	expr.OpLe: expr.OpGt,
}

// DoubleNegation rewrites !!x to x.
var DoubleNegation = For("double-negation", func(u *expr.Unary) expr.Expr {
	if u.Op != expr.OpNot {
		return u
	}
	if inner, ok := u.Operand.(*expr.Unary); ok && inner.Op == expr.OpNot {
		return inner.Operand
	}
	return u
})

// NegatedComparison rewrites !(a < b) to (a >= b).
var NegatedComparison = For("negated-comparison", func(u *expr.Unary) expr.Expr {
	if u.Op != expr.OpNot {
		return u
	}
	b, ok := u.Operand.(*expr.Binary)
	if !ok {
		return u
	}
	if inv, ok := invertedComparison[b.Op]; ok {
		return &expr.Binary{Op: inv, Left: b.Left, Right: b.Right}
	}
	return u
})

// ConstantConditional picks the branch of a conditional whose test is a
// boolean literal.
var ConstantConditional = For("constant-conditional", func(c *expr.Conditional) expr.Expr {
	if b, ok := literalBool(c.Test); ok {
		if b {
			return c.Then
		}
		return c.Else
	}
	return c
})

// BooleanIdentity drops literal identities from && and ||:
// true && x, x && true, false || x and x || false all become x.
var BooleanIdentity = For("boolean-identity", func(b *expr.Binary) expr.Expr {
	var identity bool
	switch b.Op {
	case expr.OpAnd:
		identity = true
	case expr.OpOr:
		identity = false
	default:
		return b
	}
	if v, ok := literalBool(b.Left); ok && v == identity {
		return b.Right
	}
	if v, ok := literalBool(b.Right); ok && v == identity {
		return b.Left
	}
	return b
})

// TransparentMember rewrites new {a = x}.a to x.
var TransparentMember = For("transparent-member", func(m *expr.Member) expr.Expr {
	if obj, ok := m.Target.(*expr.New); ok {
		if v, ok := obj.Field(m.Name); ok {
			return v
		}
	}
	return m
})

// DefaultRegistry returns the normalization rules applied by the default
// preprocessing pipeline.
func DefaultRegistry() *Registry {
	return NewRegistryBuilder().
		Register(DoubleNegation, expr.KindUnary).
		Register(NegatedComparison, expr.KindUnary).
		Register(ConstantConditional, expr.KindConditional).
		Register(BooleanIdentity, expr.KindBinary).
		Register(TransparentMember, expr.KindMember).
		Build()
}

func literalBool(e expr.Expr) (bool, bool) {
	lit, ok := e.(*expr.Literal)
	if !ok {
		return false, false
	}
	b, ok := lit.Value.(ir.Bool)
	return bool(b), ok
}
