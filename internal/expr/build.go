package expr

import "github.com/roach88/qchain/internal/ir"

// Constructors for building trees by hand, mostly in tests and in the
// chain syntax parser.

func Lit(v ir.Value) *Literal  { return &Literal{Value: v} }
func Int(n int64) *Literal     { return &Literal{Value: ir.Int(n)} }
func Float(f float64) *Literal { return &Literal{Value: ir.Float(f)} }
func Str(s string) *Literal    { return &Literal{Value: ir.String(s)} }
func Bool(b bool) *Literal     { return &Literal{Value: ir.Bool(b)} }
func Null() *Literal           { return &Literal{Value: ir.Null{}} }
func P(name string) *Param     { return &Param{Name: name} }
func Seq(name, elem string) *Sequence {
	return &Sequence{Name: name, ElemType: elem}
}

// Lam builds a lambda over params.
func Lam(params []*Param, body Expr) *Lambda {
	return &Lambda{Params: params, Body: body}
}

// Lam1 builds a one-parameter lambda, handing the fresh parameter to body.
func Lam1(name string, body func(x *Param) Expr) *Lambda {
	x := P(name)
	return &Lambda{Params: []*Param{x}, Body: body(x)}
}

// Lam2 builds a two-parameter lambda.
func Lam2(a, b string, body func(x, y *Param) Expr) *Lambda {
	x, y := P(a), P(b)
	return &Lambda{Params: []*Param{x, y}, Body: body(x, y)}
}

func M(target Expr, name string) *Member { return &Member{Target: target, Name: name} }

func Bin(op BinaryOp, l, r Expr) *Binary { return &Binary{Op: op, Left: l, Right: r} }
func Add(l, r Expr) *Binary              { return Bin(OpAdd, l, r) }
func Sub(l, r Expr) *Binary              { return Bin(OpSub, l, r) }
func Mul(l, r Expr) *Binary              { return Bin(OpMul, l, r) }
func Eq(l, r Expr) *Binary               { return Bin(OpEq, l, r) }
func Ne(l, r Expr) *Binary               { return Bin(OpNe, l, r) }
func Gt(l, r Expr) *Binary               { return Bin(OpGt, l, r) }
func Ge(l, r Expr) *Binary               { return Bin(OpGe, l, r) }
func Lt(l, r Expr) *Binary               { return Bin(OpLt, l, r) }
func Le(l, r Expr) *Binary               { return Bin(OpLe, l, r) }
func And(l, r Expr) *Binary              { return Bin(OpAnd, l, r) }
func Or(l, r Expr) *Binary               { return Bin(OpOr, l, r) }
func Not(e Expr) *Unary                  { return &Unary{Op: OpNot, Operand: e} }
func Neg(e Expr) *Unary                  { return &Unary{Op: OpNeg, Operand: e} }

func If(test, then, els Expr) *Conditional {
	return &Conditional{Test: test, Then: then, Else: els}
}

func F(name string, value Expr) Field { return Field{Name: name, Value: value} }

// NewOf builds an anonymous object construction.
func NewOf(fields ...Field) *New { return &New{Fields: fields} }

// CallOf builds a host function call; target may be nil.
func CallOf(fn string, target Expr, args ...Expr) *Call {
	return &Call{Func: fn, Target: target, Args: args}
}

// Capture builds a captured variable holding v.
func Capture(name string, v any) *Captured {
	return &Captured{Name: name, Value: func() (any, error) { return v, nil }}
}

// Opaque builds a captured variable with no host value.
func Opaque(name string) *Captured { return &Captured{Name: name} }

func Ref(src QuerySource) *SourceRef { return &SourceRef{Source: src} }
