package expr

import (
	"fmt"

	"github.com/roach88/qchain/internal/ir"
)

// Kind tags each expression variant. The rewrite registry indexes rules by
// Kind, and Kind is stable for the lifetime of a node.
type Kind int

const (
	KindLiteral Kind = iota
	KindParam
	KindLambda
	KindMember
	KindCall
	KindBinary
	KindUnary
	KindConditional
	KindNew
	KindCaptured
	KindSequence
	KindChain
	KindSourceRef
	KindSubQuery

	numKinds
)

var kindNames = [numKinds]string{
	KindLiteral:     "literal",
	KindParam:       "param",
	KindLambda:      "lambda",
	KindMember:      "member",
	KindCall:        "call",
	KindBinary:      "binary",
	KindUnary:       "unary",
	KindConditional: "conditional",
	KindNew:         "new",
	KindCaptured:    "captured",
	KindSequence:    "sequence",
	KindChain:       "chain",
	KindSourceRef:   "source-ref",
	KindSubQuery:    "subquery",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every expression kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Expr is a node of an expression tree.
//
// This is a sealed interface - only types in this package implement it, so
// type switches over Expr are exhaustive. Nodes are immutable once built:
// rewriting produces new nodes and leaves unchanged subtrees shared.
// Node identity is pointer identity.
type Expr interface {
	exprNode()

	// Kind returns the variant tag. It never dereferences the receiver,
	// so it is safe on typed nil pointers.
	Kind() Kind
}

// QuerySource is implemented by query model clauses that introduce an item
// (main from, additional from, join, group join, let, group result).
type QuerySource interface {
	ItemName() string
	ItemType() string
}

// Model is implemented by *querymodel.QueryModel. It lets expressions embed
// a nested query model without this package importing querymodel.
type Model interface {
	// TransformExpressions applies fn to every expression the model owns,
	// in place.
	TransformExpressions(fn func(Expr) Expr)

	// CloneModel deep-copies the model, registering every cloned query
	// source in m so that references are rewritten consistently.
	CloneModel(m *SourceMapping) Model

	// OutputType is the type of the model's result ("seq<T>" for sequences).
	OutputType() string

	String() string
}

// Literal is a folded host value.
type Literal struct {
	Value ir.Value
}

// Param is a parameter placeholder. Two placeholders are the same parameter
// only if they are the same pointer.
type Param struct {
	Name string
	Type string // optional declared type
}

// Lambda is an inline function: formal parameters plus a body.
type Lambda struct {
	Params []*Param
	Body   Expr
}

// Member is a field or property access.
type Member struct {
	Target Expr
	Name   string
	Type   string // optional declared type of the member
}

// Call is a host function call (not a query operator).
// Target is the receiver for method-style calls and may be nil.
type Call struct {
	Func   string
	Target Expr
	Args   []Expr
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpCoalesce
)

var binaryOpSymbols = map[BinaryOp]string{
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDiv:      "/",
	OpMod:      "%",
	OpEq:       "==",
	OpNe:       "!=",
	OpLt:       "<",
	OpLe:       "<=",
	OpGt:       ">",
	OpGe:       ">=",
	OpAnd:      "&&",
	OpOr:       "||",
	OpCoalesce: "??",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// IsComparison reports whether op yields a bool from two operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// Binary is a binary operation.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpNeg:
		return "-"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Unary is a unary operation.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Conditional is a ternary test ? then : else.
type Conditional struct {
	Test Expr
	Then Expr
	Else Expr
}

// Field is a named member of an anonymous object construction.
type Field struct {
	Name  string
	Value Expr
}

// New constructs an anonymous object. Resolution uses it for transparent
// identifiers: member access on a New collapses to the field value.
type New struct {
	Fields []Field
}

// Field returns the value of the named field.
func (n *New) Field(name string) (Expr, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Captured is a host variable captured from the enclosing scope. Value is
// the host's own accessor; a nil Value means no concrete host value exists
// and the capture is never folded.
type Captured struct {
	Name  string
	Value func() (any, error)
}

// Sequence is a terminal reference: a named abstract sequence of items.
type Sequence struct {
	Name     string
	ElemType string
}

// SourceRef is a resolved reference to the item a query model clause
// introduces.
type SourceRef struct {
	Source QuerySource
}

// SubQuery embeds a nested query model. The outer model owns the inner one.
type SubQuery struct {
	Model Model
}

func (*Literal) exprNode()     {}
func (*Param) exprNode()       {}
func (*Lambda) exprNode()      {}
func (*Member) exprNode()      {}
func (*Call) exprNode()        {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Conditional) exprNode() {}
func (*New) exprNode()         {}
func (*Captured) exprNode()    {}
func (*Sequence) exprNode()    {}
func (*Chain) exprNode()       {}
func (*SourceRef) exprNode()   {}
func (*SubQuery) exprNode()    {}

func (*Literal) Kind() Kind     { return KindLiteral }
func (*Param) Kind() Kind       { return KindParam }
func (*Lambda) Kind() Kind      { return KindLambda }
func (*Member) Kind() Kind      { return KindMember }
func (*Call) Kind() Kind        { return KindCall }
func (*Binary) Kind() Kind      { return KindBinary }
func (*Unary) Kind() Kind       { return KindUnary }
func (*Conditional) Kind() Kind { return KindConditional }
func (*New) Kind() Kind         { return KindNew }
func (*Captured) Kind() Kind    { return KindCaptured }
func (*Sequence) Kind() Kind    { return KindSequence }
func (*Chain) Kind() Kind       { return KindChain }
func (*SourceRef) Kind() Kind   { return KindSourceRef }
func (*SubQuery) Kind() Kind    { return KindSubQuery }
