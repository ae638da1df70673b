package querymodel

import (
	"fmt"
	"slices"

	"github.com/roach88/qchain/internal/expr"
)

// QueryModel is a compiled query: one main from clause, ordered body
// clauses, exactly one select clause and ordered result operators.
//
// INVARIANTS:
//   - MainFrom and the select clause are never nil
//   - body clauses keep insertion order; nothing reorders them
//   - result operators apply after the select clause, in insertion order
type QueryModel struct {
	MainFrom *MainFromClause

	body      []BodyClause
	sel       *SelectClause
	resultOps []ResultOperator
}

// New creates a model with the given main from and select clauses.
func New(mainFrom *MainFromClause, sel *SelectClause) *QueryModel {
	if mainFrom == nil {
		panic("querymodel: nil main from clause")
	}
	if sel == nil {
		panic("querymodel: nil select clause")
	}
	return &QueryModel{MainFrom: mainFrom, sel: sel}
}

// NewIdentity creates a model selecting the main from item unchanged.
func NewIdentity(mainFrom *MainFromClause) *QueryModel {
	return New(mainFrom, &SelectClause{Selector: expr.Ref(mainFrom)})
}

// BodyClauses returns the body clauses in order. The returned slice is a
// copy; use AddBodyClause and InsertBodyClause to change the model.
func (qm *QueryModel) BodyClauses() []BodyClause {
	return slices.Clone(qm.body)
}

// AddBodyClause appends c after the existing body clauses.
func (qm *QueryModel) AddBodyClause(c BodyClause) {
	if c == nil {
		panic("querymodel: nil body clause")
	}
	qm.body = append(qm.body, c)
}

// InsertBodyClause inserts c at index i (0 <= i <= len).
func (qm *QueryModel) InsertBodyClause(i int, c BodyClause) {
	if c == nil {
		panic("querymodel: nil body clause")
	}
	if i < 0 || i > len(qm.body) {
		panic(fmt.Sprintf("querymodel: body clause index %d out of range [0,%d]", i, len(qm.body)))
	}
	qm.body = slices.Insert(qm.body, i, c)
}

// SelectClause returns the model's select clause.
func (qm *QueryModel) SelectClause() *SelectClause {
	return qm.sel
}

// SetSelectClause replaces the select clause. A model always has exactly
// one, so nil is rejected.
func (qm *QueryModel) SetSelectClause(s *SelectClause) {
	if s == nil {
		panic("querymodel: nil select clause")
	}
	qm.sel = s
}

// ResultOperators returns the result operators in order (a copy).
func (qm *QueryModel) ResultOperators() []ResultOperator {
	return slices.Clone(qm.resultOps)
}

// AddResultOperator appends op after the existing result operators.
func (qm *QueryModel) AddResultOperator(op ResultOperator) {
	if op == nil {
		panic("querymodel: nil result operator")
	}
	qm.resultOps = append(qm.resultOps, op)
}

// Accept walks v over the model. See Walk.
func (qm *QueryModel) Accept(v Visitor) error {
	return Walk(v, qm)
}

// Sources returns every query source the model declares, in clause order.
// A group join contributes both itself and its inner join clause.
func (qm *QueryModel) Sources() []expr.QuerySource {
	out := []expr.QuerySource{qm.MainFrom}
	for _, c := range qm.body {
		switch c := c.(type) {
		case *AdditionalFromClause:
			out = append(out, c)
		case *JoinClause:
			out = append(out, c)
		case *GroupJoinClause:
			out = append(out, c.JoinClause, c)
		case *LetClause:
			out = append(out, c)
		}
	}
	return out
}

// IsIdentity reports whether the model only selects its main from item.
func (qm *QueryModel) IsIdentity() bool {
	if len(qm.body) > 0 || len(qm.resultOps) > 0 {
		return false
	}
	ref, ok := qm.sel.Selector.(*expr.SourceRef)
	return ok && ref.Source == expr.QuerySource(qm.MainFrom)
}

// TransformExpressions applies fn to every expression of every clause and
// result operator, in model order. Nested models are reached only if fn
// descends into them.
func (qm *QueryModel) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	qm.MainFrom.TransformExpressions(fn)
	for _, c := range qm.body {
		c.TransformExpressions(fn)
	}
	qm.sel.TransformExpressions(fn)
	for _, op := range qm.resultOps {
		op.TransformExpressions(fn)
	}
}

// Output describes what executing the model yields.
func (qm *QueryModel) Output() OutputInfo {
	out := OutputInfo{Kind: OutputSequence, ItemType: expr.TypeOf(qm.sel.Selector)}
	for _, op := range qm.resultOps {
		out = op.Output(out)
	}
	return out
}

// OutputType implements expr.Model.
func (qm *QueryModel) OutputType() string {
	return qm.Output().Type()
}

// CloneContext carries the query-source mapping shared by every clause of
// one clone operation.
type CloneContext struct {
	Mapping *expr.SourceMapping
}

// NewCloneContext creates a context over m, or over a fresh mapping if m
// is nil.
func NewCloneContext(m *expr.SourceMapping) *CloneContext {
	if m == nil {
		m = expr.NewSourceMapping()
	}
	return &CloneContext{Mapping: m}
}

// Clone deep-copies the model. Every query source in the copy is a new
// identity; references inside the copy point at the copy's clauses, and
// nested models are cloned too.
func (qm *QueryModel) Clone() *QueryModel {
	return qm.CloneWith(expr.NewSourceMapping())
}

// CloneWith clones the model, recording old-to-new source mappings in m.
// References to sources outside the model that m already maps are
// rewritten as well; other outside references are kept.
func (qm *QueryModel) CloneWith(m *expr.SourceMapping) *QueryModel {
	ctx := NewCloneContext(m)

	out := &QueryModel{MainFrom: qm.MainFrom.Clone(ctx)}
	for _, c := range qm.body {
		out.body = append(out.body, c.Clone(ctx))
	}
	out.sel = qm.sel.Clone(ctx)
	for _, op := range qm.resultOps {
		out.resultOps = append(out.resultOps, op.Clone(ctx))
	}

	out.TransformExpressions(func(e expr.Expr) expr.Expr {
		return expr.Remap(e, ctx.Mapping)
	})
	return out
}

// CloneModel implements expr.Model.
func (qm *QueryModel) CloneModel(m *expr.SourceMapping) expr.Model {
	return qm.CloneWith(m)
}

var _ expr.Model = (*QueryModel)(nil)
