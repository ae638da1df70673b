package querymodel

import (
	"fmt"
	"strings"

	"github.com/roach88/qchain/internal/expr"
)

// BodyClause is a clause between the main from clause and the select
// clause: where, order by, additional from, join, group join or let.
//
// This is a sealed interface - only types in this package implement it.
type BodyClause interface {
	bodyClause()

	// Accept dispatches to the Visitor method for the clause type.
	Accept(v Visitor, qm *QueryModel, index int) error

	// TransformExpressions applies fn to every expression the clause owns.
	TransformExpressions(fn func(expr.Expr) expr.Expr)

	// Clone copies the clause. Query-source clauses register the mapping
	// from themselves to the clone in ctx.
	Clone(ctx *CloneContext) BodyClause

	String() string
}

// MainFromClause introduces the model's primary item.
type MainFromClause struct {
	Name           string
	Type           string
	FromExpression expr.Expr
}

// NewMainFromClause creates a main from clause over source.
func NewMainFromClause(name, itemType string, source expr.Expr) *MainFromClause {
	return &MainFromClause{Name: name, Type: itemType, FromExpression: source}
}

func (c *MainFromClause) ItemName() string { return c.Name }
func (c *MainFromClause) ItemType() string { return c.Type }

// Accept calls v.VisitMainFromClause.
func (c *MainFromClause) Accept(v Visitor, qm *QueryModel) error {
	return v.VisitMainFromClause(c, qm)
}

func (c *MainFromClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	c.FromExpression = fn(c.FromExpression)
}

// Clone copies the clause and maps c to the copy.
func (c *MainFromClause) Clone(ctx *CloneContext) *MainFromClause {
	out := &MainFromClause{Name: c.Name, Type: c.Type, FromExpression: c.FromExpression}
	ctx.Mapping.Add(c, expr.Ref(out))
	return out
}

func (c *MainFromClause) String() string {
	return fmt.Sprintf("from %s in %s", c.Name, expr.String(c.FromExpression))
}

// AdditionalFromClause introduces a further item per outer item (a flatten).
type AdditionalFromClause struct {
	Name           string
	Type           string
	FromExpression expr.Expr
}

func (c *AdditionalFromClause) bodyClause()      {}
func (c *AdditionalFromClause) ItemName() string { return c.Name }
func (c *AdditionalFromClause) ItemType() string { return c.Type }

func (c *AdditionalFromClause) Accept(v Visitor, qm *QueryModel, index int) error {
	return v.VisitAdditionalFromClause(c, qm, index)
}

func (c *AdditionalFromClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	c.FromExpression = fn(c.FromExpression)
}

func (c *AdditionalFromClause) Clone(ctx *CloneContext) BodyClause {
	out := &AdditionalFromClause{Name: c.Name, Type: c.Type, FromExpression: c.FromExpression}
	ctx.Mapping.Add(c, expr.Ref(out))
	return out
}

func (c *AdditionalFromClause) String() string {
	return fmt.Sprintf("from %s in %s", c.Name, expr.String(c.FromExpression))
}

// JoinClause is an inner equi-join. The outer key selector refers to items
// already in scope; the inner key selector refers to the join's own item.
type JoinClause struct {
	Name             string
	Type             string
	InnerSequence    expr.Expr
	OuterKeySelector expr.Expr
	InnerKeySelector expr.Expr
}

func (c *JoinClause) bodyClause()      {}
func (c *JoinClause) ItemName() string { return c.Name }
func (c *JoinClause) ItemType() string { return c.Type }

func (c *JoinClause) Accept(v Visitor, qm *QueryModel, index int) error {
	return v.VisitJoinClause(c, qm, index)
}

func (c *JoinClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	c.InnerSequence = fn(c.InnerSequence)
	c.OuterKeySelector = fn(c.OuterKeySelector)
	c.InnerKeySelector = fn(c.InnerKeySelector)
}

func (c *JoinClause) Clone(ctx *CloneContext) BodyClause {
	return c.cloneJoin(ctx)
}

func (c *JoinClause) cloneJoin(ctx *CloneContext) *JoinClause {
	out := *c
	ctx.Mapping.Add(c, expr.Ref(&out))
	return &out
}

func (c *JoinClause) String() string {
	return fmt.Sprintf("join %s in %s on %s equals %s",
		c.Name, expr.String(c.InnerSequence), expr.String(c.OuterKeySelector), expr.String(c.InnerKeySelector))
}

// GroupJoinClause correlates each outer item with the sequence of matching
// inner items. Its own item is that sequence; JoinClause describes the match
// and is the source inner key selectors refer to.
type GroupJoinClause struct {
	Name       string
	Type       string
	JoinClause *JoinClause
}

func (c *GroupJoinClause) bodyClause()      {}
func (c *GroupJoinClause) ItemName() string { return c.Name }
func (c *GroupJoinClause) ItemType() string { return c.Type }

func (c *GroupJoinClause) Accept(v Visitor, qm *QueryModel, index int) error {
	return v.VisitGroupJoinClause(c, qm, index)
}

func (c *GroupJoinClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	c.JoinClause.TransformExpressions(fn)
}

func (c *GroupJoinClause) Clone(ctx *CloneContext) BodyClause {
	out := &GroupJoinClause{Name: c.Name, Type: c.Type, JoinClause: c.JoinClause.cloneJoin(ctx)}
	ctx.Mapping.Add(c, expr.Ref(out))
	return out
}

func (c *GroupJoinClause) String() string {
	return c.JoinClause.String() + " into " + c.Name
}

// LetClause binds a computed value to a new item name.
type LetClause struct {
	Name       string
	Type       string
	Expression expr.Expr
}

func (c *LetClause) bodyClause()      {}
func (c *LetClause) ItemName() string { return c.Name }
func (c *LetClause) ItemType() string { return c.Type }

func (c *LetClause) Accept(v Visitor, qm *QueryModel, index int) error {
	return v.VisitLetClause(c, qm, index)
}

func (c *LetClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	c.Expression = fn(c.Expression)
}

func (c *LetClause) Clone(ctx *CloneContext) BodyClause {
	out := &LetClause{Name: c.Name, Type: c.Type, Expression: c.Expression}
	ctx.Mapping.Add(c, expr.Ref(out))
	return out
}

func (c *LetClause) String() string {
	return fmt.Sprintf("let %s = %s", c.Name, expr.String(c.Expression))
}

// WhereClause filters items by a boolean predicate.
type WhereClause struct {
	Predicate expr.Expr
}

func (c *WhereClause) bodyClause() {}

func (c *WhereClause) Accept(v Visitor, qm *QueryModel, index int) error {
	return v.VisitWhereClause(c, qm, index)
}

func (c *WhereClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	c.Predicate = fn(c.Predicate)
}

func (c *WhereClause) Clone(*CloneContext) BodyClause {
	return &WhereClause{Predicate: c.Predicate}
}

func (c *WhereClause) String() string {
	return "where " + expr.String(c.Predicate)
}

// Direction is an ordering direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Ordering is one sort key of an order by clause.
type Ordering struct {
	Expression expr.Expr
	Direction  Direction
}

func (o *Ordering) String() string {
	return expr.String(o.Expression) + " " + o.Direction.String()
}

// OrderByClause sorts items by its orderings, most significant first.
// ThenBy operations append orderings to the preceding clause.
type OrderByClause struct {
	Orderings []*Ordering
}

func (c *OrderByClause) bodyClause() {}

// Accept calls v.VisitOrderByClause, then v.VisitOrdering for each ordering.
func (c *OrderByClause) Accept(v Visitor, qm *QueryModel, index int) error {
	if err := v.VisitOrderByClause(c, qm, index); err != nil {
		return err
	}
	for i, o := range c.Orderings {
		if err := v.VisitOrdering(o, qm, c, i); err != nil {
			return err
		}
	}
	return nil
}

func (c *OrderByClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	for _, o := range c.Orderings {
		o.Expression = fn(o.Expression)
	}
}

func (c *OrderByClause) Clone(*CloneContext) BodyClause {
	out := &OrderByClause{Orderings: make([]*Ordering, len(c.Orderings))}
	for i, o := range c.Orderings {
		out.Orderings[i] = &Ordering{Expression: o.Expression, Direction: o.Direction}
	}
	return out
}

func (c *OrderByClause) String() string {
	parts := make([]string, len(c.Orderings))
	for i, o := range c.Orderings {
		parts[i] = o.String()
	}
	return "orderby " + strings.Join(parts, ", ")
}

// SelectClause holds the output projection.
type SelectClause struct {
	Selector expr.Expr
}

// Accept calls v.VisitSelectClause.
func (c *SelectClause) Accept(v Visitor, qm *QueryModel) error {
	return v.VisitSelectClause(c, qm)
}

func (c *SelectClause) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	c.Selector = fn(c.Selector)
}

func (c *SelectClause) Clone(*CloneContext) *SelectClause {
	return &SelectClause{Selector: c.Selector}
}

func (c *SelectClause) String() string {
	return "select " + expr.String(c.Selector)
}

// Compile-time interface checks.
var (
	_ expr.QuerySource = (*MainFromClause)(nil)
	_ expr.QuerySource = (*AdditionalFromClause)(nil)
	_ expr.QuerySource = (*JoinClause)(nil)
	_ expr.QuerySource = (*GroupJoinClause)(nil)
	_ expr.QuerySource = (*LetClause)(nil)

	_ BodyClause = (*AdditionalFromClause)(nil)
	_ BodyClause = (*JoinClause)(nil)
	_ BodyClause = (*GroupJoinClause)(nil)
	_ BodyClause = (*LetClause)(nil)
	_ BodyClause = (*WhereClause)(nil)
	_ BodyClause = (*OrderByClause)(nil)
)
