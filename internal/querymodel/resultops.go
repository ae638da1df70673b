package querymodel

import (
	"fmt"

	"github.com/roach88/qchain/internal/expr"
)

// ResultOperator is a post-projection operation applied to the output of
// the select clause.
//
// This is a sealed interface - only types in this package implement it.
type ResultOperator interface {
	resultOperator()

	// Name is the operator name as written in a chain (Take, FirstOrDefault).
	Name() string

	Accept(v Visitor, qm *QueryModel, index int) error
	TransformExpressions(fn func(expr.Expr) expr.Expr)
	Clone(ctx *CloneContext) ResultOperator

	// Output describes the result shape given the shape of the input.
	Output(in OutputInfo) OutputInfo

	String() string
}

// baseOp carries the parts shared by every result operator.
type baseOp struct{}

func (baseOp) resultOperator() {}

func (baseOp) TransformExpressions(func(expr.Expr) expr.Expr) {}

// DistinctOp removes duplicate items.
type DistinctOp struct{ baseOp }

func (*DistinctOp) Name() string                       { return "Distinct" }
func (*DistinctOp) Clone(*CloneContext) ResultOperator { return &DistinctOp{} }
func (*DistinctOp) Output(in OutputInfo) OutputInfo    { return in }
func (*DistinctOp) String() string                     { return "Distinct()" }
func (o *DistinctOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// ReverseOp reverses item order.
type ReverseOp struct{ baseOp }

func (*ReverseOp) Name() string                       { return "Reverse" }
func (*ReverseOp) Clone(*CloneContext) ResultOperator { return &ReverseOp{} }
func (*ReverseOp) Output(in OutputInfo) OutputInfo    { return in }
func (*ReverseOp) String() string                     { return "Reverse()" }
func (o *ReverseOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// TakeOp keeps the first Count items.
type TakeOp struct {
	baseOp
	Count expr.Expr
}

func (*TakeOp) Name() string                    { return "Take" }
func (*TakeOp) Output(in OutputInfo) OutputInfo { return in }
func (o *TakeOp) Clone(*CloneContext) ResultOperator {
	return &TakeOp{Count: o.Count}
}
func (o *TakeOp) TransformExpressions(fn func(expr.Expr) expr.Expr) { o.Count = fn(o.Count) }
func (o *TakeOp) String() string                                    { return "Take(" + expr.String(o.Count) + ")" }
func (o *TakeOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// SkipOp drops the first Count items.
type SkipOp struct {
	baseOp
	Count expr.Expr
}

func (*SkipOp) Name() string                    { return "Skip" }
func (*SkipOp) Output(in OutputInfo) OutputInfo { return in }
func (o *SkipOp) Clone(*CloneContext) ResultOperator {
	return &SkipOp{Count: o.Count}
}
func (o *SkipOp) TransformExpressions(fn func(expr.Expr) expr.Expr) { o.Count = fn(o.Count) }
func (o *SkipOp) String() string                                    { return "Skip(" + expr.String(o.Count) + ")" }
func (o *SkipOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// ChoiceKind selects which single item a ChoiceOp returns.
type ChoiceKind int

const (
	ChoiceFirst ChoiceKind = iota
	ChoiceLast
	ChoiceSingle
)

var choiceNames = map[ChoiceKind]string{ChoiceFirst: "First", ChoiceLast: "Last", ChoiceSingle: "Single"}

// ChoiceOp returns one item: the first, the last or the only one. With
// OrDefault an empty input yields the item type's default value instead of
// failing.
type ChoiceOp struct {
	baseOp
	Kind      ChoiceKind
	OrDefault bool
}

func (o *ChoiceOp) Name() string {
	if o.OrDefault {
		return choiceNames[o.Kind] + "OrDefault"
	}
	return choiceNames[o.Kind]
}
func (o *ChoiceOp) Clone(*CloneContext) ResultOperator {
	return &ChoiceOp{Kind: o.Kind, OrDefault: o.OrDefault}
}
func (o *ChoiceOp) Output(in OutputInfo) OutputInfo {
	return OutputInfo{Kind: OutputSingle, ItemType: in.ItemType, DefaultWhenEmpty: o.OrDefault}
}
func (o *ChoiceOp) String() string { return o.Name() + "()" }
func (o *ChoiceOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// ValueKind selects the aggregate a ValueOp computes.
type ValueKind int

const (
	ValueCount ValueKind = iota
	ValueLongCount
	ValueSum
	ValueMin
	ValueMax
	ValueAverage
)

var valueNames = map[ValueKind]string{
	ValueCount:     "Count",
	ValueLongCount: "LongCount",
	ValueSum:       "Sum",
	ValueMin:       "Min",
	ValueMax:       "Max",
	ValueAverage:   "Average",
}

// ValueOp reduces the sequence to one aggregate value. Predicates and
// selectors given to these operators in a chain are compiled into the
// clauses feeding the operator, so the operator itself has no arguments.
type ValueOp struct {
	baseOp
	Kind ValueKind
}

func (o *ValueOp) Name() string                       { return valueNames[o.Kind] }
func (o *ValueOp) Clone(*CloneContext) ResultOperator { return &ValueOp{Kind: o.Kind} }
func (o *ValueOp) String() string                     { return o.Name() + "()" }
func (o *ValueOp) Output(in OutputInfo) OutputInfo {
	switch o.Kind {
	case ValueCount, ValueLongCount:
		return OutputInfo{Kind: OutputScalar, ItemType: "int"}
	case ValueAverage:
		return OutputInfo{Kind: OutputScalar, ItemType: "float"}
	default:
		return OutputInfo{Kind: OutputScalar, ItemType: in.ItemType}
	}
}
func (o *ValueOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// AnyOp tests whether the sequence has any item.
type AnyOp struct{ baseOp }

func (*AnyOp) Name() string                       { return "Any" }
func (*AnyOp) Clone(*CloneContext) ResultOperator { return &AnyOp{} }
func (*AnyOp) String() string                     { return "Any()" }
func (*AnyOp) Output(OutputInfo) OutputInfo {
	return OutputInfo{Kind: OutputScalar, ItemType: "bool"}
}
func (o *AnyOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// AllOp tests whether every item satisfies Predicate.
type AllOp struct {
	baseOp
	Predicate expr.Expr
}

func (*AllOp) Name() string { return "All" }
func (o *AllOp) Clone(*CloneContext) ResultOperator {
	return &AllOp{Predicate: o.Predicate}
}
func (o *AllOp) TransformExpressions(fn func(expr.Expr) expr.Expr) { o.Predicate = fn(o.Predicate) }
func (o *AllOp) String() string                                    { return "All(" + expr.String(o.Predicate) + ")" }
func (*AllOp) Output(OutputInfo) OutputInfo {
	return OutputInfo{Kind: OutputScalar, ItemType: "bool"}
}
func (o *AllOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// ContainsOp tests whether Item occurs in the sequence.
type ContainsOp struct {
	baseOp
	Item expr.Expr
}

func (*ContainsOp) Name() string { return "Contains" }
func (o *ContainsOp) Clone(*CloneContext) ResultOperator {
	return &ContainsOp{Item: o.Item}
}
func (o *ContainsOp) TransformExpressions(fn func(expr.Expr) expr.Expr) { o.Item = fn(o.Item) }
func (o *ContainsOp) String() string                                    { return "Contains(" + expr.String(o.Item) + ")" }
func (*ContainsOp) Output(OutputInfo) OutputInfo {
	return OutputInfo{Kind: OutputScalar, ItemType: "bool"}
}
func (o *ContainsOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// DefaultIfEmptyOp yields a single default item when the sequence is empty.
// Default is nil when the item type's default value is meant.
type DefaultIfEmptyOp struct {
	baseOp
	Default expr.Expr
}

func (*DefaultIfEmptyOp) Name() string                    { return "DefaultIfEmpty" }
func (*DefaultIfEmptyOp) Output(in OutputInfo) OutputInfo { return in }
func (o *DefaultIfEmptyOp) Clone(*CloneContext) ResultOperator {
	return &DefaultIfEmptyOp{Default: o.Default}
}
func (o *DefaultIfEmptyOp) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	if o.Default != nil {
		o.Default = fn(o.Default)
	}
}
func (o *DefaultIfEmptyOp) String() string {
	if o.Default == nil {
		return "DefaultIfEmpty()"
	}
	return "DefaultIfEmpty(" + expr.String(o.Default) + ")"
}
func (o *DefaultIfEmptyOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// CastOp converts every item to Type; OfType instead drops items that are
// not of Type.
type CastOp struct {
	baseOp
	Type   string
	Filter bool
}

func (o *CastOp) Name() string {
	if o.Filter {
		return "OfType"
	}
	return "Cast"
}
func (o *CastOp) Clone(*CloneContext) ResultOperator {
	return &CastOp{Type: o.Type, Filter: o.Filter}
}
func (o *CastOp) Output(in OutputInfo) OutputInfo {
	return OutputInfo{Kind: in.Kind, ItemType: o.Type, DefaultWhenEmpty: in.DefaultWhenEmpty}
}
func (o *CastOp) String() string { return fmt.Sprintf("%s<%s>()", o.Name(), o.Type) }
func (o *CastOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// GroupOp groups items by KeySelector. Each group's elements are
// ElementSelector applied to the grouped items.
type GroupOp struct {
	baseOp
	ItemName        string
	KeySelector     expr.Expr
	ElementSelector expr.Expr
}

func (*GroupOp) Name() string { return "GroupBy" }
func (o *GroupOp) Clone(*CloneContext) ResultOperator {
	return &GroupOp{ItemName: o.ItemName, KeySelector: o.KeySelector, ElementSelector: o.ElementSelector}
}
func (o *GroupOp) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	o.KeySelector = fn(o.KeySelector)
	o.ElementSelector = fn(o.ElementSelector)
}
func (o *GroupOp) Output(OutputInfo) OutputInfo {
	return OutputInfo{Kind: OutputSequence, ItemType: GroupType(expr.TypeOf(o.KeySelector), expr.TypeOf(o.ElementSelector))}
}
func (o *GroupOp) String() string {
	return fmt.Sprintf("GroupBy(%s, %s)", expr.String(o.KeySelector), expr.String(o.ElementSelector))
}
func (o *GroupOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// GroupType names the item type of a grouping.
func GroupType(key, elem string) string {
	return "group<" + key + ", " + elem + ">"
}

// SetKind selects the set operation a SetOp performs.
type SetKind int

const (
	SetUnion SetKind = iota
	SetConcat
	SetIntersect
	SetExcept
)

var setNames = map[SetKind]string{SetUnion: "Union", SetConcat: "Concat", SetIntersect: "Intersect", SetExcept: "Except"}

// SetOp combines the sequence with Source2.
type SetOp struct {
	baseOp
	Kind    SetKind
	Source2 expr.Expr
}

func (o *SetOp) Name() string { return setNames[o.Kind] }
func (o *SetOp) Clone(*CloneContext) ResultOperator {
	return &SetOp{Kind: o.Kind, Source2: o.Source2}
}
func (o *SetOp) TransformExpressions(fn func(expr.Expr) expr.Expr) { o.Source2 = fn(o.Source2) }
func (*SetOp) Output(in OutputInfo) OutputInfo                     { return in }
func (o *SetOp) String() string                                    { return o.Name() + "(" + expr.String(o.Source2) + ")" }
func (o *SetOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// AggregateOp folds the sequence with Func. Func is a one-parameter lambda
// over the accumulator; the current item appears in its body already
// resolved. Seed and Result are optional.
type AggregateOp struct {
	baseOp
	Seed   expr.Expr
	Func   *expr.Lambda
	Result *expr.Lambda
}

func (*AggregateOp) Name() string { return "Aggregate" }
func (o *AggregateOp) Clone(*CloneContext) ResultOperator {
	return &AggregateOp{Seed: o.Seed, Func: o.Func, Result: o.Result}
}
func (o *AggregateOp) TransformExpressions(fn func(expr.Expr) expr.Expr) {
	if o.Seed != nil {
		o.Seed = fn(o.Seed)
	}
	o.Func = transformLambda(o.Func, fn)
	if o.Result != nil {
		o.Result = transformLambda(o.Result, fn)
	}
}
func (o *AggregateOp) Output(in OutputInfo) OutputInfo {
	t := in.ItemType
	switch {
	case o.Result != nil:
		t = expr.TypeOf(o.Result.Body)
	case o.Seed != nil:
		t = expr.TypeOf(o.Seed)
	}
	return OutputInfo{Kind: OutputScalar, ItemType: t}
}
func (o *AggregateOp) String() string {
	args := []expr.Expr{o.Func}
	if o.Seed != nil {
		args = []expr.Expr{o.Seed, o.Func}
	}
	if o.Result != nil {
		args = append(args, o.Result)
	}
	s := "Aggregate("
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += expr.String(a)
	}
	return s + ")"
}
func (o *AggregateOp) Accept(v Visitor, qm *QueryModel, i int) error {
	return v.VisitResultOperator(o, qm, i)
}

// transformLambda applies fn to a lambda and keeps the result a lambda. A
// rewrite that replaces the whole lambda with something else is ignored.
func transformLambda(l *expr.Lambda, fn func(expr.Expr) expr.Expr) *expr.Lambda {
	if out, ok := fn(l).(*expr.Lambda); ok {
		return out
	}
	return l
}

var (
	_ ResultOperator = (*DistinctOp)(nil)
	_ ResultOperator = (*ReverseOp)(nil)
	_ ResultOperator = (*TakeOp)(nil)
	_ ResultOperator = (*SkipOp)(nil)
	_ ResultOperator = (*ChoiceOp)(nil)
	_ ResultOperator = (*ValueOp)(nil)
	_ ResultOperator = (*AnyOp)(nil)
	_ ResultOperator = (*AllOp)(nil)
	_ ResultOperator = (*ContainsOp)(nil)
	_ ResultOperator = (*DefaultIfEmptyOp)(nil)
	_ ResultOperator = (*CastOp)(nil)
	_ ResultOperator = (*GroupOp)(nil)
	_ ResultOperator = (*SetOp)(nil)
	_ ResultOperator = (*AggregateOp)(nil)
)
