package nodes

import (
	"fmt"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/qerr"
	"github.com/roach88/qchain/internal/querymodel"
)

// NameGenerator supplies item names for clauses whose item has no
// user-written name.
type NameGenerator interface {
	Generate() string
}

// Assembler turns a node path into a query model. An Assembler is used for
// one assembly only.
type Assembler struct {
	arena *Arena
	names NameGenerator
	ctx   *ClauseGenerationContext

	qm *querymodel.QueryModel

	// projected is set once a non-identity Select fixed the select clause.
	projected bool

	// orderBy is the clause ThenBy nodes extend.
	orderBy *querymodel.OrderByClause
}

// NewAssembler returns an assembler over the nodes of a.
func NewAssembler(a *Arena, names NameGenerator) *Assembler {
	return &Assembler{
		arena: a,
		names: names,
		ctx:   NewClauseGenerationContext(),
	}
}

// Context returns the clause generation context filled by Assemble.
func (as *Assembler) Context() *ClauseGenerationContext {
	return as.ctx
}

// Assemble applies the nodes from the main source up to head and returns
// the finished model.
func (as *Assembler) Assemble(head NodeID) (*querymodel.QueryModel, error) {
	for _, id := range as.arena.Path(head) {
		if err := as.apply(id); err != nil {
			return nil, err
		}
	}
	if as.qm == nil {
		return nil, fmt.Errorf("nodes: path to node %d has no main source", head)
	}
	return as.qm, nil
}

func (as *Assembler) apply(id NodeID) error {
	n := as.arena.Get(id)
	if ms, ok := n.(*MainSourceNode); ok {
		as.applyMainSource(id, ms)
		return nil
	}
	if as.qm == nil {
		return as.fail(n, "operation has no main source")
	}
	if as.needsBoundary(n) {
		as.wrap(n)
	}

	var err error
	switch n := n.(type) {
	case *WhereNode:
		err = as.applyWhere(id, n)
	case *SelectNode:
		err = as.applySelect(id, n)
	case *OrderByNode:
		err = as.applyOrderBy(id, n)
	case *JoinNode:
		err = as.applyJoin(id, n)
	case *GroupJoinNode:
		err = as.applyGroupJoin(id, n)
	case *SelectManyNode:
		err = as.applySelectMany(id, n)
	case *LetNode:
		err = as.applyLet(id, n)
	case *ResultOpNode:
		err = as.applyResultOp(id, n)
	default:
		err = fmt.Errorf("unknown node type %T", n)
	}
	if err != nil {
		if qerr.CodeOf(err) != "" {
			return err
		}
		return as.fail(n, err.Error())
	}
	return nil
}

func (as *Assembler) fail(n Node, msg string) error {
	info := n.Base()
	return qerr.NewUnsupportedOperation(info.Signature().String(), info.Position, expr.String(info.Call), msg)
}

// needsBoundary reports whether n must start a new model with the current
// one as its main source: after a result operator, and after an explicit
// projection when n adds a body clause or projects again. A result
// operator only starts one when its lambda ranges over groups.
func (as *Assembler) needsBoundary(n Node) bool {
	pred := as.arena.Get(n.Base().Source)
	if IsResultOperator(n) {
		return groups(pred) && FirstParam(n) != nil
	}
	if IsResultOperator(pred) {
		return true
	}
	if !as.projected {
		return false
	}
	switch n := n.(type) {
	case *WhereNode, *JoinNode, *GroupJoinNode, *SelectManyNode, *LetNode:
		return true
	case *OrderByNode:
		return !n.ThenBy
	case *SelectNode:
		return !n.IsIdentity()
	}
	return false
}

// groups reports whether n turns its items into groups.
func groups(n Node) bool {
	r, ok := n.(*ResultOpNode)
	return ok && r.Kind == ResultGroupBy
}

// wrap makes the current model the main source of a new one. The new main
// from clause is registered as the item of n's predecessor.
func (as *Assembler) wrap(n Node) {
	inner := as.qm
	name := ""
	if p := FirstParam(n); p != nil {
		name = p.Name
	} else {
		name = as.names.Generate()
	}
	mf := querymodel.NewMainFromClause(name, expr.ElementType(inner.OutputType()), &expr.SubQuery{Model: inner})
	as.qm = querymodel.NewIdentity(mf)
	as.ctx.Add(n.Base().Source, mf)
	as.projected = false
	as.orderBy = nil
}

// item returns a fresh copy of the output item of node id. Every use gets
// its own copy so that no nested model is referenced from two places.
func (as *Assembler) item(id NodeID) (expr.Expr, error) {
	it, ok := as.ctx.Item(id)
	if !ok {
		return nil, qerr.NewMalformedReference(fmt.Sprintf("node %d", id), "", "item of a node that has not been applied")
	}
	return expr.Remap(it, expr.NewSourceMapping()), nil
}

// resolve substitutes lam's parameters with items and returns the body.
// A nil item leaves its parameter in place.
func resolve(lam *expr.Lambda, items ...expr.Expr) expr.Expr {
	repl := make(map[*expr.Param]expr.Expr, len(items))
	for i, p := range lam.Params {
		if i < len(items) && items[i] != nil {
			repl[p] = items[i]
		}
	}
	first := true
	body := expr.TransformDeep(lam.Body, func(n expr.Expr) expr.Expr {
		p, ok := n.(*expr.Param)
		if !ok {
			return n
		}
		r, ok := repl[p]
		if !ok {
			return n
		}
		if first {
			first = false
			return r
		}
		return expr.Remap(r, expr.NewSourceMapping())
	})
	return expr.RemoveTransparentIdentifiers(body)
}

func (as *Assembler) setSelect(id NodeID) error {
	it, err := as.item(id)
	if err != nil {
		return err
	}
	as.qm.SetSelectClause(&querymodel.SelectClause{Selector: it})
	return nil
}

func (as *Assembler) applyMainSource(id NodeID, n *MainSourceNode) {
	name := n.ItemName
	if name == "" {
		name = as.names.Generate()
	}
	typ := n.ItemType
	if typ == "" {
		typ = expr.ElementType(expr.TypeOf(n.Sequence))
	}
	mf := querymodel.NewMainFromClause(name, typ, n.Sequence)
	as.qm = querymodel.NewIdentity(mf)
	as.ctx.Add(id, mf)
	as.projected = false
	as.orderBy = nil
}

func (as *Assembler) passThrough(id NodeID, n Node) error {
	it, ok := as.ctx.Item(n.Base().Source)
	if !ok {
		return qerr.NewMalformedReference(fmt.Sprintf("node %d", n.Base().Source), "", "item of a node that has not been applied")
	}
	as.ctx.SetItem(id, it)
	return nil
}

func (as *Assembler) applyWhere(id NodeID, n *WhereNode) error {
	in, err := as.item(n.Source)
	if err != nil {
		return err
	}
	as.qm.AddBodyClause(&querymodel.WhereClause{Predicate: resolve(n.Predicate, in)})
	return as.passThrough(id, n)
}

func (as *Assembler) applySelect(id NodeID, n *SelectNode) error {
	if n.IsIdentity() {
		return as.passThrough(id, n)
	}
	in, err := as.item(n.Source)
	if err != nil {
		return err
	}
	as.ctx.SetItem(id, resolve(n.Selector, in))
	as.projected = true
	return as.setSelect(id)
}

func (as *Assembler) applyOrderBy(id NodeID, n *OrderByNode) error {
	in, err := as.item(n.Source)
	if err != nil {
		return err
	}
	dir := querymodel.Asc
	if n.Descending {
		dir = querymodel.Desc
	}
	o := &querymodel.Ordering{Expression: resolve(n.KeySelector, in), Direction: dir}
	if n.ThenBy {
		if as.orderBy == nil {
			return fmt.Errorf("no ordering to extend")
		}
		as.orderBy.Orderings = append(as.orderBy.Orderings, o)
	} else {
		as.orderBy = &querymodel.OrderByClause{Orderings: []*querymodel.Ordering{o}}
		as.qm.AddBodyClause(as.orderBy)
	}
	return as.passThrough(id, n)
}

// newJoinClause builds a join clause with its inner key resolved against
// the clause itself.
func (as *Assembler) newJoinClause(name string, inner expr.Expr, outerKey, innerKey *expr.Lambda, source NodeID) (*querymodel.JoinClause, error) {
	outer, err := as.item(source)
	if err != nil {
		return nil, err
	}
	jc := &querymodel.JoinClause{
		Name:          name,
		Type:          expr.ElementType(expr.TypeOf(inner)),
		InnerSequence: inner,
	}
	jc.OuterKeySelector = resolve(outerKey, outer)
	jc.InnerKeySelector = resolve(innerKey, expr.Ref(jc))
	return jc, nil
}

func (as *Assembler) applyJoin(id NodeID, n *JoinNode) error {
	jc, err := as.newJoinClause(n.ItemName, n.Inner, n.OuterKey, n.InnerKey, n.Source)
	if err != nil {
		return err
	}
	as.qm.AddBodyClause(jc)
	as.ctx.Add(id, jc)
	return as.applyResultSelector(id, n.Source, n.ResultSelector, expr.Ref(jc))
}

func (as *Assembler) applyGroupJoin(id NodeID, n *GroupJoinNode) error {
	jc, err := as.newJoinClause(n.InnerKey.Params[0].Name, n.Inner, n.OuterKey, n.InnerKey, n.Source)
	if err != nil {
		return err
	}
	gj := &querymodel.GroupJoinClause{Name: n.ItemName, Type: expr.SeqType(jc.Type), JoinClause: jc}
	as.qm.AddBodyClause(gj)
	as.ctx.Add(id, gj)
	return as.applyResultSelector(id, n.Source, n.ResultSelector, expr.Ref(gj))
}

// applyResultSelector sets the item of a node that introduced own as the
// result selector applied to the source item and own. A nil selector makes
// own the item.
func (as *Assembler) applyResultSelector(id, source NodeID, sel *expr.Lambda, own expr.Expr) error {
	if sel == nil {
		as.ctx.SetItem(id, own)
		return as.setSelect(id)
	}
	in, err := as.item(source)
	if err != nil {
		return err
	}
	as.ctx.SetItem(id, resolve(sel, in, own))
	return as.setSelect(id)
}

func (as *Assembler) applySelectMany(id NodeID, n *SelectManyNode) error {
	in, err := as.item(n.Source)
	if err != nil {
		return err
	}
	coll := resolve(n.Collection, in)
	if sq, ok := coll.(*expr.SubQuery); ok {
		if inner, ok := sq.Model.(*querymodel.QueryModel); ok && flattenable(inner) {
			own := as.flatten(id, inner)
			return as.applyResultSelector(id, n.Source, n.ResultSelector, own)
		}
	}
	name := n.ItemName
	if name == "" {
		name = as.names.Generate()
	}
	af := &querymodel.AdditionalFromClause{Name: name, Type: expr.ElementType(expr.TypeOf(coll)), FromExpression: coll}
	as.qm.AddBodyClause(af)
	as.ctx.Add(id, af)
	return as.applyResultSelector(id, n.Source, n.ResultSelector, expr.Ref(af))
}

// flattenable reports whether inner can be inlined into the current model:
// it has no result operators and no orderings.
func flattenable(inner *querymodel.QueryModel) bool {
	if len(inner.ResultOperators()) > 0 {
		return false
	}
	for _, bc := range inner.BodyClauses() {
		if _, ok := bc.(*querymodel.OrderByClause); ok {
			return false
		}
	}
	return true
}

// flatten inlines a flattenable subquery: its main from becomes an
// additional from clause of the current model, its body clauses follow,
// and its selector becomes the flattened item.
func (as *Assembler) flatten(id NodeID, inner *querymodel.QueryModel) expr.Expr {
	af := &querymodel.AdditionalFromClause{
		Name:           inner.MainFrom.Name,
		Type:           inner.MainFrom.Type,
		FromExpression: inner.MainFrom.FromExpression,
	}
	as.qm.AddBodyClause(af)
	as.ctx.Add(id, af)

	redirect := func(e expr.Expr) expr.Expr {
		return expr.ReplaceSource(e, inner.MainFrom, expr.Ref(af))
	}
	for _, bc := range inner.BodyClauses() {
		bc.TransformExpressions(redirect)
		as.qm.AddBodyClause(bc)
	}
	return redirect(inner.SelectClause().Selector)
}

func (as *Assembler) applyLet(id NodeID, n *LetNode) error {
	in, err := as.item(n.Source)
	if err != nil {
		return err
	}
	val := resolve(n.Value, in)
	lc := &querymodel.LetClause{Name: n.ItemName, Type: expr.TypeOf(val), Expression: val}
	as.qm.AddBodyClause(lc)
	as.ctx.Add(id, lc)
	return as.applyResultSelector(id, n.Source, n.ResultSelector, expr.Ref(lc))
}

var valueKinds = map[ResultKind]querymodel.ValueKind{
	ResultCount:     querymodel.ValueCount,
	ResultLongCount: querymodel.ValueLongCount,
	ResultSum:       querymodel.ValueSum,
	ResultMin:       querymodel.ValueMin,
	ResultMax:       querymodel.ValueMax,
	ResultAverage:   querymodel.ValueAverage,
}

var choiceKinds = map[ResultKind]querymodel.ChoiceKind{
	ResultFirst:  querymodel.ChoiceFirst,
	ResultLast:   querymodel.ChoiceLast,
	ResultSingle: querymodel.ChoiceSingle,
}

var setKinds = map[ResultKind]querymodel.SetKind{
	ResultUnion:     querymodel.SetUnion,
	ResultConcat:    querymodel.SetConcat,
	ResultIntersect: querymodel.SetIntersect,
	ResultExcept:    querymodel.SetExcept,
}

func (as *Assembler) applyResultOp(id NodeID, n *ResultOpNode) error {
	op, err := as.resultOperator(n)
	if err != nil {
		return err
	}
	as.qm.AddResultOperator(op)
	return as.passThrough(id, n)
}

func (as *Assembler) resultOperator(n *ResultOpNode) (querymodel.ResultOperator, error) {
	if k, ok := valueKinds[n.Kind]; ok {
		return &querymodel.ValueOp{Kind: k}, nil
	}
	if k, ok := choiceKinds[n.Kind]; ok {
		return &querymodel.ChoiceOp{Kind: k, OrDefault: n.OrDefault}, nil
	}
	if k, ok := setKinds[n.Kind]; ok {
		return &querymodel.SetOp{Kind: k, Source2: n.Arg}, nil
	}

	switch n.Kind {
	case ResultDistinct:
		return &querymodel.DistinctOp{}, nil
	case ResultReverse:
		return &querymodel.ReverseOp{}, nil
	case ResultTake:
		return &querymodel.TakeOp{Count: n.Arg}, nil
	case ResultSkip:
		return &querymodel.SkipOp{Count: n.Arg}, nil
	case ResultAny:
		return &querymodel.AnyOp{}, nil
	case ResultContains:
		return &querymodel.ContainsOp{Item: n.Arg}, nil
	case ResultDefaultIfEmpty:
		return &querymodel.DefaultIfEmptyOp{Default: n.Arg}, nil
	case ResultCast:
		return &querymodel.CastOp{Type: n.TypeArg}, nil
	case ResultOfType:
		return &querymodel.CastOp{Type: n.TypeArg, Filter: true}, nil
	}

	in, err := as.item(n.Source)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case ResultAll:
		return &querymodel.AllOp{Predicate: resolve(n.Lambda, in)}, nil
	case ResultGroupBy:
		name := n.ItemName
		if name == "" {
			name = as.names.Generate()
		}
		elem, err := as.item(n.Source)
		if err != nil {
			return nil, err
		}
		if n.Lambda2 != nil {
			elem = resolve(n.Lambda2, elem)
		}
		return &querymodel.GroupOp{ItemName: name, KeySelector: resolve(n.Lambda, in), ElementSelector: elem}, nil
	case ResultAggregate:
		acc := n.Lambda.Params[0]
		return &querymodel.AggregateOp{
			Seed:   n.Arg,
			Func:   expr.Lam([]*expr.Param{acc}, resolve(n.Lambda, nil, in)),
			Result: n.Lambda2,
		}, nil
	}
	return nil, fmt.Errorf("unknown result operator kind %d", n.Kind)
}
