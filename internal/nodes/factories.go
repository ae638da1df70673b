package nodes

import (
	"fmt"

	"github.com/roach88/qchain/internal/expr"
)

// shape is an exact overload: number of type parameters and arity
// (source included).
type shape struct {
	typeParams int
	arity      int
}

type operator struct {
	name   string
	kind   Kind
	shapes []shape
}

// DefaultOperators lists the operator names the default catalog knows.
func DefaultOperators() []string {
	ops := defaultOperators()
	names := make([]string, 0, len(ops)+1)
	for _, op := range ops {
		names = append(names, op.name)
	}
	return append(names, "Let")
}

// DefaultCatalog returns the catalog of standard query operators. Every
// operator is registered by exact signature for the Queryable and
// Enumerable owners and by name for any other owner. Let is registered by
// name only.
func DefaultCatalog() *Catalog {
	b := NewCatalogBuilder()
	for _, op := range defaultOperators() {
		for _, owner := range []string{expr.OwnerQueryable, expr.OwnerEnumerable} {
			for _, s := range op.shapes {
				b.Register(op.kind, expr.Signature{Owner: owner, Name: op.name, Arity: s.arity, TypeParams: s.typeParams})
			}
		}
		b.RegisterName(op.kind, op.name)
	}
	b.RegisterName(Kind{Name: "Let", Factory: newLet}, "Let")
	return b.Build()
}

func defaultOperators() []operator {
	one := []shape{{1, 1}}
	oneOrPredicate := []shape{{1, 1}, {1, 2}}
	withArg := []shape{{1, 2}}
	keyed := []shape{{2, 2}}

	return []operator{
		{"Where", Kind{"Where", newWhere}, withArg},
		{"Select", Kind{"Select", newSelect}, keyed},
		{"OrderBy", Kind{"OrderBy", newOrderBy(false, false)}, keyed},
		{"OrderByDescending", Kind{"OrderByDescending", newOrderBy(true, false)}, keyed},
		{"ThenBy", Kind{"ThenBy", newOrderBy(false, true)}, keyed},
		{"ThenByDescending", Kind{"ThenByDescending", newOrderBy(true, true)}, keyed},
		{"Join", Kind{"Join", newJoin}, []shape{{4, 5}}},
		{"GroupJoin", Kind{"GroupJoin", newGroupJoin}, []shape{{4, 5}}},
		{"SelectMany", Kind{"SelectMany", newSelectMany}, []shape{{2, 2}, {3, 3}}},
		{"Distinct", Kind{"Distinct", newPlain(ResultDistinct)}, one},
		{"Reverse", Kind{"Reverse", newPlain(ResultReverse)}, one},
		{"Take", Kind{"Take", newCounted(ResultTake)}, withArg},
		{"Skip", Kind{"Skip", newCounted(ResultSkip)}, withArg},
		{"Count", Kind{"Count", newFiltered(ResultCount, false)}, oneOrPredicate},
		{"LongCount", Kind{"LongCount", newFiltered(ResultLongCount, false)}, oneOrPredicate},
		{"Any", Kind{"Any", newFiltered(ResultAny, false)}, oneOrPredicate},
		{"First", Kind{"First", newFiltered(ResultFirst, false)}, oneOrPredicate},
		{"FirstOrDefault", Kind{"FirstOrDefault", newFiltered(ResultFirst, true)}, oneOrPredicate},
		{"Last", Kind{"Last", newFiltered(ResultLast, false)}, oneOrPredicate},
		{"LastOrDefault", Kind{"LastOrDefault", newFiltered(ResultLast, true)}, oneOrPredicate},
		{"Single", Kind{"Single", newFiltered(ResultSingle, false)}, oneOrPredicate},
		{"SingleOrDefault", Kind{"SingleOrDefault", newFiltered(ResultSingle, true)}, oneOrPredicate},
		{"Sum", Kind{"Sum", newProjected(ResultSum)}, []shape{{0, 1}, {1, 2}}},
		{"Average", Kind{"Average", newProjected(ResultAverage)}, []shape{{0, 1}, {1, 2}}},
		{"Min", Kind{"Min", newProjected(ResultMin)}, []shape{{1, 1}, {2, 2}}},
		{"Max", Kind{"Max", newProjected(ResultMax)}, []shape{{1, 1}, {2, 2}}},
		{"All", Kind{"All", newAll}, withArg},
		{"Contains", Kind{"Contains", newWithValue(ResultContains, 1, 1)}, withArg},
		{"DefaultIfEmpty", Kind{"DefaultIfEmpty", newWithValue(ResultDefaultIfEmpty, 0, 1)}, oneOrPredicate},
		{"Cast", Kind{"Cast", newTyped(ResultCast)}, one},
		{"OfType", Kind{"OfType", newTyped(ResultOfType)}, one},
		{"GroupBy", Kind{"GroupBy", newGroupBy}, []shape{{2, 2}, {3, 3}}},
		{"Union", Kind{"Union", newWithValue(ResultUnion, 1, 1)}, withArg},
		{"Concat", Kind{"Concat", newWithValue(ResultConcat, 1, 1)}, withArg},
		{"Intersect", Kind{"Intersect", newWithValue(ResultIntersect, 1, 1)}, withArg},
		{"Except", Kind{"Except", newWithValue(ResultExcept, 1, 1)}, withArg},
		{"Aggregate", Kind{"Aggregate", newAggregate}, []shape{{1, 2}, {2, 3}, {3, 4}}},
	}
}

func wantArgs(args []expr.Expr, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("want %d arguments, got %d", lo, len(args))
		}
		return fmt.Errorf("want %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

// lambdaArg returns args[i] as a lambda with exactly params parameters.
func lambdaArg(args []expr.Expr, i, params int) (*expr.Lambda, error) {
	lam, ok := args[i].(*expr.Lambda)
	if !ok {
		return nil, fmt.Errorf("argument %d: want a lambda, got %s", i+1, args[i].Kind())
	}
	if len(lam.Params) != params {
		return nil, fmt.Errorf("argument %d: want a lambda with %d parameters, got %d", i+1, params, len(lam.Params))
	}
	return lam, nil
}

// valueArg returns args[i], rejecting lambdas.
func valueArg(args []expr.Expr, i int) (expr.Expr, error) {
	if _, ok := args[i].(*expr.Lambda); ok {
		return nil, fmt.Errorf("argument %d: want a value, got a lambda", i+1)
	}
	return args[i], nil
}

// synthesize inserts n between info's predecessor and the node being built.
func synthesize(a *Arena, info *Info, n Node) {
	base := n.Base()
	base.Source = info.Source
	base.Call = info.Call
	base.Position = info.Position
	base.ItemName = info.ItemName
	info.Source = a.Add(n)
}

func newWhere(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	if err := wantArgs(args, 1, 1); err != nil {
		return nil, err
	}
	pred, err := lambdaArg(args, 0, 1)
	if err != nil {
		return nil, err
	}
	return &WhereNode{Info: info, Predicate: pred}, nil
}

func newSelect(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	if err := wantArgs(args, 1, 1); err != nil {
		return nil, err
	}
	sel, err := lambdaArg(args, 0, 1)
	if err != nil {
		return nil, err
	}
	return &SelectNode{Info: info, Selector: sel}, nil
}

func newOrderBy(desc, thenBy bool) Factory {
	return func(a *Arena, info Info, args []expr.Expr) (Node, error) {
		if err := wantArgs(args, 1, 1); err != nil {
			return nil, err
		}
		key, err := lambdaArg(args, 0, 1)
		if err != nil {
			return nil, err
		}
		if thenBy {
			if _, ok := a.Get(info.Source).(*OrderByNode); !ok {
				return nil, fmt.Errorf("must directly follow OrderBy, OrderByDescending or another ThenBy")
			}
		}
		return &OrderByNode{Info: info, KeySelector: key, Descending: desc, ThenBy: thenBy}, nil
	}
}

// joinArgs validates (inner, outerKey, innerKey, resultSelector).
func joinArgs(args []expr.Expr) (inner expr.Expr, outerKey, innerKey, result *expr.Lambda, err error) {
	if err = wantArgs(args, 4, 4); err != nil {
		return
	}
	if inner, err = valueArg(args, 0); err != nil {
		return
	}
	if outerKey, err = lambdaArg(args, 1, 1); err != nil {
		return
	}
	if innerKey, err = lambdaArg(args, 2, 1); err != nil {
		return
	}
	result, err = lambdaArg(args, 3, 2)
	return
}

func newJoin(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	inner, outerKey, innerKey, result, err := joinArgs(args)
	if err != nil {
		return nil, err
	}
	info.ItemName = result.Params[1].Name
	return &JoinNode{Info: info, Inner: inner, OuterKey: outerKey, InnerKey: innerKey, ResultSelector: result}, nil
}

func newGroupJoin(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	inner, outerKey, innerKey, result, err := joinArgs(args)
	if err != nil {
		return nil, err
	}
	info.ItemName = result.Params[1].Name
	return &GroupJoinNode{Info: info, Inner: inner, OuterKey: outerKey, InnerKey: innerKey, ResultSelector: result}, nil
}

func newSelectMany(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	if err := wantArgs(args, 1, 2); err != nil {
		return nil, err
	}
	coll, err := lambdaArg(args, 0, 1)
	if err != nil {
		return nil, err
	}
	n := &SelectManyNode{Info: info, Collection: coll}
	if len(args) == 2 {
		if n.ResultSelector, err = lambdaArg(args, 1, 2); err != nil {
			return nil, err
		}
		n.ItemName = n.ResultSelector.Params[1].Name
	}
	return n, nil
}

func newLet(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	if err := wantArgs(args, 2, 2); err != nil {
		return nil, err
	}
	value, err := lambdaArg(args, 0, 1)
	if err != nil {
		return nil, err
	}
	result, err := lambdaArg(args, 1, 2)
	if err != nil {
		return nil, err
	}
	info.ItemName = result.Params[1].Name
	return &LetNode{Info: info, Value: value, ResultSelector: result}, nil
}

func newPlain(kind ResultKind) Factory {
	return func(_ *Arena, info Info, args []expr.Expr) (Node, error) {
		if err := wantArgs(args, 0, 0); err != nil {
			return nil, err
		}
		return &ResultOpNode{Info: info, Kind: kind}, nil
	}
}

func newCounted(kind ResultKind) Factory {
	return func(_ *Arena, info Info, args []expr.Expr) (Node, error) {
		if err := wantArgs(args, 1, 1); err != nil {
			return nil, err
		}
		count, err := valueArg(args, 0)
		if err != nil {
			return nil, err
		}
		return &ResultOpNode{Info: info, Kind: kind, Arg: count}, nil
	}
}

// newFiltered builds operators whose optional predicate becomes a
// synthesized Where predecessor: Count(p) is Where(p).Count().
func newFiltered(kind ResultKind, orDefault bool) Factory {
	return func(a *Arena, info Info, args []expr.Expr) (Node, error) {
		if err := wantArgs(args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 1 {
			pred, err := lambdaArg(args, 0, 1)
			if err != nil {
				return nil, err
			}
			synthesize(a, &info, &WhereNode{Predicate: pred})
		}
		return &ResultOpNode{Info: info, Kind: kind, OrDefault: orDefault}, nil
	}
}

// newProjected builds aggregates whose optional selector becomes a
// synthesized Select predecessor: Sum(f) is Select(f).Sum().
func newProjected(kind ResultKind) Factory {
	return func(a *Arena, info Info, args []expr.Expr) (Node, error) {
		if err := wantArgs(args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 1 {
			sel, err := lambdaArg(args, 0, 1)
			if err != nil {
				return nil, err
			}
			synthesize(a, &info, &SelectNode{Selector: sel})
		}
		return &ResultOpNode{Info: info, Kind: kind}, nil
	}
}

func newAll(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	if err := wantArgs(args, 1, 1); err != nil {
		return nil, err
	}
	pred, err := lambdaArg(args, 0, 1)
	if err != nil {
		return nil, err
	}
	return &ResultOpNode{Info: info, Kind: ResultAll, Lambda: pred}, nil
}

func newWithValue(kind ResultKind, lo, hi int) Factory {
	return func(_ *Arena, info Info, args []expr.Expr) (Node, error) {
		if err := wantArgs(args, lo, hi); err != nil {
			return nil, err
		}
		n := &ResultOpNode{Info: info, Kind: kind}
		if len(args) == 1 {
			v, err := valueArg(args, 0)
			if err != nil {
				return nil, err
			}
			n.Arg = v
		}
		return n, nil
	}
}

func newTyped(kind ResultKind) Factory {
	return func(_ *Arena, info Info, args []expr.Expr) (Node, error) {
		if err := wantArgs(args, 0, 0); err != nil {
			return nil, err
		}
		if len(info.Call.Method.TypeArgs) != 1 {
			return nil, fmt.Errorf("want exactly one type argument, got %d", len(info.Call.Method.TypeArgs))
		}
		return &ResultOpNode{Info: info, Kind: kind, TypeArg: info.Call.Method.TypeArgs[0]}, nil
	}
}

func newGroupBy(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	if err := wantArgs(args, 1, 2); err != nil {
		return nil, err
	}
	key, err := lambdaArg(args, 0, 1)
	if err != nil {
		return nil, err
	}
	n := &ResultOpNode{Info: info, Kind: ResultGroupBy, Lambda: key}
	if len(args) == 2 {
		if n.Lambda2, err = lambdaArg(args, 1, 1); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func newAggregate(_ *Arena, info Info, args []expr.Expr) (Node, error) {
	if err := wantArgs(args, 1, 3); err != nil {
		return nil, err
	}
	n := &ResultOpNode{Info: info, Kind: ResultAggregate}
	var err error
	switch len(args) {
	case 1:
		n.Lambda, err = lambdaArg(args, 0, 2)
	default:
		if n.Arg, err = valueArg(args, 0); err != nil {
			return nil, err
		}
		if n.Lambda, err = lambdaArg(args, 1, 2); err != nil {
			return nil, err
		}
		if len(args) == 3 {
			n.Lambda2, err = lambdaArg(args, 2, 1)
		}
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}
