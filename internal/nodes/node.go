package nodes

import (
	"fmt"

	"github.com/roach88/qchain/internal/expr"
)

// NodeID addresses a node in an Arena.
type NodeID int

// NoNode is the predecessor of a main source node.
const NoNode NodeID = -1

// Arena owns the nodes of one parse.
type Arena struct {
	nodes []Node
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add stores n and returns its ID.
func (a *Arena) Add(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// Get returns the node with the given ID. It panics on an unknown ID.
func (a *Arena) Get(id NodeID) Node {
	if id < 0 || int(id) >= len(a.nodes) {
		panic(fmt.Sprintf("nodes: unknown node id %d", id))
	}
	return a.nodes[id]
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Path returns the IDs from the main source up to and including id.
func (a *Arena) Path(id NodeID) []NodeID {
	var rev []NodeID
	for cur := id; cur != NoNode; cur = a.Get(cur).Base().Source {
		rev = append(rev, cur)
	}
	out := make([]NodeID, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}

// Info is the part every node shares.
type Info struct {
	// Source is the predecessor node.
	Source NodeID

	// Call is the chain call the node was derived from. Nil for main
	// source nodes.
	Call *expr.Chain

	// Position is the 1-based index of Call in its chain.
	Position int

	// ItemName names the item of any clause the node introduces.
	ItemName string
}

// Base returns the shared part of a node.
func (i *Info) Base() *Info { return i }

// Signature returns the call signature, or a zero signature for main
// source nodes.
func (i *Info) Signature() expr.Signature {
	if i.Call == nil {
		return expr.Signature{}
	}
	return i.Call.Signature()
}

// Node is an intermediate operation node.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	node()
	Base() *Info
}

// MainSourceNode starts every chain. Sequence is the terminal source.
type MainSourceNode struct {
	Info
	Sequence expr.Expr
	ItemType string
}

// WhereNode filters by Predicate.
type WhereNode struct {
	Info
	Predicate *expr.Lambda
}

// SelectNode projects through Selector.
type SelectNode struct {
	Info
	Selector *expr.Lambda
}

// IsIdentity reports whether the selector returns its parameter unchanged.
func (n *SelectNode) IsIdentity() bool {
	return len(n.Selector.Params) == 1 && n.Selector.Body == expr.Expr(n.Selector.Params[0])
}

// OrderByNode sorts by KeySelector. ThenBy nodes extend the ordering of
// the order by node they follow.
type OrderByNode struct {
	Info
	KeySelector *expr.Lambda
	Descending  bool
	ThenBy      bool
}

// JoinNode is an inner equi-join with Inner.
type JoinNode struct {
	Info
	Inner          expr.Expr
	OuterKey       *expr.Lambda
	InnerKey       *expr.Lambda
	ResultSelector *expr.Lambda
}

// GroupJoinNode correlates each item with its matching inner items.
type GroupJoinNode struct {
	Info
	Inner          expr.Expr
	OuterKey       *expr.Lambda
	InnerKey       *expr.Lambda
	ResultSelector *expr.Lambda
}

// SelectManyNode flattens the sequence Collection yields for each item.
// ResultSelector is nil for the one-lambda form.
type SelectManyNode struct {
	Info
	Collection     *expr.Lambda
	ResultSelector *expr.Lambda
}

// LetNode binds Value to a new item; ResultSelector combines the current
// item with it.
type LetNode struct {
	Info
	Value          *expr.Lambda
	ResultSelector *expr.Lambda
}

// ResultKind identifies the operator a ResultOpNode becomes.
type ResultKind int

const (
	ResultDistinct ResultKind = iota
	ResultReverse
	ResultTake
	ResultSkip
	ResultCount
	ResultLongCount
	ResultSum
	ResultMin
	ResultMax
	ResultAverage
	ResultFirst
	ResultLast
	ResultSingle
	ResultAny
	ResultAll
	ResultContains
	ResultDefaultIfEmpty
	ResultCast
	ResultOfType
	ResultGroupBy
	ResultUnion
	ResultConcat
	ResultIntersect
	ResultExcept
	ResultAggregate
)

// ResultOpNode becomes a result operator. Which fields are set depends on
// Kind:
//   - Arg: Take/Skip count, Contains item, DefaultIfEmpty value, the second
//     sequence of set operators, the Aggregate seed
//   - Lambda: All predicate, GroupBy key selector, Aggregate fold
//   - Lambda2: GroupBy element selector, Aggregate result selector
//   - TypeArg: Cast/OfType target type
type ResultOpNode struct {
	Info
	Kind      ResultKind
	OrDefault bool
	Arg       expr.Expr
	Lambda    *expr.Lambda
	Lambda2   *expr.Lambda
	TypeArg   string
}

func (*MainSourceNode) node() {}
func (*WhereNode) node()      {}
func (*SelectNode) node()     {}
func (*OrderByNode) node()    {}
func (*JoinNode) node()       {}
func (*GroupJoinNode) node()  {}
func (*SelectManyNode) node() {}
func (*LetNode) node()        {}
func (*ResultOpNode) node()   {}

// IsResultOperator reports whether n becomes a result operator.
func IsResultOperator(n Node) bool {
	_, ok := n.(*ResultOpNode)
	return ok
}

// FirstParam returns the first parameter of the node's first lambda, used
// to name a model's main item after a clause boundary.
func FirstParam(n Node) *expr.Param {
	var lam *expr.Lambda
	switch n := n.(type) {
	case *WhereNode:
		lam = n.Predicate
	case *SelectNode:
		lam = n.Selector
	case *OrderByNode:
		lam = n.KeySelector
	case *JoinNode:
		lam = n.OuterKey
	case *GroupJoinNode:
		lam = n.OuterKey
	case *SelectManyNode:
		lam = n.Collection
	case *LetNode:
		lam = n.Value
	case *ResultOpNode:
		lam = n.Lambda
		if n.Kind == ResultAggregate && lam != nil && len(lam.Params) > 1 {
			return lam.Params[1]
		}
	}
	if lam == nil || len(lam.Params) == 0 {
		return nil
	}
	return lam.Params[0]
}

// ItemParam returns the parameter that names the item call operates on:
// the first parameter of its first lambda argument, or the second one for
// two-parameter folds such as Aggregate. It returns nil when call has no
// lambda argument.
func ItemParam(call *expr.Chain) *expr.Param {
	for _, a := range call.Args {
		lam, ok := a.(*expr.Lambda)
		if !ok || len(lam.Params) == 0 {
			continue
		}
		if len(lam.Params) == 2 && call.Method.Name == "Aggregate" {
			return lam.Params[1]
		}
		return lam.Params[0]
	}
	return nil
}
