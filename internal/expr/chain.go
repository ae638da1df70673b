package expr

import (
	"fmt"
	"strings"
)

// Default operator owners. Chains built with Op use OwnerQueryable.
const (
	OwnerQueryable  = "Queryable"
	OwnerEnumerable = "Enumerable"
)

// Method identifies a query operator: its declaring owner, its name and the
// type arguments it was closed over.
type Method struct {
	Owner    string
	Name     string
	TypeArgs []string
}

// Signature is the open-generic identity of an operator call: owner, name,
// argument count (source included) and number of type parameters. It is
// comparable and used as the exact-match key of the node-kind catalog.
type Signature struct {
	Owner      string
	Name       string
	Arity      int
	TypeParams int
}

// String renders the signature as Owner.Name`TypeParams/Arity.
func (s Signature) String() string {
	var sb strings.Builder
	if s.Owner != "" {
		sb.WriteString(s.Owner)
		sb.WriteByte('.')
	}
	sb.WriteString(s.Name)
	if s.TypeParams > 0 {
		fmt.Fprintf(&sb, "`%d", s.TypeParams)
	}
	fmt.Fprintf(&sb, "/%d", s.Arity)
	return sb.String()
}

// Chain is one call of a query operation chain. Source is the continuation:
// either a terminal (a Sequence or any non-chain expression) or another Chain.
type Chain struct {
	Method Method
	Source Expr
	Args   []Expr
}

// Signature returns the open-generic identity of the call.
func (c *Chain) Signature() Signature {
	return Signature{
		Owner:      c.Method.Owner,
		Name:       c.Method.Name,
		Arity:      1 + len(c.Args),
		TypeParams: len(c.Method.TypeArgs),
	}
}

// Op appends a Queryable operator call to the chain.
func (c *Chain) Op(name string, args ...Expr) *Chain {
	return Op(c, name, args...)
}

// Op starts a chain from this sequence.
func (s *Sequence) Op(name string, args ...Expr) *Chain {
	return Op(s, name, args...)
}

// Op builds a Queryable operator call on source.
func Op(source Expr, name string, args ...Expr) *Chain {
	return &Chain{
		Method: Method{Owner: OwnerQueryable, Name: name},
		Source: source,
		Args:   args,
	}
}

// Calls returns the calls of a chain from the source side: Calls(c)[0] is
// the innermost call and the last element is c itself.
func Calls(c *Chain) []*Chain {
	var rev []*Chain
	for cur := c; cur != nil; {
		rev = append(rev, cur)
		next, ok := cur.Source.(*Chain)
		if !ok {
			break
		}
		cur = next
	}
	out := make([]*Chain, len(rev))
	for i, call := range rev {
		out[len(rev)-1-i] = call
	}
	return out
}

// Terminal returns the non-chain source at the bottom of c.
func Terminal(c *Chain) Expr {
	return Calls(c)[0].Source
}
