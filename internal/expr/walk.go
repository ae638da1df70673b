package expr

import "fmt"

// Children returns the direct subexpressions of e in a fixed order.
// Lambda parameters are declarations, not children. A SubQuery has no
// children: its model is reached through Model.TransformExpressions.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Lambda:
		return []Expr{n.Body}
	case *Member:
		return []Expr{n.Target}
	case *Call:
		out := make([]Expr, 0, len(n.Args)+1)
		if n.Target != nil {
			out = append(out, n.Target)
		}
		return append(out, n.Args...)
	case *Binary:
		return []Expr{n.Left, n.Right}
	case *Unary:
		return []Expr{n.Operand}
	case *Conditional:
		return []Expr{n.Test, n.Then, n.Else}
	case *New:
		out := make([]Expr, len(n.Fields))
		for i, f := range n.Fields {
			out[i] = f.Value
		}
		return out
	case *Chain:
		out := make([]Expr, 0, len(n.Args)+1)
		out = append(out, n.Source)
		return append(out, n.Args...)
	default:
		return nil
	}
}

// WithChildren returns e with its children replaced, in Children order.
// If every child is identical to the current one, e itself is returned.
func WithChildren(e Expr, children []Expr) Expr {
	current := Children(e)
	if len(current) != len(children) {
		panic(fmt.Sprintf("expr: %s has %d children, got %d", e.Kind(), len(current), len(children)))
	}
	same := true
	for i := range current {
		if current[i] != children[i] {
			same = false
			break
		}
	}
	if same {
		return e
	}

	switch n := e.(type) {
	case *Lambda:
		return &Lambda{Params: n.Params, Body: children[0]}
	case *Member:
		return &Member{Target: children[0], Name: n.Name, Type: n.Type}
	case *Call:
		out := &Call{Func: n.Func}
		if n.Target != nil {
			out.Target, children = children[0], children[1:]
		}
		out.Args = append([]Expr(nil), children...)
		return out
	case *Binary:
		return &Binary{Op: n.Op, Left: children[0], Right: children[1]}
	case *Unary:
		return &Unary{Op: n.Op, Operand: children[0]}
	case *Conditional:
		return &Conditional{Test: children[0], Then: children[1], Else: children[2]}
	case *New:
		fields := make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = Field{Name: f.Name, Value: children[i]}
		}
		return &New{Fields: fields}
	case *Chain:
		return &Chain{Method: n.Method, Source: children[0], Args: append([]Expr(nil), children[1:]...)}
	default:
		return e
	}
}

// Inspect traverses e depth-first in pre-order. If f returns false the
// children of that node are skipped.
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	for _, c := range Children(e) {
		Inspect(c, f)
	}
}

// Transform rebuilds e bottom-up, applying f to every node after its
// children have been transformed. Unchanged subtrees are shared with the
// input. Nested query models are left alone.
func Transform(e Expr, f func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	kids := Children(e)
	if len(kids) > 0 {
		next := make([]Expr, len(kids))
		for i, c := range kids {
			next[i] = Transform(c, f)
		}
		e = WithChildren(e, next)
	}
	return f(e)
}

// TransformDeep is Transform that also descends into nested query models.
// Nested models are updated in place.
func TransformDeep(e Expr, f func(Expr) Expr) Expr {
	return Transform(e, func(n Expr) Expr {
		if sq, ok := n.(*SubQuery); ok {
			sq.Model.TransformExpressions(func(inner Expr) Expr {
				return TransformDeep(inner, f)
			})
		}
		return f(n)
	})
}

// Replace substitutes every occurrence of old (by identity) with repl,
// including occurrences inside nested query models.
func Replace(e, old, repl Expr) Expr {
	return TransformDeep(e, func(n Expr) Expr {
		if n == old {
			return repl
		}
		return n
	})
}

// ReplaceParams substitutes parameters by identity, including inside
// nested query models.
func ReplaceParams(e Expr, repl map[*Param]Expr) Expr {
	if len(repl) == 0 {
		return e
	}
	return TransformDeep(e, func(n Expr) Expr {
		if p, ok := n.(*Param); ok {
			if r, ok := repl[p]; ok {
				return r
			}
		}
		return n
	})
}

// FreeParams returns the parameters referenced in e that no lambda inside
// e binds, in order of first appearance. Nested query models are not
// searched.
func FreeParams(e Expr) []*Param {
	var out []*Param
	seen := make(map[*Param]bool)

	var visit func(Expr, map[*Param]bool)
	visit = func(e Expr, bound map[*Param]bool) {
		switch n := e.(type) {
		case nil:
		case *Param:
			if !bound[n] && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		case *Lambda:
			inner := make(map[*Param]bool, len(bound)+len(n.Params))
			for p := range bound {
				inner[p] = true
			}
			for _, p := range n.Params {
				inner[p] = true
			}
			visit(n.Body, inner)
		default:
			for _, c := range Children(e) {
				visit(c, bound)
			}
		}
	}
	visit(e, nil)
	return out
}

// References reports whether p occurs anywhere in e.
func References(e Expr, p *Param) bool {
	found := false
	Inspect(e, func(n Expr) bool {
		if n == Expr(p) {
			found = true
		}
		return !found
	})
	return found
}
