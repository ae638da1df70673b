// Package rewrite implements the kind-indexed rewrite registry and the engine
// that applies it to an expression tree until no rule changes anything.
package rewrite

import (
	"fmt"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/qerr"
)

// Rule is a pure node-to-node rewrite. Returning the input node (the same
// pointer) means the rule does not apply.
type Rule interface {
	Name() string
	Apply(n expr.Expr) (expr.Expr, error)
}

type funcRule struct {
	name string
	fn   func(expr.Expr) (expr.Expr, error)
}

func (r funcRule) Name() string                         { return r.name }
func (r funcRule) Apply(n expr.Expr) (expr.Expr, error) { return r.fn(n) }

// NewRule wraps fn as a Rule. fn sees every node of the kinds it is
// registered for and must handle their shapes itself.
func NewRule(name string, fn func(expr.Expr) (expr.Expr, error)) Rule {
	return funcRule{name: name, fn: fn}
}

// For builds a rule over one concrete node type. Invoking it on a node of
// any other type is a registration defect and fails with a
// RewriteRuleMismatch error.
func For[T expr.Expr](name string, fn func(T) expr.Expr) Rule {
	return funcRule{name: name, fn: func(n expr.Expr) (expr.Expr, error) {
		typed, ok := n.(T)
		if !ok {
			var want T
			return nil, qerr.NewRewriteRuleMismatch(name,
				fmt.Sprintf("expected %T, got %T (%s)", want, n, n.Kind()))
		}
		return fn(typed), nil
	}}
}
