package rewrite

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/qchain/internal/expr"
)

// DefaultMaxSteps bounds the number of successful rewrites in one Process
// call. Rule sets that rewrite forever hit it instead of hanging.
const DefaultMaxSteps = 10000

// ErrNoFixpoint is returned when the step bound is exceeded.
var ErrNoFixpoint = errors.New("rewrite rules did not reach a fixpoint")

// Engine applies a Registry to expression trees.
//
// Nodes are visited depth-first, children before parents. For each node the
// rules registered for its current kind are tried in registration order;
// the first rule returning a different node wins and the replacement is
// visited again from scratch, so a rule that changes the node's kind is
// followed by the new kind's rules. When no kind rule applies, generic
// rules are tried in order with the same restart behavior.
//
// The engine does not descend into nested query models.
type Engine struct {
	registry *Registry
	maxSteps int
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithLogger sets the logger used to trace rule applications.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine over registry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the engine as a pipeline stage.
func (e *Engine) Name() string { return "rewrite" }

// Process rewrites tree to its normal form under the registry.
func (e *Engine) Process(tree expr.Expr) (expr.Expr, error) {
	steps := 0
	return e.visit(tree, &steps)
}

func (e *Engine) visit(n expr.Expr, steps *int) (expr.Expr, error) {
	if n == nil {
		return nil, nil
	}

	if kids := expr.Children(n); len(kids) > 0 {
		next := make([]expr.Expr, len(kids))
		for i, c := range kids {
			out, err := e.visit(c, steps)
			if err != nil {
				return nil, err
			}
			next[i] = out
		}
		n = expr.WithChildren(n, next)
	}

	replaced, rule, err := e.applyFirst(n, e.registry.Rules(n.Kind()))
	if err != nil {
		return nil, err
	}
	if replaced == nil {
		replaced, rule, err = e.applyFirst(n, e.registry.Generic())
		if err != nil {
			return nil, err
		}
	}
	if replaced == nil {
		return n, nil
	}

	*steps++
	if *steps > e.maxSteps {
		return nil, fmt.Errorf("%w after %d steps (last rule %s)", ErrNoFixpoint, e.maxSteps, rule)
	}
	e.logger.Debug("rewrite applied", "rule", rule, "from", n.Kind(), "to", replaced.Kind())
	return e.visit(replaced, steps)
}

// applyFirst returns the result of the first rule that changes n, or nil.
func (e *Engine) applyFirst(n expr.Expr, rules []Rule) (expr.Expr, string, error) {
	for _, r := range rules {
		out, err := r.Apply(n)
		if err != nil {
			return nil, r.Name(), err
		}
		if out != nil && out != n {
			return out, r.Name(), nil
		}
	}
	return nil, "", nil
}
