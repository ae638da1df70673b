package eval

import (
	"log/slog"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
)

// Host evaluates self-contained expressions on behalf of the evaluator.
type Host interface {
	// CanEvaluate reports whether the host can compute n once its children
	// are known values. It is asked about each node individually.
	CanEvaluate(n expr.Expr) bool

	// Evaluate computes the value of a self-contained expression.
	Evaluate(e expr.Expr) (ir.Value, error)
}

// Evaluator folds the largest self-contained subtrees of an expression into
// literals. It is safe for concurrent use if its Host is.
type Evaluator struct {
	host   Host
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger for folding diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(ev *Evaluator) {
		ev.logger = l
	}
}

// New creates an evaluator backed by host. A nil host means the default
// Interpreter.
func New(host Host, opts ...Option) *Evaluator {
	if host == nil {
		host = NewInterpreter()
	}
	ev := &Evaluator{host: host, logger: slog.Default()}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Name identifies the evaluator as a pipeline stage.
func (ev *Evaluator) Name() string { return "partial-evaluation" }

// Process returns e with every maximal self-contained subtree folded.
// The input is not modified.
func (ev *Evaluator) Process(e expr.Expr) (expr.Expr, error) {
	sc := ev.selfContained(e)
	folded := 0
	out, err := ev.fold(e, sc, &folded)
	if err != nil {
		return nil, err
	}
	if folded > 0 {
		ev.logger.Debug("folded self-contained subtrees", "count", folded)
	}
	return out, nil
}

// selfContained computes the self-containment of every node of e.
func (ev *Evaluator) selfContained(e expr.Expr) map[expr.Expr]bool {
	marks := make(map[expr.Expr]bool)
	var visit func(expr.Expr) bool
	visit = func(n expr.Expr) bool {
		if n == nil {
			return true
		}
		ok := true
		for _, c := range expr.Children(n) {
			// Visit every child even after a failure so nested lambda
			// bodies get their own marks.
			if !visit(c) {
				ok = false
			}
		}
		switch n.(type) {
		case *expr.Param, *expr.Lambda, *expr.Sequence, *expr.Chain,
			*expr.SubQuery, *expr.SourceRef:
			ok = false
		default:
			ok = ok && ev.host.CanEvaluate(n)
		}
		marks[n] = ok
		return ok
	}
	visit(e)
	return marks
}

func (ev *Evaluator) fold(n expr.Expr, sc map[expr.Expr]bool, folded *int) (expr.Expr, error) {
	if n == nil {
		return nil, nil
	}
	if sc[n] {
		if _, ok := n.(*expr.Literal); ok {
			return n, nil
		}
		v, err := ev.host.Evaluate(n)
		if err != nil {
			return nil, err
		}
		*folded++
		return expr.Lit(v), nil
	}

	kids := expr.Children(n)
	if len(kids) == 0 {
		return n, nil
	}
	next := make([]expr.Expr, len(kids))
	for i, c := range kids {
		out, err := ev.fold(c, sc, folded)
		if err != nil {
			return nil, err
		}
		next[i] = out
	}
	return expr.WithChildren(n, next), nil
}
