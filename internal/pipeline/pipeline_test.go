package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/expr"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultPipelineEvaluatesThenRewrites(t *testing.T) {
	p := Default(discard())
	assert.Equal(t, []string{"partial-evaluation", "rewrite"}, p.Stages())

	// Folding the capture exposes a constant conditional for the rewriter.
	tree := expr.Seq("people", "Person").Op("Where", expr.Lam1("x", func(x *expr.Param) expr.Expr {
		return expr.If(expr.Capture("strict", true),
			expr.Not(expr.Le(expr.M(x, "age"), expr.Int(17))),
			expr.Bool(true))
	}))

	out, err := p.Process(tree)
	require.NoError(t, err)
	assert.Equal(t, "people.Where(x => (x.age > 17))", expr.String(out))
}

func TestPipelineIsIdempotent(t *testing.T) {
	p := Default(discard())
	tree := expr.Seq("s", "int").Op("Where", expr.Lam1("i", func(i *expr.Param) expr.Expr {
		return expr.And(expr.Gt(i, expr.Add(expr.Int(2), expr.Int(3))), expr.Not(expr.Not(expr.Bool(true))))
	}))

	once, err := p.Process(tree)
	require.NoError(t, err)
	twice, err := p.Process(once)
	require.NoError(t, err)
	assert.Equal(t, expr.String(once), expr.String(twice))
	assert.Equal(t, "s.Where(i => (i > 5))", expr.String(once))
}

func TestStageErrorIsReturnedUnchanged(t *testing.T) {
	boom := errors.New("host failure")
	ran := false
	p := New(discard(),
		ProcessorFunc{Label: "fail", Fn: func(expr.Expr) (expr.Expr, error) { return nil, boom }},
		ProcessorFunc{Label: "after", Fn: func(e expr.Expr) (expr.Expr, error) { ran = true; return e, nil }},
	)

	_, err := p.Process(expr.Int(1))
	assert.Same(t, boom, err)
	assert.False(t, ran)
}

func TestPipelinesNest(t *testing.T) {
	inner := New(discard(), ProcessorFunc{Label: "to-zero", Fn: func(expr.Expr) (expr.Expr, error) {
		return expr.Int(0), nil
	}})
	outer := New(discard(), inner)

	out, err := outer.Process(expr.Int(9))
	require.NoError(t, err)
	assert.Equal(t, "0", expr.String(out))
}
