package eval

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
)

func newTestEvaluator() *Evaluator {
	return New(nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestFoldsConstantArithmetic(t *testing.T) {
	out, err := newTestEvaluator().Process(expr.Add(expr.Int(2), expr.Int(3)))
	require.NoError(t, err)

	lit, ok := out.(*expr.Literal)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, ir.Int(5), lit.Value)
}

func TestFoldsCapturedButNeverParameter(t *testing.T) {
	x := expr.Capture("x", 10)
	where := expr.Seq("items", "int").Op("Where", expr.Lam1("i", func(i *expr.Param) expr.Expr {
		return expr.Gt(i, x)
	}))

	out, err := newTestEvaluator().Process(where)
	require.NoError(t, err)
	assert.Equal(t, "items.Where(i => (i > 10))", expr.String(out))

	// Parameter identity survives folding.
	lam := out.(*expr.Chain).Args[0].(*expr.Lambda)
	cmp := lam.Body.(*expr.Binary)
	assert.Same(t, lam.Params[0], cmp.Left)
	assert.Same(t, where.Args[0].(*expr.Lambda).Params[0], lam.Params[0])
}

func TestFoldsLambdaBodyIgnoringItsParameters(t *testing.T) {
	lam := expr.Lam1("p", func(*expr.Param) expr.Expr {
		return expr.Mul(expr.Capture("k", 2), expr.Int(21))
	})

	out, err := newTestEvaluator().Process(lam)
	require.NoError(t, err)

	got, ok := out.(*expr.Lambda)
	require.True(t, ok, "lambda node itself is never replaced")
	assert.Equal(t, "p => 42", expr.String(got))
}

func TestLargestSubtreeIsFolded(t *testing.T) {
	p := expr.P("p")
	e := expr.And(
		expr.Gt(expr.M(p, "age"), expr.Add(expr.Capture("base", 10), expr.Int(8))),
		expr.Eq(expr.CallOf("ToUpper", expr.Str("ann")), expr.M(p, "name")),
	)

	out, err := newTestEvaluator().Process(e)
	require.NoError(t, err)
	assert.Equal(t, `((p.age > 18) && ("ANN" == p.name))`, expr.String(out))
}

func TestNeverFolds(t *testing.T) {
	tests := []struct {
		name string
		e    expr.Expr
	}{
		{"opaque capture", expr.Opaque("conn")},
		{"sequence", expr.Seq("people", "Person")},
		{"chain", expr.Seq("people", "Person").Op("Count")},
		{"unknown function", expr.CallOf("Rand", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newTestEvaluator().Process(tt.e)
			require.NoError(t, err)
			assert.Same(t, tt.e, out)
		})
	}
}

func TestHostFailurePropagatesUnchanged(t *testing.T) {
	boom := errors.New("boom")
	bad := &expr.Captured{Name: "bad", Value: func() (any, error) { return nil, boom }}

	_, err := newTestEvaluator().Process(expr.Add(bad, expr.Int(1)))
	assert.Same(t, boom, err)

	_, err = newTestEvaluator().Process(expr.Bin(expr.OpDiv, expr.Int(1), expr.Int(0)))
	assert.Same(t, ErrDivideByZero, err)
}

func TestProcessIsIdempotent(t *testing.T) {
	ev := newTestEvaluator()
	tree := expr.Seq("people", "Person").Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr {
		return expr.Gt(expr.M(p, "age"), expr.Add(expr.Capture("a", 1), expr.Int(1)))
	}))

	once, err := ev.Process(tree)
	require.NoError(t, err)
	twice, err := ev.Process(once)
	require.NoError(t, err)
	assert.Same(t, once, twice)
}

func TestCustomFunctions(t *testing.T) {
	in := NewInterpreter(map[string]Func{
		"Double": func(args []ir.Value) (ir.Value, error) {
			return args[0].(ir.Int) * 2, nil
		},
	})
	out, err := New(in).Process(expr.CallOf("Double", expr.Int(21)))
	require.NoError(t, err)
	assert.Equal(t, "42", expr.String(out))
}
