package rewrite

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/qerr"
)

func quietEngine(reg *Registry, opts ...EngineOption) *Engine {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewEngine(reg, opts...)
}

func TestDefaultRulesNormalize(t *testing.T) {
	p := expr.P("p")
	tests := []struct {
		name string
		in   expr.Expr
		want string
	}{
		{"double negation", expr.Not(expr.Not(expr.M(p, "active"))), "p.active"},
		{"negated comparison", expr.Not(expr.Lt(expr.M(p, "age"), expr.Int(18))), "(p.age >= 18)"},
		{"triple negation", expr.Not(expr.Not(expr.Not(expr.M(p, "a")))), "!p.a"},
		{"constant conditional", expr.If(expr.Bool(false), expr.M(p, "a"), expr.M(p, "b")), "p.b"},
		{"boolean identity", expr.And(expr.Bool(true), expr.Gt(expr.M(p, "x"), expr.Int(1))), "(p.x > 1)"},
		{"transparent member", expr.M(expr.NewOf(expr.F("q", p)), "q"), "p"},
		{
			"rewrite enables parent rewrite",
			expr.Not(expr.If(expr.Bool(true), expr.Not(expr.M(p, "ok")), expr.M(p, "ko"))),
			"p.ok",
		},
	}
	engine := quietEngine(DefaultRegistry())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Process(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String(out))
		})
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	p := expr.P("p")
	tree := expr.Seq("people", "Person").Op("Where", expr.Lam([]*expr.Param{p},
		expr.And(expr.Not(expr.Not(expr.M(p, "active"))), expr.Not(expr.Eq(expr.M(p, "name"), expr.Str("x"))))))

	engine := quietEngine(DefaultRegistry())
	once, err := engine.Process(tree)
	require.NoError(t, err)
	twice, err := engine.Process(once)
	require.NoError(t, err)

	assert.Same(t, once, twice)
	assert.Equal(t, `people.Where(p => (p.active && (p.name != "x")))`, expr.String(twice))
}

func TestSpecificRulesRunInRegistrationOrder(t *testing.T) {
	var calls []string
	tag := func(name string) Rule {
		return NewRule(name, func(n expr.Expr) (expr.Expr, error) {
			calls = append(calls, name)
			return n, nil
		})
	}
	reg := NewRegistryBuilder().
		Register(tag("first"), expr.KindLiteral).
		Register(tag("second"), expr.KindLiteral).
		RegisterGeneric(tag("generic")).
		Build()

	_, err := quietEngine(reg).Process(expr.Int(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "generic"}, calls)
}

func TestKindChangeRestartsMatching(t *testing.T) {
	// literal 1 -> member -> param: the member rule must run after the
	// literal rule changes the kind.
	target := expr.P("done")
	reg := NewRegistryBuilder().
		Register(For("lit-to-member", func(l *expr.Literal) expr.Expr {
			return expr.M(expr.NewOf(expr.F("v", target)), "v")
		}), expr.KindLiteral).
		Register(TransparentMember, expr.KindMember).
		Build()

	out, err := quietEngine(reg).Process(expr.Int(1))
	require.NoError(t, err)
	assert.Same(t, target, out)
}

func TestGenericRuleChangeRestartsSpecificRules(t *testing.T) {
	p := expr.P("p")
	wrap := NewRule("wrap-param", func(n expr.Expr) (expr.Expr, error) {
		if n == expr.Expr(p) {
			return expr.Not(expr.Not(p)), nil
		}
		return n, nil
	})
	reg := NewRegistryBuilder().
		Register(DoubleNegation, expr.KindUnary).
		RegisterGeneric(wrap).
		Build()

	// The generic rule produces !!p, the unary rule folds it back to p and
	// the generic rule fires again: a cycle the step bound must catch.
	_, err := quietEngine(reg, WithMaxSteps(50)).Process(p)
	assert.ErrorIs(t, err, ErrNoFixpoint)
}

func TestMisregisteredRuleIsMismatch(t *testing.T) {
	reg := NewRegistryBuilder().
		Register(DoubleNegation, expr.KindBinary).
		Build()

	_, err := quietEngine(reg).Process(expr.Add(expr.Int(1), expr.Int(2)))
	require.Error(t, err)
	assert.True(t, qerr.IsRewriteRuleMismatch(err))
	assert.Contains(t, err.Error(), "rule=double-negation")
}

func TestRegistryIsFrozen(t *testing.T) {
	b := NewRegistryBuilder().Register(DoubleNegation, expr.KindUnary)
	reg := b.Build()
	b.Register(NegatedComparison, expr.KindUnary)

	assert.Len(t, reg.Rules(expr.KindUnary), 1)
	assert.Equal(t, 1, reg.Len())
	assert.Empty(t, reg.Rules(expr.KindLambda))
}
