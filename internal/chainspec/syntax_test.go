package chainspec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/expr"
)

func testEnv() Environment {
	return Environment{
		Sources: map[string]string{"people": "person", "orders": "order"},
		Params:  map[string]any{"minAge": 18, "prefix": "A"},
	}
}

func TestParseChainRendering(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"where select", "people.Where(p => p.age >= 18).Select(p => p.name)", "people.Where(p => (p.age >= 18)).Select(p => p.name)"},
		{"precedence", "people.Where(p => p.a + p.b * 2 > 3 && !p.ok || p.c)", "people.Where(p => ((((p.a + (p.b * 2)) > 3) && !p.ok) || p.c))"},
		{"coalesce binds loosest", "people.Select(p => p.nick ?? p.name == \"x\")", "people.Select(p => (p.nick ?? (p.name == \"x\")))"},
		{"conditional", "people.Select(p => p.age > 60 ? \"old\" : \"young\")", "people.Select(p => ((p.age > 60) ? \"old\" : \"young\"))"},
		{"negative literal", "people.Where(p => p.balance > -5)", "people.Where(p => (p.balance > -5))"},
		{"anonymous object", "people.Select(p => new {n = p.name, p})", "people.Select(p => new {n = p.name, p = p})"},
		{"captured param", "people.Where(p => p.age >= minAge)", "people.Where(p => (p.age >= value(minAge)))"},
		{"two param lambda", "people.Join(orders, p => p.id, o => o.personId, (p, o) => new {p, o})", "people.Join(orders, p => p.id, o => o.personId, (p, o) => new {p = p, o = o})"},
		{"host method", "people.Where(p => p.name.StartsWith(prefix))", "people.Where(p => p.name.StartsWith(value(prefix)))"},
		{"free function", "people.Select(p => Abs(p.balance))", "people.Select(p => Abs(p.balance))"},
		{"nested chain", "people.Where(p => orders.Where(o => o.personId == p.id).Any())", "people.Where(p => orders.Where(o => (o.personId == p.id)).Any())"},
		{"literals", "people.Select(p => new {t = true, f = false, n = null, x = 1.5, s = 'it\\'s'})", "people.Select(p => new {t = true, f = false, n = null, x = 1.5, s = \"it's\"})"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseChain(tt.src, testEnv())
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String(e))
		})
	}
}

func TestParseChainBuildsOperatorCalls(t *testing.T) {
	e, err := ParseChain("people.Where(p => p.ok).Cast<string>().Take(3)", testEnv())
	require.NoError(t, err)

	take, ok := e.(*expr.Chain)
	require.True(t, ok)
	calls := expr.Calls(take)
	require.Len(t, calls, 3)

	assert.Equal(t, "Where", calls[0].Method.Name)
	assert.Equal(t, expr.OwnerQueryable, calls[0].Method.Owner)
	assert.Equal(t, []string{"string"}, calls[1].Method.TypeArgs)
	assert.Equal(t, "Queryable.Cast`1/1", calls[1].Signature().String())

	seq, ok := expr.Terminal(take).(*expr.Sequence)
	require.True(t, ok)
	assert.Equal(t, "people", seq.Name)
	assert.Equal(t, "person", seq.ElemType)
}

func TestParseChainLambdaParamIdentity(t *testing.T) {
	e, err := ParseChain("people.Where(p => p.age > p.limit)", testEnv())
	require.NoError(t, err)

	lam := e.(*expr.Chain).Args[0].(*expr.Lambda)
	body := lam.Body.(*expr.Binary)
	assert.Same(t, lam.Params[0], body.Left.(*expr.Member).Target)
	assert.Same(t, lam.Params[0], body.Right.(*expr.Member).Target)
}

func TestParseChainInnerLambdaShadows(t *testing.T) {
	e, err := ParseChain("people.Where(p => orders.Any(p => p.total > 0))", testEnv())
	require.NoError(t, err)

	outer := e.(*expr.Chain).Args[0].(*expr.Lambda)
	inner := outer.Body.(*expr.Chain).Args[0].(*expr.Lambda)
	member := inner.Body.(*expr.Binary).Left.(*expr.Member)
	assert.Same(t, inner.Params[0], member.Target)
	assert.NotSame(t, outer.Params[0], member.Target)
}

func TestParseChainMethodOrOperator(t *testing.T) {
	// Contains is both a host function and an operator: on a member it is
	// the host function, on a sequence it is the operator.
	e, err := ParseChain("people.Where(p => p.name.Contains(\"a\"))", testEnv())
	require.NoError(t, err)
	body := e.(*expr.Chain).Args[0].(*expr.Lambda).Body
	_, isCall := body.(*expr.Call)
	assert.True(t, isCall)

	e, err = ParseChain("people.Select(p => p.name).Contains(\"a\")", testEnv())
	require.NoError(t, err)
	assert.Equal(t, "Contains", e.(*expr.Chain).Method.Name)

	e, err = ParseChain("people.Where(p => p.pets.Count() > 1)", testEnv())
	require.NoError(t, err)
	body = e.(*expr.Chain).Args[0].(*expr.Lambda).Body
	_, isChain := body.(*expr.Binary).Left.(*expr.Chain)
	assert.True(t, isChain)
}

func TestParseChainLessThanIsNotTypeArgs(t *testing.T) {
	e, err := ParseChain("people.Where(p => p.a < minAge)", testEnv())
	require.NoError(t, err)
	assert.Equal(t, "people.Where(p => (p.a < value(minAge)))", expr.String(e))
}

func TestParseChainErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		line int
		col  int
	}{
		{"undefined identifier", "customers.Take(1)", `undefined identifier "customers"`, 1, 1},
		{"unknown function", "people.Select(p => Frob(p))", `unknown function "Frob"`, 1, 20},
		{"unterminated string", "people.Where(p => p.name == \"ab", "string literal is not closed", 1, 29},
		{"trailing tokens", "people.Take(1) )", "unexpected ')' after expression", 1, 16},
		{"missing paren", "people.Take(1", "expected ',' or ')' in argument list", 1, 14},
		{"second line", "people\n  .Where(p => p.x ==)", "unexpected ')'", 2, 21},
		{"duplicate field", "people.Select(p => new {a = 1, a = 2})", `duplicate field "a"`, 1, 32},
		{"bad character", "people.Where(p => p.x # 1)", "unexpected character '#'", 1, 23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChain(tt.src, testEnv())
			require.Error(t, err)

			var se *SyntaxError
			require.True(t, errors.As(err, &se), "got %T", err)
			assert.Contains(t, se.Message, tt.msg)
			assert.Equal(t, tt.line, se.Line)
			assert.Equal(t, tt.col, se.Column)
		})
	}
}

func TestParseChainCustomOperators(t *testing.T) {
	env := testEnv()
	env.Operators = []string{"Where"}

	e, err := ParseChain("people.Where(p => p.ok).Zip(orders)", env)
	require.NoError(t, err)
	_, isCall := e.(*expr.Call)
	assert.True(t, isCall, "Zip is not an operator in this environment")
}
