package parser

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/nodes"
	"github.com/roach88/qchain/internal/qerr"
	"github.com/roach88/qchain/internal/querymodel"
)

func testParser(opts ...Option) *Parser {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

func people() *expr.Sequence { return expr.Seq("people", "Person") }
func orders() *expr.Sequence { return expr.Seq("orders", "Order") }

func adultNames() *expr.Chain {
	return expr.Seq("S", "Person").
		Op("Where", expr.Lam1("x", func(x *expr.Param) expr.Expr { return expr.Gt(expr.M(x, "Age"), expr.Int(5)) })).
		Op("Select", expr.Lam1("x", func(x *expr.Param) expr.Expr { return expr.M(x, "Name") }))
}

func TestParseEndToEnd(t *testing.T) {
	qm, err := testParser().Parse(adultNames())
	require.NoError(t, err)

	assert.Equal(t, "from x in S where ([x].Age > 5) select [x].Name", qm.String())
	assert.Empty(t, qm.ResultOperators())
	assert.Equal(t, querymodel.OutputSequence, qm.Output().Kind)
}

func TestParseIsDeterministic(t *testing.T) {
	p := testParser()
	chain := adultNames().Op("Distinct").Op("Take", expr.Int(10))

	first, err := p.Parse(chain)
	require.NoError(t, err)
	second, err := p.Parse(chain)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Describe(), second.Describe()); diff != "" {
		t.Errorf("parses differ (-first +second):\n%s", diff)
	}
	fp1, err := first.Fingerprint()
	require.NoError(t, err)
	fp2, err := second.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	assert.NotSame(t, first.MainFrom, second.MainFrom)
}

func TestParseFoldsCapturedValues(t *testing.T) {
	chain := people().Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr {
		return expr.Gt(expr.M(p, "Age"), expr.Capture("minAge", 30))
	}))

	qm, err := testParser().Parse(chain)
	require.NoError(t, err)
	assert.Equal(t, "from p in people where ([p].Age > 30) select [p]", qm.String())

	qm, err = testParser(WithPipeline(nil)).Parse(chain)
	require.NoError(t, err)
	assert.Equal(t, "from p in people where ([p].Age > value(minAge)) select [p]", qm.String())
}

func TestParseAppliesRewriteRules(t *testing.T) {
	chain := people().Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr {
		return expr.Not(expr.Not(expr.M(p, "Active")))
	}))

	qm, err := testParser().Parse(chain)
	require.NoError(t, err)
	assert.Equal(t, "from p in people where [p].Active select [p]", qm.String())
}

func TestParseReturnsHostErrorsUnchanged(t *testing.T) {
	boom := errors.New("boom")
	chain := people().Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr {
		return expr.Gt(expr.M(p, "Age"), &expr.Captured{Name: "limit", Value: func() (any, error) { return nil, boom }})
	}))

	_, err := testParser().Parse(chain)
	assert.Same(t, boom, err)
}

func TestParseUnsupportedOperation(t *testing.T) {
	chain := people().
		Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr { return expr.M(p, "Active") })).
		Op("Zip", orders())

	_, err := testParser().Parse(chain)
	require.Error(t, err)

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, qerr.CodeUnsupportedOperation, qe.Code)
	assert.Equal(t, "Queryable.Zip/2", qe.Signature)
	assert.Equal(t, 2, qe.Position)
	assert.Equal(t, "people.Where(p => p.Active).Zip(orders)", qe.Chain)
}

func TestParseRejectedOverload(t *testing.T) {
	_, err := testParser().Parse(people().Op("Take", expr.Lam1("p", func(p *expr.Param) expr.Expr { return p })))

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, qerr.CodeUnsupportedOperation, qe.Code)
	assert.Equal(t, 1, qe.Position)
	assert.Contains(t, qe.Message, "Take does not accept this call")
}

func TestParseRejectsNonChain(t *testing.T) {
	_, err := testParser().Parse(people())
	assert.True(t, qerr.IsUnsupportedOperation(err))
}

func TestParseNestedSubquery(t *testing.T) {
	chain := people().Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr {
		return orders().Op("Any", expr.Lam1("o", func(o *expr.Param) expr.Expr {
			return expr.Eq(expr.M(o, "PersonID"), expr.M(p, "ID"))
		}))
	}))

	qm, err := testParser().Parse(chain)
	require.NoError(t, err)

	assert.Equal(t,
		"from p in people where {from o in orders where ([o].PersonID == [p].ID) select [o] => Any()} select [p]",
		qm.String())

	where := qm.BodyClauses()[0].(*querymodel.WhereClause)
	sq, ok := where.Predicate.(*expr.SubQuery)
	require.True(t, ok)
	inner := sq.Model.(*querymodel.QueryModel)
	assert.Equal(t, querymodel.OutputScalar, inner.Output().Kind)
}

func TestParseNestedUnsupportedOperation(t *testing.T) {
	chain := people().Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr {
		return orders().Op("Zip", people()).Op("Any")
	}))

	_, err := testParser().Parse(chain)

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "Queryable.Zip/2", qe.Signature)
	assert.Equal(t, 1, qe.Position)
}

func TestParseFlattensSelectMany(t *testing.T) {
	chain := people().Op("SelectMany",
		expr.Lam1("p", func(p *expr.Param) expr.Expr {
			return expr.Seq("pets", "Pet").Op("Where", expr.Lam1("q", func(q *expr.Param) expr.Expr {
				return expr.Eq(expr.M(q, "Owner"), expr.M(p, "Name"))
			}))
		}),
		expr.Lam2("p", "q", func(p, q *expr.Param) expr.Expr {
			return expr.NewOf(expr.F("owner", expr.M(p, "Name")), expr.F("pet", expr.M(q, "Name")))
		}))

	qm, err := testParser().Parse(chain)
	require.NoError(t, err)

	assert.Equal(t,
		"from p in people from q in pets where ([q].Owner == [p].Name) select new {owner = [p].Name, pet = [q].Name}",
		qm.String())
}

func TestParseLogsFingerprint(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	qm, err := New(WithLogger(logger)).Parse(adultNames())
	require.NoError(t, err)
	fp, err := qm.Fingerprint()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "parsed query model")
	assert.Contains(t, out, "fingerprint="+fp)
	assert.NotContains(t, out, "fingerprint_error")
}

func TestParseResultOperatorOverGroups(t *testing.T) {
	chain := people().
		Op("GroupBy", expr.Lam1("p", func(p *expr.Param) expr.Expr { return expr.M(p, "City") })).
		Op("All", expr.Lam1("g", func(g *expr.Param) expr.Expr { return expr.Ne(expr.M(g, "Key"), expr.Str("")) }))

	qm, err := testParser().Parse(chain)
	require.NoError(t, err)

	assert.Equal(t,
		`from g in {from p in people select [p] => GroupBy([p].City, [p])} select [g] => All(([g].Key != ""))`,
		qm.String())
	all := qm.ResultOperators()[0].(*querymodel.AllOp)
	ref := all.Predicate.(*expr.Binary).Left.(*expr.Member).Target.(*expr.SourceRef)
	assert.Same(t, qm.MainFrom, ref.Source)
}

func TestParseGeneratesUniqueNames(t *testing.T) {
	chain := people().Op("Take", expr.Int(1))

	qm, err := testParser().Parse(chain)
	require.NoError(t, err)
	assert.Equal(t, "from <generated>_0 in people select [<generated>_0] => Take(1)", qm.String())

	qm, err = testParser(WithKnownIdentifiers("<generated>_0")).Parse(chain)
	require.NoError(t, err)
	assert.Equal(t, "<generated>_1", qm.MainFrom.Name)
}

func TestParseCustomCatalog(t *testing.T) {
	cat := nodes.NewCatalogBuilder().Build()
	_, err := testParser(WithCatalog(cat)).Parse(adultNames())
	assert.True(t, qerr.IsUnsupportedOperation(err))
}

func TestParsedModelClone(t *testing.T) {
	chain := people().Op("Where", expr.Lam1("p", func(p *expr.Param) expr.Expr {
		return orders().Op("Any", expr.Lam1("o", func(o *expr.Param) expr.Expr {
			return expr.Eq(expr.M(o, "PersonID"), expr.M(p, "ID"))
		}))
	}))
	qm, err := testParser().Parse(chain)
	require.NoError(t, err)

	clone := qm.Clone()

	assert.Equal(t, qm.String(), clone.String())
	assert.NotSame(t, qm.MainFrom, clone.MainFrom)
	require.NoError(t, querymodel.CheckReferences(clone))

	orig := qm.BodyClauses()[0].(*querymodel.WhereClause).Predicate.(*expr.SubQuery)
	cloned := clone.BodyClauses()[0].(*querymodel.WhereClause).Predicate.(*expr.SubQuery)
	assert.NotSame(t, orig.Model, cloned.Model)
}

func TestParserIsSafeForConcurrentUse(t *testing.T) {
	p := testParser()
	want, err := p.Parse(adultNames())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qm, err := p.Parse(adultNames())
			if err == nil {
				results[i] = qm.String()
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want.String(), got)
	}
}

func TestUniqueIdentifierGenerator(t *testing.T) {
	g := NewUniqueIdentifierGenerator("<generated>_1")
	assert.Equal(t, "<generated>_0", g.Generate())
	assert.Equal(t, "<generated>_2", g.Generate())

	g.AddKnownIdentifier("<generated>_3")
	assert.Equal(t, "<generated>_4", g.Generate())
}
