package querymodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/qerr"
)

func TestCheckReferencesAcceptsClosedModel(t *testing.T) {
	qm := peopleModel()
	// Lambda parameters bound inside the expression are fine.
	qm.AddResultOperator(&AggregateOp{
		Seed: expr.Int(0),
		Func: expr.Lam1("acc", func(acc *expr.Param) expr.Expr {
			return expr.Add(acc, expr.M(expr.Ref(qm.MainFrom), "age"))
		}),
	})
	require.NoError(t, CheckReferences(qm))
}

func TestCheckReferencesDanglingPlaceholder(t *testing.T) {
	qm := peopleModel()
	stray := expr.P("x")
	qm.AddBodyClause(&WhereClause{Predicate: expr.Gt(expr.M(stray, "age"), expr.Int(5))})

	err := CheckReferences(qm)
	require.Error(t, err)
	assert.True(t, qerr.IsMalformedReference(err))
	assert.Contains(t, err.Error(), "placeholder=x")
	assert.Contains(t, err.Error(), "(x.age > 5)")
}

func TestCheckReferencesClauseOutOfScope(t *testing.T) {
	qm := peopleModel()
	foreign := NewMainFromClause("q", "Person", expr.Seq("people", "Person"))
	qm.SetSelectClause(&SelectClause{Selector: expr.Ref(foreign)})

	err := CheckReferences(qm)
	require.Error(t, err)
	assert.True(t, qerr.IsMalformedReference(err))
	assert.Contains(t, err.Error(), "placeholder=[q]")
}

func TestCheckReferencesNestedModels(t *testing.T) {
	outer := peopleModel()

	innerFrom := NewMainFromClause("o", "Order", expr.M(expr.Ref(outer.MainFrom), "orders"))
	inner := NewIdentity(innerFrom)
	outer.AddBodyClause(&WhereClause{Predicate: &expr.SubQuery{Model: inner}})
	require.NoError(t, CheckReferences(outer), "inner model may reference the outer one")

	// The outer model cannot reference the inner model's clauses.
	outer.SetSelectClause(&SelectClause{Selector: expr.Ref(innerFrom)})
	assert.True(t, qerr.IsMalformedReference(CheckReferences(outer)))
}
