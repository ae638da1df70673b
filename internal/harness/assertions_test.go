package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/qchain/internal/ir"
)

func TestMatchSubset(t *testing.T) {
	actual := ir.Object{"name": ir.String("Ann"), "age": ir.Int(30), "tags": ir.Array{ir.String("a")}}

	assert.True(t, matchSubset(actual, ir.Object{"name": ir.String("Ann")}))
	assert.True(t, matchSubset(actual, ir.Object{}))
	assert.False(t, matchSubset(actual, ir.Object{"name": ir.String("Bob")}))
	assert.False(t, matchSubset(actual, ir.Object{"city": ir.String("Oslo")}))
	assert.False(t, matchSubset(ir.String("Ann"), ir.Object{"name": ir.String("Ann")}))
	assert.True(t, matchSubset(ir.Int(3), ir.Int(3)))
}

func TestValuesEqual_NumericForms(t *testing.T) {
	assert.True(t, valuesEqual(ir.Int(2), ir.Float(2)))
	assert.False(t, valuesEqual(ir.Int(2), ir.Float(2.5)))
	assert.True(t, valuesEqual(ir.Null{}, ir.Null{}))
	assert.False(t, valuesEqual(ir.Null{}, ir.Bool(false)))
}

func TestEvaluateAssertions_ErrorCase(t *testing.T) {
	cr := &CaseResult{
		Name:      "c",
		Chain:     "people.First()",
		Model:     "from p in people select [p] => First()",
		SQL:       "SELECT item FROM t LIMIT 1",
		ErrorCode: CodeEmpty,
		Error:     "sequence contains no elements",
	}

	assert.Empty(t, EvaluateAssertions(cr, []Assertion{
		{Type: AssertError, Code: CodeEmpty},
		{Type: AssertError, Text: "no elements"},
		{Type: AssertSQLContains, Text: "LIMIT 1"},
		{Type: AssertModelEquals, Text: "from p in people select [p] => First()"},
	}))

	errs := EvaluateAssertions(cr, []Assertion{
		{Type: AssertResultCount, Count: 1},
		{Type: AssertError, Code: CodeNotSingle},
		{Type: "bogus"},
	})
	assert.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Actual: error EMPTY_SEQUENCE: sequence contains no elements")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

func TestEvaluateAssertions_ValueCase(t *testing.T) {
	cr := &CaseResult{
		Name:     "c",
		Model:    "from p in people select [p].name",
		Value:    ir.Array{ir.String("Ann"), ir.String("Bob")},
		Warnings: []string{"Reverse without ordering"},
	}

	assert.Empty(t, EvaluateAssertions(cr, []Assertion{
		{Type: AssertResultEquals, Expect: []any{"Ann", "Bob"}},
		{Type: AssertResultCount, Count: 2},
		{Type: AssertResultContains, Expect: "Bob"},
	}))

	errs := EvaluateAssertions(cr, []Assertion{
		{Type: AssertPortable},
		{Type: AssertError, Code: CodeEmpty},
		{Type: AssertResultContains, Expect: "Cid"},
	})
	assert.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Reverse without ordering")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: "result_count", Expected: "2 items", Actual: "3 items", Chain: "people"}
	assert.Equal(t,
		"Assertion failed: result_count\n  Expected: 2 items\n  Actual: 3 items\n  Chain: people\n",
		err.Error())
}
