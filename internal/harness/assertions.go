package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/qchain/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Chain    string // Chain text of the case, for context
	Model    string // Rendered model, if parsing succeeded
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Chain != "" {
		fmt.Fprintf(&buf, "  Chain: %s\n", e.Chain)
	}
	if e.Model != "" {
		fmt.Fprintf(&buf, "  Model: %s\n", e.Model)
	}

	return buf.String()
}

func newAssertionError(cr *CaseResult, typ, expected, actual string) *AssertionError {
	return &AssertionError{
		Type:     typ,
		Expected: expected,
		Actual:   actual,
		Chain:    cr.Chain,
		Model:    cr.Model,
	}
}

// describeOutcome renders what a case produced, for failure messages.
func describeOutcome(cr *CaseResult) string {
	if cr.Error != "" {
		return fmt.Sprintf("error %s: %s", cr.ErrorCode, cr.Error)
	}
	if cr.Value == nil {
		return "no value"
	}
	return ir.Format(cr.Value)
}

// requireValue fails assertions that need an executed value when the case
// errored.
func requireValue(cr *CaseResult, typ string) error {
	if cr.Value == nil {
		return newAssertionError(cr, typ, "a result value", describeOutcome(cr))
	}
	return nil
}

func assertResultEquals(cr *CaseResult, a Assertion) error {
	if err := requireValue(cr, a.Type); err != nil {
		return err
	}
	expected, err := convertToValue(a.Expect)
	if err != nil {
		return fmt.Errorf("result_equals: expect: %w", err)
	}
	if !valuesEqual(cr.Value, expected) {
		return newAssertionError(cr, a.Type, ir.Format(expected), ir.Format(cr.Value))
	}
	return nil
}

func assertResultCount(cr *CaseResult, a Assertion) error {
	if err := requireValue(cr, a.Type); err != nil {
		return err
	}
	arr, ok := cr.Value.(ir.Array)
	if !ok {
		return newAssertionError(cr, a.Type, "a sequence result", cr.Value.TypeName())
	}
	if len(arr) != a.Count {
		return newAssertionError(cr, a.Type, fmt.Sprintf("%d items", a.Count), fmt.Sprintf("%d items", len(arr)))
	}
	return nil
}

// assertResultContains checks that some item of the result matches the
// expected value. Objects match on the fields the expectation names.
func assertResultContains(cr *CaseResult, a Assertion) error {
	if err := requireValue(cr, a.Type); err != nil {
		return err
	}
	arr, ok := cr.Value.(ir.Array)
	if !ok {
		return newAssertionError(cr, a.Type, "a sequence result", cr.Value.TypeName())
	}
	expected, err := convertToValue(a.Expect)
	if err != nil {
		return fmt.Errorf("result_contains: expect: %w", err)
	}
	for _, item := range arr {
		if matchSubset(item, expected) {
			return nil
		}
	}
	return newAssertionError(cr, a.Type, "an item matching "+ir.Format(expected), ir.Format(cr.Value))
}

func assertModelEquals(cr *CaseResult, a Assertion) error {
	if cr.Model == "" {
		return newAssertionError(cr, a.Type, a.Text, describeOutcome(cr))
	}
	if cr.Model != a.Text {
		return newAssertionError(cr, a.Type, a.Text, cr.Model)
	}
	return nil
}

func assertSQLContains(cr *CaseResult, a Assertion) error {
	if cr.SQL == "" {
		return newAssertionError(cr, a.Type, "SQL containing "+a.Text, describeOutcome(cr))
	}
	if !strings.Contains(cr.SQL, a.Text) {
		return newAssertionError(cr, a.Type, "SQL containing "+a.Text, cr.SQL)
	}
	return nil
}

func assertPortable(cr *CaseResult, a Assertion) error {
	if cr.Model == "" {
		return newAssertionError(cr, a.Type, "a portable model", describeOutcome(cr))
	}
	if len(cr.Warnings) > 0 {
		return newAssertionError(cr, a.Type, "no portability warnings", strings.Join(cr.Warnings, "; "))
	}
	return nil
}

func assertError(cr *CaseResult, a Assertion) error {
	expected := "error"
	if a.Code != "" {
		expected += " " + a.Code
	}
	if a.Text != "" {
		expected += fmt.Sprintf(" containing %q", a.Text)
	}

	if cr.Error == "" {
		return newAssertionError(cr, a.Type, expected, describeOutcome(cr))
	}
	if a.Code != "" && cr.ErrorCode != a.Code {
		return newAssertionError(cr, a.Type, expected, describeOutcome(cr))
	}
	if a.Text != "" && !strings.Contains(cr.Error, a.Text) {
		return newAssertionError(cr, a.Type, expected, describeOutcome(cr))
	}
	return nil
}

// matchSubset checks if actual matches expected, where objects only need
// the fields expected names. Extra fields in actual are ignored.
func matchSubset(actual, expected ir.Value) bool {
	expObj, ok := expected.(ir.Object)
	if !ok {
		return valuesEqual(actual, expected)
	}
	actObj, ok := actual.(ir.Object)
	if !ok {
		return false
	}
	for key, expectedVal := range expObj {
		actualVal, exists := actObj[key]
		if !exists || !matchSubset(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values by their canonical JSON form, so an
// integral Float equals the Int of the same value.
func valuesEqual(actual, expected ir.Value) bool {
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	b, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

// EvaluateAssertions evaluates all assertions against a case result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(cr *CaseResult, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertResultEquals:
			err = assertResultEquals(cr, assertion)
		case AssertResultCount:
			err = assertResultCount(cr, assertion)
		case AssertResultContains:
			err = assertResultContains(cr, assertion)
		case AssertModelEquals:
			err = assertModelEquals(cr, assertion)
		case AssertSQLContains:
			err = assertSQLContains(cr, assertion)
		case AssertPortable:
			err = assertPortable(cr, assertion)
		case AssertError:
			err = assertError(cr, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
