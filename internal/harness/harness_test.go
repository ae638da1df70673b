package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/chainspec"
	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/qerr"
	"github.com/roach88/qchain/internal/querysql"
	"github.com/roach88/qchain/internal/store"
)

func peopleFixtures() map[string][]any {
	return map[string][]any{
		"people": {
			map[string]any{"id": 1, "name": "Ann", "age": 30},
			map[string]any{"id": 2, "name": "Bob", "age": 45},
		},
	}
}

func TestRun_ScenarioFiles(t *testing.T) {
	for _, name := range []string{"people_basics", "people_edges"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Cases, len(scenario.Cases))
		})
	}
}

func TestRunWithGolden_PeopleBasics(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "people_basics.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestRun_InlineScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Sources:     map[string]string{"people": "person"},
		Fixtures:    peopleFixtures(),
		Cases: []Case{
			{
				Name:   "names",
				Chain:  "people.Where(p => p.age > minAge).Select(p => p.name)",
				Params: map[string]any{"minAge": 40},
				Assertions: []Assertion{
					{Type: AssertResultEquals, Expect: []any{"Bob"}},
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	cr := result.Cases[0]
	assert.Equal(t, ir.Array{ir.String("Bob")}, cr.Value)
	assert.Equal(t, []any{int64(40)}, cr.Params)
	assert.NotEmpty(t, cr.Fingerprint)
	assert.Empty(t, cr.ErrorCode)
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "wrong expectations",
		Fixtures:    peopleFixtures(),
		Cases: []Case{
			{
				Name:  "count",
				Chain: "people.Count()",
				Assertions: []Assertion{
					{Type: AssertResultEquals, Expect: 5},
					{Type: AssertError, Code: "NOT_SINGLE"},
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "count: Assertion failed: result_equals")
	assert.Contains(t, result.Errors[0], "Expected: 5")
	assert.Contains(t, result.Errors[0], "Actual: 2")
	assert.Contains(t, result.Errors[1], "Assertion failed: error")
}

func TestRun_UnknownQuery(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown",
		Description: "query missing from definitions",
		Definitions: filepath.Join("testdata", "defs"),
		Cases: []Case{
			{Name: "missing", Query: "nope", Assertions: []Assertion{{Type: AssertError, Code: CodeDefinitions}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Cases[0].Error, `query "nope" not defined`)
}

func TestRun_BadDefinitions(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "missing definitions directory",
		Definitions: filepath.Join(t.TempDir(), "missing"),
		Cases:       []Case{{Name: "c", Chain: "people.Count()"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load definitions")
}

func TestRun_BadFixture(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "reserved fixture name",
		Fixtures:    map[string][]any{"compilations": {1}},
		Cases:       []Case{{Name: "c", Chain: "compilations.Count()"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load fixtures")
}

func TestRun_FixedCompilationIDs(t *testing.T) {
	scenario := &Scenario{
		Name:        "ids",
		Description: "fixed ids",
		Fixtures:    peopleFixtures(),
		Cases: []Case{
			{Name: "a", Chain: "people.Count()", Assertions: []Assertion{{Type: AssertResultEquals, Expect: 2}}},
			{Name: "b", Chain: "people.Any()", Assertions: []Assertion{{Type: AssertResultEquals, Expect: true}}},
		},
	}

	result, err := Run(scenario, WithIDGenerator(store.NewFixedGenerator("id-a", "id-b")))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"compiler error", fmt.Errorf("wrap: %w", qerr.NewMalformedReference("x", "", "unbound")), "MALFORMED_REFERENCE"},
		{"syntax", &chainspec.SyntaxError{Line: 1, Column: 1, Message: "bad"}, CodeSyntax},
		{"not portable", fmt.Errorf("GroupBy: %w", querysql.ErrNotPortable), CodeNotPortable},
		{"empty", store.ErrEmptySequence, CodeEmpty},
		{"not single", store.ErrNotSingle, CodeNotSingle},
		{"other", errors.New("boom"), CodeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestConvertToValue(t *testing.T) {
	v, err := convertToValue(map[string]any{
		"a": []any{1, 2.5, "x", nil, true},
		"b": map[any]any{"c": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.Object{
		"a": ir.Array{ir.Int(1), ir.Float(2.5), ir.String("x"), ir.Null{}, ir.Bool(true)},
		"b": ir.Object{"c": ir.Int(1)},
	}, v)

	_, err = convertToValue(map[any]any{1: "x"})
	assert.Error(t, err)
}
