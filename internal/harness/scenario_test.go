package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ResolvesDefinitions(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "people_basics.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "people_basics", scenario.Name)
	assert.Equal(t, filepath.Join("testdata", "defs"), scenario.Definitions)
	assert.Len(t, scenario.Fixtures["people"], 3)
	assert.Equal(t, "adults", scenario.Cases[1].Query)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: x
description: y
case:
  - name: c
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingDefinitions(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: x
description: y
definitions: nowhere
cases:
  - name: c
    query: q
    assertions:
      - type: portable
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitions not found")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Cases: []Case{{
				Name:       "c",
				Chain:      "people.Count()",
				Assertions: []Assertion{{Type: AssertResultEquals, Expect: 1}},
			}},
		}
	}
	require.NoError(t, validateScenario(valid()))

	tests := []struct {
		name   string
		mutate func(s *Scenario)
		want   string
	}{
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no cases", func(s *Scenario) { s.Cases = nil }, "cases list is required"},
		{"no case name", func(s *Scenario) { s.Cases[0].Name = "" }, "cases[0]: name is required"},
		{"duplicate case", func(s *Scenario) { s.Cases = append(s.Cases, s.Cases[0]) }, "duplicate case name"},
		{"no chain", func(s *Scenario) { s.Cases[0].Chain = "" }, "one of query or chain"},
		{"both", func(s *Scenario) { s.Cases[0].Query = "q" }, "mutually exclusive"},
		{"query without definitions", func(s *Scenario) {
			s.Cases[0].Chain = ""
			s.Cases[0].Query = "q"
		}, "requires definitions"},
		{"no assertions", func(s *Scenario) { s.Cases[0].Assertions = nil }, "assertions list is required"},
		{"no type", func(s *Scenario) { s.Cases[0].Assertions[0].Type = "" }, "type is required"},
		{"unknown type", func(s *Scenario) { s.Cases[0].Assertions[0].Type = "trace_order" }, `unknown assertion type "trace_order"`},
		{"contains without expect", func(s *Scenario) {
			s.Cases[0].Assertions[0] = Assertion{Type: AssertResultContains}
		}, "expect is required for result_contains"},
		{"negative count", func(s *Scenario) {
			s.Cases[0].Assertions[0] = Assertion{Type: AssertResultCount, Count: -1}
		}, "count must be non-negative"},
		{"sql without text", func(s *Scenario) {
			s.Cases[0].Assertions[0] = Assertion{Type: AssertSQLContains}
		}, "text is required for sql_contains"},
		{"error without code", func(s *Scenario) {
			s.Cases[0].Assertions[0] = Assertion{Type: AssertError}
		}, "code or text is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
