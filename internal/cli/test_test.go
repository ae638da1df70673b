package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineScenario = `name: inline
description: People over forty
fixtures:
  people:
    - { id: 1, name: Ann, age: 30 }
    - { id: 2, name: Bob, age: 45 }
cases:
  - name: names
    chain: "people.Where(p => p.age > 40).Select(p => p.name)"
    assertions:
      - type: result_equals
        expect: [Bob]
`

const failingScenario = `name: failing
description: A count that does not hold
fixtures:
  people:
    - { id: 1, name: Ann, age: 30 }
cases:
  - name: wrong count
    chain: "people.Count()"
    assertions:
      - type: result_equals
        expect: 5
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTestCommand(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenarioDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ people: 3 case(s)")
	assert.Contains(t, out, "Results: 1 passed, 0 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), scenarioDir)
	require.NoError(t, err)

	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(0), data["failed"])

	scenarios := data["scenarios"].([]any)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "people", scenarios[0].(map[string]any)["name"])
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "failing.yaml", failingScenario)
	writeScenario(t, dir, "inline.yaml", inlineScenario)

	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(1), data["failed"])

	failing := data["scenarios"].([]any)[0].(map[string]any)
	assert.Equal(t, "failing", failing["name"])
	assert.Equal(t, false, failing["pass"])
	assert.Contains(t, failing["errors"].([]any)[0], "wrong count: ")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "failing.yaml", failingScenario)
	writeScenario(t, dir, "inline.yaml", inlineScenario)

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--filter", "in*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ inline: 1 case(s)")
	assert.NotContains(t, out, "failing")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "inline.yaml", inlineScenario)
	goldenPath := filepath.Join(dir, "golden", "inline.golden")

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"inline"`)
	assert.Contains(t, string(golden), `"result":["Bob"]`)

	_, err = execute(NewTestCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"stale":true}`), 0644))
	out, err = execute(NewTestCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommandBadScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", "name: bad\ncases: []\nunknown: 1\n")

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandMissingPath(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), filepath.Join("testdata", "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestFilterScenarios(t *testing.T) {
	files := []string{"a/people_basics.yaml", "a/orders.yml"}

	got, err := filterScenarios(files, "people_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/people_basics.yaml"}, got)

	got, err = filterScenarios(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)

	_, err = filterScenarios(files, "[")
	require.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "x.golden"), goldenFilePath(filepath.Join("s", "x.yaml")))
}
