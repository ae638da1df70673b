package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLCommand(t *testing.T) {
	out, err := execute(NewSQLCommand(&RootOptions{Format: "text"}), defsDir, "--query", "adults")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ adults")
	assert.Contains(t, out, "model: from p in people where ([p].age >= 18) select [p].name")
	assert.Contains(t, out, "shape: sequence")
	assert.Contains(t, out, `json_extract(json(t0.item), '$.age') >= ?1`)
	assert.Contains(t, out, "?1 = 18")
}

func TestSQLCommandJSON(t *testing.T) {
	tests := []struct {
		query string
		shape string
	}{
		{"adults", "sequence"},
		{"headcount", "scalar"},
		{"firstCentenarian", "first"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			out, err := execute(NewSQLCommand(&RootOptions{Format: "json"}), defsDir, "-q", tt.query)
			require.NoError(t, err)

			resp := decode(t, out)
			assert.Equal(t, "ok", resp.Status)
			data := resp.Data.(map[string]any)
			assert.Equal(t, tt.query, data["name"])
			assert.Equal(t, tt.shape, data["shape"])
			assert.Contains(t, data["sql"], "SELECT")
			assert.NotNil(t, data["params"])
		})
	}
}

func TestSQLCommandParams(t *testing.T) {
	out, err := execute(NewSQLCommand(&RootOptions{Format: "json"}), defsDir, "-q", "bigSpenders")
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Contains(t, data["params"], float64(8))
}

func TestSQLCommandNotPortable(t *testing.T) {
	out, err := execute(NewSQLCommand(&RootOptions{Format: "json"}), defsDir, "-q", "byAge")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NOT_PORTABLE", resp.Error.Code)
	assert.Equal(t, map[string]any{"query": "byAge"}, resp.Error.Details)
}

func TestSQLCommandRequiresQuery(t *testing.T) {
	_, err := execute(NewSQLCommand(&RootOptions{Format: "text"}), defsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "query" not set`)
}

func TestSQLCommandUnknownQuery(t *testing.T) {
	out, err := execute(NewSQLCommand(&RootOptions{Format: "text"}), defsDir, "-q", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `✗ Error [E_QUERY_NOT_FOUND]: query "nope" not defined`)
}
