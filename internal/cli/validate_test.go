package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefinitions(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), defsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ All definitions valid (6 query(ies))")
	assert.Contains(t, out, "! byAge: GroupBy produces nested sequences - not portable")
}

func TestValidateDefinitionsJSON(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), defsDir)
	require.NoError(t, err)

	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(6), data["queries"])
	assert.NotContains(t, data, "errors")

	warnings := data["warnings"].([]any)
	require.Len(t, warnings, 1)
	w := warnings[0].(map[string]any)
	assert.Equal(t, "byAge", w["query"])
	assert.Equal(t, CodeNotPortableWarning, w["code"])
}

func TestValidateStrict(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), defsDir, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeNotPortableWarning, resp.Error.Code)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), badDefsDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E110", resp.Error.Code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["valid"])
	assert.Equal(t, float64(2), data["queries"])

	var codes []any
	for _, e := range data["errors"].([]any) {
		codes = append(codes, e.(map[string]any)["code"])
	}
	assert.Equal(t, []any{"E110", "E112"}, codes)
}

func TestValidateErrorLocations(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), badDefsDir)
	require.Error(t, err)

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "broken.cue:")
	assert.Contains(t, out, "E110: query.missingChain: chain is required")
	assert.Contains(t, out, "E112: query badSyntax:")
}

func TestValidateMissingDirectory(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), filepath.Join("testdata", "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "E005", decode(t, out).Error.Code)
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "E003", decode(t, out).Error.Code)
}
