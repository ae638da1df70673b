package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/ir"
)

func TestReadFixtures(t *testing.T) {
	tables, err := ReadFixtures(filepath.Join("testdata", "fixtures", "people.yaml"))
	require.NoError(t, err)

	require.Len(t, tables["people"], 3)
	assert.Equal(t, ir.Object{"id": ir.Int(1), "name": ir.String("Ann"), "age": ir.Int(30)}, tables["people"][0])
	require.Len(t, tables["orders"], 2)
	assert.Equal(t, ir.Float(5.5), tables["orders"][1].(ir.Object)["total"])
}

func TestReadFixtures_Errors(t *testing.T) {
	_, err := ReadFixtures(filepath.Join("testdata", "fixtures", "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read fixtures")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("people: 3\n"), 0o644))
	_, err = ReadFixtures(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse fixtures")
}

func TestConvertFixtures_RejectsNonStringKeys(t *testing.T) {
	_, err := ConvertFixtures(map[string][]any{
		"t": {map[any]any{1: "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture t[0]")
}
