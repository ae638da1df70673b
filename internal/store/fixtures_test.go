package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/ir"
)

func TestLoadTable_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	items := []ir.Value{
		ir.Object{"name": ir.String("Ann"), "tags": ir.Array{ir.String("a"), ir.String("b")}},
		ir.Int(9007199254740993),
		ir.Float(1.5),
		ir.Null{},
	}
	require.NoError(t, s.LoadTable(ctx, "mixed", items))

	got, err := s.ReadTable(ctx, "mixed")
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestLoadTable_StoresCanonicalJSON(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LoadTable(ctx, "people", []ir.Value{
		ir.Object{"name": ir.String("Ann"), "age": ir.Int(30)},
	}))

	var text string
	require.NoError(t, s.DB().QueryRow(`SELECT item FROM "people" WHERE id = 1`).Scan(&text))
	assert.Equal(t, `{"age":30,"name":"Ann"}`, text)
}

func TestLoadTable_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LoadTable(ctx, "nums", []ir.Value{ir.Int(1), ir.Int(2), ir.Int(3)}))
	require.NoError(t, s.LoadTable(ctx, "nums", []ir.Value{ir.Int(4)}))

	got, err := s.ReadTable(ctx, "nums")
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Int(4)}, got)

	fixtures, err := s.Fixtures(ctx)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)
	assert.Equal(t, 1, fixtures[0].Rows)
	assert.Equal(t, ir.MustFingerprint(ir.DomainFixture, ir.Array{ir.Int(4)}), fixtures[0].Hash)
}

func TestLoadTable_QuotesNames(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LoadTable(ctx, `odd "name"`, []ir.Value{ir.String("x")}))
	got, err := s.ReadTable(ctx, `odd "name"`)
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.String("x")}, got)
}

func TestLoadTable_RejectsReservedNames(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "compilations", "fixtures", "sqlite_master"} {
		assert.Error(t, s.LoadTable(ctx, name, nil), name)
	}
}

func TestFixtures_SortedAndEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	fixtures, err := s.Fixtures(ctx)
	require.NoError(t, err)
	assert.NotNil(t, fixtures)
	assert.Empty(t, fixtures)

	loadPeopleAndOrders(t, s)
	fixtures, err = s.Fixtures(ctx)
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	assert.Equal(t, "orders", fixtures[0].Name)
	assert.Equal(t, "people", fixtures[1].Name)
	assert.Equal(t, 3, fixtures[1].Rows)
}

func TestReadTable_Missing(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadTable(context.Background(), "nope")
	assert.Error(t, err)
}
