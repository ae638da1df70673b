package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/querysql"
)

func TestRecordCompilation_Idempotent(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(NewFixedGenerator("id-1", "id-2", "id-3")))
	ctx := context.Background()
	stmt := &querysql.Statement{SQL: "SELECT 1", Params: []any{int64(3), "x", nil}}

	c1, inserted, err := s.RecordCompilation(ctx, "adults", "people.Where(...)", "from p in people", "fp-1", stmt)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "id-1", c1.ID)
	assert.Equal(t, int64(1), c1.Seq)
	assert.Equal(t, `[3,"x",null]`, c1.Params)

	c2, inserted, err := s.RecordCompilation(ctx, "adults", "people.Where(...)", "from p in people", "fp-1", stmt)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, c1, c2)

	c3, inserted, err := s.RecordCompilation(ctx, "names", "people.Select(...)", "from p in people", "fp-2", nil)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(2), c3.Seq)
	assert.Equal(t, "[]", c3.Params)
}

func TestReadCompilations_Ordered(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(NewFixedGenerator("b", "a", "c")))
	ctx := context.Background()

	all, err := s.ReadCompilations(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	for _, fp := range []string{"fp-1", "fp-2"} {
		_, _, err := s.RecordCompilation(ctx, "q", "chain", "model", fp, nil)
		require.NoError(t, err)
	}
	_, _, err = s.RecordCompilation(ctx, "other", "chain", "model", "fp-1", nil)
	require.NoError(t, err)

	all, err = s.ReadCompilations(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	q, err := s.ReadCompilations(ctx, "q")
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, "fp-2", q[1].Fingerprint)
}

func TestRecordCompilation_DefaultIDsAreUUIDv7(t *testing.T) {
	s := createTestStore(t)

	c, _, err := s.RecordCompilation(context.Background(), "q", "chain", "model", "fp", nil)
	require.NoError(t, err)

	id, err := uuid.Parse(c.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
