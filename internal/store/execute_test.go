package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/querysql"
)

func TestExecute_Chains(t *testing.T) {
	s := createTestStore(t)
	loadPeopleAndOrders(t, s)

	tests := []struct {
		name   string
		src    string
		params map[string]any
		want   ir.Value
	}{
		{
			name: "where select",
			src:  "people.Where(p => p.age > 25).Select(p => p.name)",
			want: ir.Array{ir.String("Ann"), ir.String("Bob")},
		},
		{
			name:   "captured parameter",
			src:    "people.Where(p => p.age >= minAge).Select(p => p.name)",
			params: map[string]any{"minAge": 40},
			want:   ir.Array{ir.String("Bob")},
		},
		{
			name: "order by descending",
			src:  "people.OrderByDescending(p => p.age).Select(p => p.name)",
			want: ir.Array{ir.String("Bob"), ir.String("Ann"), ir.String("Cid")},
		},
		{
			name: "take then where",
			src:  "people.Take(2).Where(p => p.age < 40).Select(p => p.name)",
			want: ir.Array{ir.String("Ann")},
		},
		{
			name: "skip",
			src:  "people.Skip(1).Select(p => p.id)",
			want: ir.Array{ir.Int(2), ir.Int(3)},
		},
		{
			name: "count",
			src:  "people.Count()",
			want: ir.Int(3),
		},
		{
			name: "count with predicate",
			src:  "people.Count(p => p.age > 25)",
			want: ir.Int(2),
		},
		{
			name: "sum with selector",
			src:  "orders.Sum(o => o.total)",
			want: ir.Int(22),
		},
		{
			name: "any",
			src:  "people.Any(p => p.age > 40)",
			want: ir.Bool(true),
		},
		{
			name: "all",
			src:  "people.All(p => p.age > 25)",
			want: ir.Bool(false),
		},
		{
			name: "contains",
			src:  `people.Select(p => p.name).Contains("Cid")`,
			want: ir.Bool(true),
		},
		{
			name: "first",
			src:  "people.First(p => p.age < 30)",
			want: ir.Object{"id": ir.Int(3), "name": ir.String("Cid"), "age": ir.Int(22)},
		},
		{
			name: "last",
			src:  "people.Select(p => p.name).Last()",
			want: ir.String("Cid"),
		},
		{
			name: "first or default on empty",
			src:  "people.FirstOrDefault(p => p.age > 99)",
			want: ir.Null{},
		},
		{
			name: "join",
			src:  "people.Join(orders, p => p.id, o => o.personId, (p, o) => new {name = p.name, total = o.total})",
			want: ir.Array{
				ir.Object{"name": ir.String("Ann"), "total": ir.Int(10)},
				ir.Object{"name": ir.String("Ann"), "total": ir.Int(7)},
				ir.Object{"name": ir.String("Bob"), "total": ir.Int(5)},
			},
		},
		{
			name: "correlated any",
			src:  "people.Where(p => orders.Any(o => o.personId == p.id)).Select(p => p.name)",
			want: ir.Array{ir.String("Ann"), ir.String("Bob")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := compileChain(t, tt.src, tt.params)
			got, err := s.Execute(context.Background(), stmt)
			require.NoError(t, err, stmt.SQL)
			assert.Equal(t, tt.want, got, stmt.SQL)
		})
	}
}

func TestExecute_EmptySequenceErrors(t *testing.T) {
	s := createTestStore(t)
	loadPeopleAndOrders(t, s)
	ctx := context.Background()

	_, err := s.Execute(ctx, compileChain(t, "people.First(p => p.age > 99)", nil))
	assert.ErrorIs(t, err, ErrEmptySequence)

	_, err = s.Execute(ctx, compileChain(t, "people.Single(p => p.age > 99)", nil))
	assert.ErrorIs(t, err, ErrEmptySequence)
}

func TestExecute_SingleRejectsMany(t *testing.T) {
	s := createTestStore(t)
	loadPeopleAndOrders(t, s)
	ctx := context.Background()

	_, err := s.Execute(ctx, compileChain(t, "people.Single(p => p.age > 25)", nil))
	assert.ErrorIs(t, err, ErrNotSingle)

	got, err := s.Execute(ctx, compileChain(t, "people.Single(p => p.age > 40)", nil))
	require.NoError(t, err)
	assert.Equal(t, ir.String("Bob"), got.(ir.Object)["name"])
}

func TestExecute_EmptyTableSequence(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.LoadTable(context.Background(), "people", nil))

	got, err := s.Execute(context.Background(), compileChain(t, "people.Where(p => p.age > 1)", nil))
	require.NoError(t, err)
	assert.Equal(t, ir.Array{}, got)
}

func TestExecute_NilStatement(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Execute(context.Background(), nil)
	assert.Error(t, err)
}

func TestExecute_BadSQL(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Execute(context.Background(), &querysql.Statement{SQL: `SELECT item FROM "missing"`})
	assert.Error(t, err)
}
