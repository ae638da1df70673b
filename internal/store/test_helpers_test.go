package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/qchain/internal/chainspec"
	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/parser"
	"github.com/roach88/qchain/internal/querysql"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, append([]Option{WithLogger(discardLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// loadPeopleAndOrders loads the fixture tables used by execution tests.
func loadPeopleAndOrders(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.LoadFixtures(context.Background(), map[string][]ir.Value{
		"people": {
			ir.Object{"id": ir.Int(1), "name": ir.String("Ann"), "age": ir.Int(30)},
			ir.Object{"id": ir.Int(2), "name": ir.String("Bob"), "age": ir.Int(45)},
			ir.Object{"id": ir.Int(3), "name": ir.String("Cid"), "age": ir.Int(22)},
		},
		"orders": {
			ir.Object{"personId": ir.Int(1), "total": ir.Int(10)},
			ir.Object{"personId": ir.Int(2), "total": ir.Int(5)},
			ir.Object{"personId": ir.Int(1), "total": ir.Int(7)},
		},
	}))
}

// compileChain parses src against the people/orders fixtures and compiles
// it to SQL.
func compileChain(t *testing.T, src string, params map[string]any) *querysql.Statement {
	t.Helper()
	chain, err := chainspec.ParseChain(src, chainspec.Environment{
		Sources: map[string]string{"people": "person", "orders": "order"},
		Params:  params,
	})
	require.NoError(t, err)

	qm, err := parser.New(parser.WithLogger(discardLogger())).Parse(chain)
	require.NoError(t, err)

	stmt, err := querysql.NewSQLCompiler().Compile(qm)
	require.NoError(t, err)
	return stmt
}
