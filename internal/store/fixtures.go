package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/qchain/internal/ir"
)

// Fixture describes a loaded fixture table.
type Fixture struct {
	Name string
	Rows int
	Hash string
}

var reservedTables = map[string]bool{
	"compilations": true,
	"fixtures":     true,
}

// LoadTable replaces the table name with items, one row per item. Row ids
// are the 1-based item positions.
func (s *Store) LoadTable(ctx context.Context, name string, items []ir.Value) error {
	if name == "" {
		return fmt.Errorf("fixture name is empty")
	}
	if reservedTables[name] || strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return fmt.Errorf("fixture name %q is reserved", name)
	}

	hash, err := ir.Fingerprint(ir.DomainFixture, ir.Array(items))
	if err != nil {
		return fmt.Errorf("fixture %s: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := quoteIdent(name)
	stmts := []string{
		"DROP TABLE IF EXISTS " + table,
		"CREATE TABLE " + table + " (id INTEGER PRIMARY KEY, item TEXT NOT NULL)",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("fixture %s: %w", name, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" (id, item) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("fixture %s: prepare insert: %w", name, err)
	}
	defer insert.Close()

	for i, item := range items {
		text, err := marshalItem(item)
		if err != nil {
			return fmt.Errorf("fixture %s row %d: %w", name, i+1, err)
		}
		if _, err := insert.ExecContext(ctx, i+1, text); err != nil {
			return fmt.Errorf("fixture %s row %d: %w", name, i+1, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fixtures (name, rows, hash) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET rows = excluded.rows, hash = excluded.hash
	`, name, len(items), hash)
	if err != nil {
		return fmt.Errorf("register fixture %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fixture %s: %w", name, err)
	}
	s.logger.Debug("fixture loaded", "name", name, "rows", len(items), "hash", hash[:12])
	return nil
}

// LoadFixtures loads every table of fixtures, in name order.
func (s *Store) LoadFixtures(ctx context.Context, fixtures map[string][]ir.Value) error {
	names := make([]string, 0, len(fixtures))
	for name := range fixtures {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.LoadTable(ctx, name, fixtures[name]); err != nil {
			return err
		}
	}
	return nil
}

// Fixtures lists loaded fixture tables ordered by name.
// Returns an empty slice (not nil) when nothing is loaded.
func (s *Store) Fixtures(ctx context.Context) ([]Fixture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, rows, hash FROM fixtures
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query fixtures: %w", err)
	}
	defer rows.Close()

	out := []Fixture{}
	for rows.Next() {
		var f Fixture
		if err := rows.Scan(&f.Name, &f.Rows, &f.Hash); err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fixtures: %w", err)
	}
	return out, nil
}

// ReadTable returns the items of a fixture table in id order.
func (s *Store) ReadTable(ctx context.Context, name string) ([]ir.Value, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT item FROM "+quoteIdent(name)+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", name, err)
	}
	defer rows.Close()

	items := []ir.Value{}
	for rows.Next() {
		var text *string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan fixture %s: %w", name, err)
		}
		v, err := unmarshalItem(text)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", name, err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fixture %s: %w", name, err)
	}
	return items, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
