package store

import (
	"context"
	"fmt"

	"github.com/roach88/qchain/internal/querysql"
)

// Compilation is one entry of the compilation log.
type Compilation struct {
	ID          string
	Seq         int64
	QueryName   string
	Chain       string
	Model       string
	Fingerprint string
	SQL         string
	Params      string // canonical JSON array
}

// RecordCompilation appends a compilation to the log. Recording the same
// query name with the same model fingerprint again is a no-op: the existing
// record is kept and inserted is false.
func (s *Store) RecordCompilation(ctx context.Context, queryName, chain, model, fingerprint string, stmt *querysql.Statement) (c Compilation, inserted bool, err error) {
	params := "[]"
	sqlText := ""
	if stmt != nil {
		sqlText = stmt.SQL
		if params, err = marshalParams(stmt.Params); err != nil {
			return Compilation{}, false, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Compilation{}, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations").Scan(&seq); err != nil {
		return Compilation{}, false, fmt.Errorf("next seq: %w", err)
	}

	c = Compilation{
		ID:          s.ids.Generate(),
		Seq:         seq,
		QueryName:   queryName,
		Chain:       chain,
		Model:       model,
		Fingerprint: fingerprint,
		SQL:         sqlText,
		Params:      params,
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO compilations (id, seq, query_name, chain, model, fingerprint, sql_text, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_name, fingerprint) DO NOTHING
	`, c.ID, c.Seq, c.QueryName, c.Chain, c.Model, c.Fingerprint, c.SQL, c.Params)
	if err != nil {
		return Compilation{}, false, fmt.Errorf("insert compilation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Compilation{}, false, fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		row := tx.QueryRowContext(ctx, `
			SELECT id, seq, query_name, chain, model, fingerprint, sql_text, params
			FROM compilations WHERE query_name = ? AND fingerprint = ?
		`, queryName, fingerprint)
		if c, err = scanCompilation(row); err != nil {
			return Compilation{}, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Compilation{}, false, fmt.Errorf("commit compilation: %w", err)
	}
	s.logger.Debug("compilation recorded", "query", queryName, "seq", c.Seq, "inserted", n > 0)
	return c, n > 0, nil
}

// ReadCompilations returns the compilation log, optionally restricted to a
// query name ("" means all queries).
// Results are ordered by seq ASC, id COLLATE BINARY ASC.
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ReadCompilations(ctx context.Context, queryName string) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, query_name, chain, model, fingerprint, sql_text, params
		FROM compilations
		WHERE ? = '' OR query_name = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, queryName, queryName)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row scanner) (Compilation, error) {
	var c Compilation
	err := row.Scan(&c.ID, &c.Seq, &c.QueryName, &c.Chain, &c.Model, &c.Fingerprint, &c.SQL, &c.Params)
	if err != nil {
		return Compilation{}, fmt.Errorf("scan compilation: %w", err)
	}
	return c, nil
}
