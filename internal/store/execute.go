package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/querysql"
)

var (
	// ErrEmptySequence is returned when First, Last or Single finds no item
	// and the statement has no default.
	ErrEmptySequence = errors.New("sequence contains no elements")

	// ErrNotSingle is returned when Single finds more than one item.
	ErrNotSingle = errors.New("sequence contains more than one element")
)

// Execute runs a compiled statement and decodes its result according to
// the statement's shape. Sequences come back as ir.Array, everything else
// as the single result value.
func (s *Store) Execute(ctx context.Context, stmt *querysql.Statement) (ir.Value, error) {
	if stmt == nil {
		return nil, fmt.Errorf("cannot execute nil statement")
	}

	items, err := s.queryItems(ctx, stmt)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("statement executed", "shape", stmt.Shape, "rows", len(items))

	switch stmt.Shape {
	case querysql.ShapeSequence:
		return ir.Array(items), nil
	case querysql.ShapeScalar:
		if len(items) != 1 {
			return nil, fmt.Errorf("scalar statement returned %d rows", len(items))
		}
		return items[0], nil
	case querysql.ShapeFirst, querysql.ShapeSingle:
		switch {
		case len(items) == 0 && stmt.OrDefault:
			return ir.Null{}, nil
		case len(items) == 0:
			return nil, ErrEmptySequence
		case len(items) > 1 && stmt.Shape == querysql.ShapeSingle:
			return nil, ErrNotSingle
		}
		return items[0], nil
	default:
		return nil, fmt.Errorf("unknown statement shape %d", stmt.Shape)
	}
}

// queryItems runs the statement and decodes the item column of every row.
func (s *Store) queryItems(ctx context.Context, stmt *querysql.Statement) ([]ir.Value, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, fmt.Errorf("execute statement: %w", err)
	}
	defer rows.Close()

	items := []ir.Value{}
	for rows.Next() {
		var text *string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		v, err := unmarshalItem(text)
		if err != nil {
			return nil, fmt.Errorf("result row %d: %w", len(items)+1, err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return items, nil
}
