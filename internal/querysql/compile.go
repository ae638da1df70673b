package querysql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
	"github.com/roach88/qchain/internal/querymodel"
)

// ErrNotPortable is wrapped by every error caused by a model construct the
// SQL backend cannot express.
var ErrNotPortable = errors.New("not portable to SQL")

// Shape tells the executor how to read a statement's rows.
type Shape int

const (
	// ShapeSequence is zero or more rows, in order.
	ShapeSequence Shape = iota
	// ShapeScalar is exactly one row.
	ShapeScalar
	// ShapeFirst is at most one row.
	ShapeFirst
	// ShapeSingle is at most two rows; exactly one is expected.
	ShapeSingle
)

// Statement is a compiled query. Every row has one column, item, holding the
// JSON text of a result item.
type Statement struct {
	SQL    string
	Params []any
	Shape  Shape

	// OrDefault is set when an empty ShapeFirst or ShapeSingle result yields
	// null instead of failing.
	OrDefault bool

	Output querymodel.OutputInfo
}

// SQLCompiler compiles query models to parameterized SQL for SQLite.
//
// Source tables have two columns: id, the insertion order, and item, the JSON
// text of one item. Every intermediate row set carries an id column and is
// ordered by it, so results are deterministic. Literal values are always
// bound as numbered parameters, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts qm into a statement. qm is not modified.
func (c *SQLCompiler) Compile(qm *querymodel.QueryModel) (*Statement, error) {
	if qm == nil {
		return nil, fmt.Errorf("cannot compile nil query model")
	}
	st := &state{}
	mc, err := st.walk(qm, nil)
	if err != nil {
		return nil, err
	}
	sql, shape, orDefault, err := mc.finish()
	if err != nil {
		return nil, err
	}
	return &Statement{
		SQL:       sql,
		Params:    st.params,
		Shape:     shape,
		OrDefault: orDefault,
		Output:    qm.Output(),
	}, nil
}

// state is shared by a model and all models nested in it.
type state struct {
	params  []any
	aliases int
}

// bind adds a parameter and returns its numbered placeholder.
func (st *state) bind(v any) string {
	st.params = append(st.params, v)
	return fmt.Sprintf("?%d", len(st.params))
}

func (st *state) alias() string {
	a := fmt.Sprintf("t%d", st.aliases)
	st.aliases++
	return a
}

func (st *state) walk(qm *querymodel.QueryModel, parent *scope) (*modelCompiler, error) {
	mc := &modelCompiler{st: st, sc: &scope{parent: parent, vars: map[expr.QuerySource]binding{}}}
	if err := querymodel.Walk(mc, qm); err != nil {
		return nil, err
	}
	return mc, nil
}

// binding is how a query source is read inside the statement.
type binding struct {
	item string // JSON text of the item
	id   string // ordering column; empty for let values
}

type scope struct {
	parent *scope
	vars   map[expr.QuerySource]binding
}

func (s *scope) lookup(src expr.QuerySource) (binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[src]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// modelCompiler collects the clauses of one model.
type modelCompiler struct {
	st *state
	sc *scope

	from      []string
	where     []string
	orderings []string
	pending   []string
	ids       []string
	item      string
	ok        string
	ops       []querymodel.ResultOperator
}

var _ querymodel.Visitor = (*modelCompiler)(nil)

func (m *modelCompiler) VisitQueryModel(*querymodel.QueryModel) error { return nil }

func (m *modelCompiler) VisitMainFromClause(c *querymodel.MainFromClause, _ *querymodel.QueryModel) error {
	return m.addFrom(c, c.FromExpression, "")
}

func (m *modelCompiler) VisitAdditionalFromClause(c *querymodel.AdditionalFromClause, _ *querymodel.QueryModel, _ int) error {
	return m.addFrom(c, c.FromExpression, "CROSS JOIN ")
}

func (m *modelCompiler) VisitJoinClause(c *querymodel.JoinClause, _ *querymodel.QueryModel, _ int) error {
	table, err := m.table(c.InnerSequence)
	if err != nil {
		return fmt.Errorf("compile join %s: %w", c.Name, err)
	}
	alias := m.st.alias()
	// Keys see the outer sources only; the inner item is bound afterwards.
	outer, err := m.expr(c.OuterKeySelector)
	if err != nil {
		return fmt.Errorf("compile join %s: %w", c.Name, err)
	}
	m.bindRow(c, alias)
	inner, err := m.expr(c.InnerKeySelector)
	if err != nil {
		return fmt.Errorf("compile join %s: %w", c.Name, err)
	}
	l, r := comparable(outer, inner)
	m.from = append(m.from, fmt.Sprintf("JOIN %s AS %s ON %s IS %s", table, alias, l, r))
	return nil
}

func (m *modelCompiler) VisitGroupJoinClause(c *querymodel.GroupJoinClause, _ *querymodel.QueryModel, _ int) error {
	return fmt.Errorf("group join into %s: %w", c.Name, ErrNotPortable)
}

func (m *modelCompiler) VisitLetClause(c *querymodel.LetClause, _ *querymodel.QueryModel, _ int) error {
	f, err := m.expr(c.Expression)
	if err != nil {
		return fmt.Errorf("compile let %s: %w", c.Name, err)
	}
	m.sc.vars[c] = binding{item: f.asJSON()}
	return nil
}

func (m *modelCompiler) VisitWhereClause(c *querymodel.WhereClause, _ *querymodel.QueryModel, _ int) error {
	f, err := m.expr(c.Predicate)
	if err != nil {
		return fmt.Errorf("compile where: %w", err)
	}
	m.where = append(m.where, f.asScalar())
	return nil
}

// VisitOrderByClause starts a new ordering. Its keys take precedence over
// those of earlier clauses, which become tiebreakers.
func (m *modelCompiler) VisitOrderByClause(*querymodel.OrderByClause, *querymodel.QueryModel, int) error {
	m.flushOrderings()
	return nil
}

func (m *modelCompiler) VisitOrdering(o *querymodel.Ordering, _ *querymodel.QueryModel, _ *querymodel.OrderByClause, _ int) error {
	f, err := m.expr(o.Expression)
	if err != nil {
		return fmt.Errorf("compile ordering: %w", err)
	}
	dir := "ASC"
	if o.Direction == querymodel.Desc {
		dir = "DESC"
	}
	m.pending = append(m.pending, f.asScalar()+" "+dir)
	return nil
}

func (m *modelCompiler) flushOrderings() {
	if len(m.pending) > 0 {
		m.orderings = append(m.pending, m.orderings...)
		m.pending = nil
	}
}

func (m *modelCompiler) VisitSelectClause(c *querymodel.SelectClause, _ *querymodel.QueryModel) error {
	m.flushOrderings()
	f, err := m.expr(c.Selector)
	if err != nil {
		return fmt.Errorf("compile select: %w", err)
	}
	m.item = f.asJSON()
	return nil
}

// VisitResultOperator records op. All's predicate refers to the model's
// sources, so it is computed per row as the ok column.
func (m *modelCompiler) VisitResultOperator(op querymodel.ResultOperator, _ *querymodel.QueryModel, _ int) error {
	if all, ok := op.(*querymodel.AllOp); ok {
		f, err := m.expr(all.Predicate)
		if err != nil {
			return fmt.Errorf("compile All predicate: %w", err)
		}
		m.ok = fmt.Sprintf("CASE WHEN %s THEN 1 ELSE 0 END", f.asScalar())
	}
	m.ops = append(m.ops, op)
	return nil
}

func (m *modelCompiler) bindRow(src expr.QuerySource, alias string) {
	m.sc.vars[src] = binding{item: fmt.Sprintf("json(%s.item)", alias), id: alias + ".id"}
	m.ids = append(m.ids, alias+".id")
}

func (m *modelCompiler) addFrom(src expr.QuerySource, e expr.Expr, prefix string) error {
	switch e.(type) {
	case *expr.Sequence, *expr.SubQuery:
		table, err := m.table(e)
		if err != nil {
			return fmt.Errorf("compile from %s: %w", src.ItemName(), err)
		}
		alias := m.st.alias()
		m.from = append(m.from, prefix+table+" AS "+alias)
		m.bindRow(src, alias)
		return nil
	}
	if prefix == "" {
		return fmt.Errorf("main source %s is neither a table nor a subquery: %w", expr.String(e), ErrNotPortable)
	}

	// A collection held by an earlier item: iterate its JSON array.
	f, err := m.expr(e)
	if err != nil {
		return fmt.Errorf("compile from %s: %w", src.ItemName(), err)
	}
	alias := m.st.alias()
	m.from = append(m.from, fmt.Sprintf("%sjson_each(%s) AS %s", prefix, f.asJSON(), alias))
	m.sc.vars[src] = binding{
		item: fmt.Sprintf("CASE %[1]s.type WHEN 'object' THEN json(%[1]s.value) WHEN 'array' THEN json(%[1]s.value) "+
			"WHEN 'true' THEN json('true') WHEN 'false' THEN json('false') ELSE json_quote(%[1]s.value) END", alias),
		id: alias + ".id",
	}
	m.ids = append(m.ids, alias+".id")
	return nil
}

// table renders a sequence expression usable in a FROM clause: a source
// table or a parenthesized row set.
func (m *modelCompiler) table(e expr.Expr) (string, error) {
	switch n := e.(type) {
	case *expr.Sequence:
		return quoteIdent(n.Name), nil
	case *expr.SubQuery:
		rows, err := m.subRows(n)
		if err != nil {
			return "", err
		}
		return "(" + rows + ")", nil
	}
	return "", fmt.Errorf("%s is not a sequence: %w", expr.String(e), ErrNotPortable)
}

// subRows compiles a nested sequence-valued model into a row set.
func (m *modelCompiler) subRows(sq *expr.SubQuery) (string, error) {
	qm, ok := sq.Model.(*querymodel.QueryModel)
	if !ok {
		return "", fmt.Errorf("unknown model type %T", sq.Model)
	}
	inner, err := m.st.walk(qm, m.sc)
	if err != nil {
		return "", err
	}
	rows, terminal, err := inner.applyOps()
	if err != nil {
		return "", err
	}
	if terminal != nil {
		return "", fmt.Errorf("subquery ending in %s is not a sequence: %w", terminal.Name(), ErrNotPortable)
	}
	return rows, nil
}

// rows renders the model's clauses as a row set of (id, item[, ok]).
func (m *modelCompiler) rows() string {
	order := append(append([]string{}, m.orderings...), m.ids...)
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT ROW_NUMBER() OVER (ORDER BY %s) AS id, %s AS item", strings.Join(order, ", "), m.item)
	if m.ok != "" {
		fmt.Fprintf(&sb, ", %s AS ok", m.ok)
	}
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(m.from, " "))
	if len(m.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(m.where, " AND "))
	}
	return sb.String()
}

func (m *modelCompiler) columns() string {
	if m.ok != "" {
		return "id, item, ok"
	}
	return "id, item"
}

// applyOps wraps the row set in every sequence result operator. A
// terminal operator (one producing a value or a single item) must be
// last; it is returned unapplied.
func (m *modelCompiler) applyOps() (string, querymodel.ResultOperator, error) {
	rows := m.rows()
	cols := m.columns()
	okCol := ""
	if m.ok != "" {
		okCol = ", ok"
	}

	for i, op := range m.ops {
		switch op := op.(type) {
		case *querymodel.TakeOp:
			n, err := m.expr(op.Count)
			if err != nil {
				return "", nil, fmt.Errorf("compile Take: %w", err)
			}
			rows = fmt.Sprintf("SELECT %s FROM (%s) ORDER BY id LIMIT %s", cols, rows, n.asScalar())
		case *querymodel.SkipOp:
			n, err := m.expr(op.Count)
			if err != nil {
				return "", nil, fmt.Errorf("compile Skip: %w", err)
			}
			rows = fmt.Sprintf("SELECT %s FROM (%s) ORDER BY id LIMIT -1 OFFSET %s", cols, rows, n.asScalar())
		case *querymodel.DistinctOp:
			rows = distinct(rows, okCol)
		case *querymodel.ReverseOp:
			rows = fmt.Sprintf("SELECT ROW_NUMBER() OVER (ORDER BY id DESC) AS id, item%s FROM (%s)", okCol, rows)
		case *querymodel.DefaultIfEmptyOp:
			def := "NULL"
			if op.Default != nil {
				f, err := m.expr(op.Default)
				if err != nil {
					return "", nil, fmt.Errorf("compile DefaultIfEmpty: %w", err)
				}
				def = f.asJSON()
			}
			if m.ok != "" {
				def += ", 1"
			}
			rows = fmt.Sprintf("SELECT %s FROM (%s) UNION ALL SELECT 1, %s WHERE NOT EXISTS (%s)", cols, rows, def, rows)
		case *querymodel.SetOp:
			other, err := m.setSource(op.Source2)
			if err != nil {
				return "", nil, fmt.Errorf("compile %s: %w", op.Name(), err)
			}
			rows = setOperation(op.Kind, rows, other, okCol)
		case *querymodel.GroupOp, *querymodel.AggregateOp, *querymodel.CastOp:
			return "", nil, fmt.Errorf("%s: %w", op.Name(), ErrNotPortable)
		default:
			if i != len(m.ops)-1 {
				return "", nil, fmt.Errorf("%s must be the last result operator: %w", op.Name(), ErrNotPortable)
			}
			return rows, op, nil
		}
	}
	return rows, nil, nil
}

func distinct(rows, okCol string) string {
	ok := ""
	if okCol != "" {
		ok = ", MIN(ok) AS ok"
	}
	return fmt.Sprintf("SELECT MIN(id) AS id, item%s FROM (%s) GROUP BY item", ok, rows)
}

func setOperation(kind querymodel.SetKind, rows, other, okCol string) string {
	switch kind {
	case querymodel.SetIntersect:
		return distinct(fmt.Sprintf("SELECT id, item%s FROM (%s) WHERE item IN (SELECT item FROM (%s))", okCol, rows, other), okCol)
	case querymodel.SetExcept:
		return distinct(fmt.Sprintf("SELECT id, item%s FROM (%s) WHERE item NOT IN (SELECT item FROM (%s))", okCol, rows, other), okCol)
	}
	otherOK := ""
	if okCol != "" {
		otherOK = ", 1 AS ok"
	}
	concat := fmt.Sprintf("SELECT ROW_NUMBER() OVER (ORDER BY part, id) AS id, item%s FROM "+
		"(SELECT 0 AS part, id, item%s FROM (%s) UNION ALL SELECT 1 AS part, id, item%s FROM (%s))",
		okCol, okCol, rows, otherOK, other)
	if kind == querymodel.SetUnion {
		return distinct(concat, okCol)
	}
	return concat
}

// setSource renders the second operand of a set operation as (id, item) rows.
func (m *modelCompiler) setSource(e expr.Expr) (string, error) {
	switch n := e.(type) {
	case *expr.Sequence:
		return "SELECT id, json(item) AS item FROM " + quoteIdent(n.Name), nil
	case *expr.SubQuery:
		rows, err := m.subRows(n)
		if err != nil {
			return "", err
		}
		return "SELECT id, item FROM (" + rows + ")", nil
	}
	return "", fmt.Errorf("%s is not a sequence: %w", expr.String(e), ErrNotPortable)
}

const (
	jsonTrue  = "json('true')"
	jsonFalse = "json('false')"
)

func boolItem(cond string) string {
	return fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", cond, jsonTrue, jsonFalse)
}

// finish renders the complete statement of the model.
func (m *modelCompiler) finish() (string, Shape, bool, error) {
	rows, terminal, err := m.applyOps()
	if err != nil {
		return "", 0, false, err
	}
	if terminal == nil {
		return "SELECT item FROM (" + rows + ") ORDER BY id", ShapeSequence, false, nil
	}

	value := "json_extract(item, '$')"
	switch op := terminal.(type) {
	case *querymodel.ValueOp:
		var agg string
		switch op.Kind {
		case querymodel.ValueCount, querymodel.ValueLongCount:
			agg = "COUNT(*)"
		case querymodel.ValueSum:
			agg = "COALESCE(SUM(" + value + "), 0)"
		case querymodel.ValueMin:
			agg = "MIN(" + value + ")"
		case querymodel.ValueMax:
			agg = "MAX(" + value + ")"
		case querymodel.ValueAverage:
			agg = "AVG(" + value + ")"
		}
		return fmt.Sprintf("SELECT json_quote(%s) AS item FROM (%s)", agg, rows), ShapeScalar, false, nil
	case *querymodel.AnyOp:
		return "SELECT " + boolItem("EXISTS ("+rows+")") + " AS item", ShapeScalar, false, nil
	case *querymodel.AllOp:
		return "SELECT " + boolItem("NOT EXISTS (SELECT 1 FROM ("+rows+") WHERE ok = 0)") + " AS item", ShapeScalar, false, nil
	case *querymodel.ContainsOp:
		f, err := m.expr(op.Item)
		if err != nil {
			return "", 0, false, fmt.Errorf("compile Contains: %w", err)
		}
		cond := fmt.Sprintf("EXISTS (SELECT 1 FROM (%s) WHERE item IS %s)", rows, f.asJSON())
		return "SELECT " + boolItem(cond) + " AS item", ShapeScalar, false, nil
	case *querymodel.ChoiceOp:
		switch op.Kind {
		case querymodel.ChoiceLast:
			return "SELECT item FROM (" + rows + ") ORDER BY id DESC LIMIT 1", ShapeFirst, op.OrDefault, nil
		case querymodel.ChoiceSingle:
			return "SELECT item FROM (" + rows + ") ORDER BY id LIMIT 2", ShapeSingle, op.OrDefault, nil
		default:
			return "SELECT item FROM (" + rows + ") ORDER BY id LIMIT 1", ShapeFirst, op.OrDefault, nil
		}
	}
	return "", 0, false, fmt.Errorf("%s: %w", terminal.Name(), ErrNotPortable)
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString renders a SQL string literal. Only used for JSON paths and
// object keys, which are names taken from the model, never values.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// literalParam converts a literal to a Go value for a SQL parameter.
func literalParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Null, nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s literal cannot be used as SQL parameter directly", v.TypeName())
	}
}
