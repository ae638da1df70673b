package querymodel

import (
	"encoding/json"
	"strings"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
)

// String renders the model in query-comprehension form:
//
//	from p in people where ([p].age > 5) select [p].name => Count()
func (qm *QueryModel) String() string {
	var sb strings.Builder
	sb.WriteString(qm.MainFrom.String())
	for _, c := range qm.body {
		sb.WriteByte(' ')
		sb.WriteString(c.String())
	}
	sb.WriteByte(' ')
	sb.WriteString(qm.sel.String())
	for _, op := range qm.resultOps {
		sb.WriteString(" => ")
		sb.WriteString(op.String())
	}
	return sb.String()
}

// Describe returns a structural projection of the model as an ir.Object.
// Structurally equal models have equal descriptions; it is the basis of
// Fingerprint and of the JSON form.
func (qm *QueryModel) Describe() ir.Object {
	body := make(ir.Array, 0, len(qm.body))
	for _, c := range qm.body {
		body = append(body, describeClause(c))
	}
	ops := make(ir.Array, 0, len(qm.resultOps))
	for _, op := range qm.resultOps {
		ops = append(ops, ir.NewObject(
			ir.O("op", ir.String(op.Name())),
			ir.O("text", ir.String(op.String())),
		))
	}
	out := qm.Output()

	return ir.NewObject(
		ir.O("from", ir.NewObject(
			ir.O("item", ir.String(qm.MainFrom.Name)),
			ir.O("type", ir.String(qm.MainFrom.Type)),
			ir.O("source", exprValue(qm.MainFrom.FromExpression)),
		)),
		ir.O("body", body),
		ir.O("select", exprValue(qm.sel.Selector)),
		ir.O("result_operators", ops),
		ir.O("output", ir.NewObject(
			ir.O("kind", ir.String(out.Kind.String())),
			ir.O("type", ir.String(out.Type())),
			ir.O("default_when_empty", ir.Bool(out.DefaultWhenEmpty)),
		)),
	)
}

func describeClause(c BodyClause) ir.Object {
	switch c := c.(type) {
	case *AdditionalFromClause:
		return ir.NewObject(
			ir.O("clause", ir.String("from")),
			ir.O("item", ir.String(c.Name)),
			ir.O("type", ir.String(c.Type)),
			ir.O("source", exprValue(c.FromExpression)),
		)
	case *JoinClause:
		return describeJoin("join", c)
	case *GroupJoinClause:
		obj := describeJoin("group_join", c.JoinClause)
		obj["join_item"] = obj["item"]
		obj["item"] = ir.String(c.Name)
		obj["type"] = ir.String(c.Type)
		return obj
	case *LetClause:
		return ir.NewObject(
			ir.O("clause", ir.String("let")),
			ir.O("item", ir.String(c.Name)),
			ir.O("type", ir.String(c.Type)),
			ir.O("value", exprValue(c.Expression)),
		)
	case *WhereClause:
		return ir.NewObject(
			ir.O("clause", ir.String("where")),
			ir.O("predicate", exprValue(c.Predicate)),
		)
	case *OrderByClause:
		orderings := make(ir.Array, len(c.Orderings))
		for i, o := range c.Orderings {
			orderings[i] = ir.NewObject(
				ir.O("expr", exprValue(o.Expression)),
				ir.O("direction", ir.String(o.Direction.String())),
			)
		}
		return ir.NewObject(
			ir.O("clause", ir.String("orderby")),
			ir.O("orderings", orderings),
		)
	default:
		return ir.NewObject(ir.O("clause", ir.String("unknown")))
	}
}

func describeJoin(kind string, c *JoinClause) ir.Object {
	return ir.NewObject(
		ir.O("clause", ir.String(kind)),
		ir.O("item", ir.String(c.Name)),
		ir.O("type", ir.String(c.Type)),
		ir.O("inner", exprValue(c.InnerSequence)),
		ir.O("outer_key", exprValue(c.OuterKeySelector)),
		ir.O("inner_key", exprValue(c.InnerKeySelector)),
	)
}

func exprValue(e expr.Expr) ir.Value {
	return ir.String(expr.String(e))
}

// Fingerprint returns the content hash of the model's description.
func (qm *QueryModel) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainModel, qm.Describe())
}

// MarshalJSON encodes the model's description.
func (qm *QueryModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(qm.Describe())
}
