package querymodel

// Visitor receives a QueryModel's clauses in order. Execution backends
// implement it; a non-nil error stops the walk.
type Visitor interface {
	VisitQueryModel(qm *QueryModel) error
	VisitMainFromClause(c *MainFromClause, qm *QueryModel) error
	VisitAdditionalFromClause(c *AdditionalFromClause, qm *QueryModel, index int) error
	VisitJoinClause(c *JoinClause, qm *QueryModel, index int) error
	VisitGroupJoinClause(c *GroupJoinClause, qm *QueryModel, index int) error
	VisitLetClause(c *LetClause, qm *QueryModel, index int) error
	VisitWhereClause(c *WhereClause, qm *QueryModel, index int) error
	VisitOrderByClause(c *OrderByClause, qm *QueryModel, index int) error
	VisitOrdering(o *Ordering, qm *QueryModel, c *OrderByClause, index int) error
	VisitSelectClause(c *SelectClause, qm *QueryModel) error
	VisitResultOperator(op ResultOperator, qm *QueryModel, index int) error
}

// BaseVisitor implements every Visitor method as a no-op. Embed it to
// implement only the methods of interest.
type BaseVisitor struct{}

func (BaseVisitor) VisitQueryModel(*QueryModel) error                      { return nil }
func (BaseVisitor) VisitMainFromClause(*MainFromClause, *QueryModel) error { return nil }
func (BaseVisitor) VisitAdditionalFromClause(*AdditionalFromClause, *QueryModel, int) error {
	return nil
}
func (BaseVisitor) VisitJoinClause(*JoinClause, *QueryModel, int) error           { return nil }
func (BaseVisitor) VisitGroupJoinClause(*GroupJoinClause, *QueryModel, int) error { return nil }
func (BaseVisitor) VisitLetClause(*LetClause, *QueryModel, int) error             { return nil }
func (BaseVisitor) VisitWhereClause(*WhereClause, *QueryModel, int) error         { return nil }
func (BaseVisitor) VisitOrderByClause(*OrderByClause, *QueryModel, int) error     { return nil }
func (BaseVisitor) VisitOrdering(*Ordering, *QueryModel, *OrderByClause, int) error {
	return nil
}
func (BaseVisitor) VisitSelectClause(*SelectClause, *QueryModel) error         { return nil }
func (BaseVisitor) VisitResultOperator(ResultOperator, *QueryModel, int) error { return nil }

// Walk drives v over qm: VisitQueryModel, the main from clause, each body
// clause, the select clause and each result operator, in model order.
// Nested models inside expressions are not visited.
func Walk(v Visitor, qm *QueryModel) error {
	if err := v.VisitQueryModel(qm); err != nil {
		return err
	}
	if err := qm.MainFrom.Accept(v, qm); err != nil {
		return err
	}
	for i, c := range qm.body {
		if err := c.Accept(v, qm, i); err != nil {
			return err
		}
	}
	if err := qm.sel.Accept(v, qm); err != nil {
		return err
	}
	for i, op := range qm.resultOps {
		if err := op.Accept(v, qm, i); err != nil {
			return err
		}
	}
	return nil
}
