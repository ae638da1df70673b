package querymodel

import (
	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/qerr"
)

// CheckReferences verifies that every expression in qm, including nested
// models, is closed: each parameter placeholder is bound by an enclosing
// lambda and each source reference points at a clause of this model or of
// an enclosing one. The first violation is returned as a MalformedReference
// error.
func CheckReferences(qm *QueryModel) error {
	return checkModel(qm, scope{})
}

type scope struct {
	sources map[expr.QuerySource]bool
	params  map[*expr.Param]bool
}

func (s scope) withSources(srcs []expr.QuerySource) scope {
	next := scope{sources: make(map[expr.QuerySource]bool, len(s.sources)+len(srcs)), params: s.params}
	for src := range s.sources {
		next.sources[src] = true
	}
	for _, src := range srcs {
		next.sources[src] = true
	}
	return next
}

func (s scope) withParams(ps []*expr.Param) scope {
	next := scope{sources: s.sources, params: make(map[*expr.Param]bool, len(s.params)+len(ps))}
	for p := range s.params {
		next.params[p] = true
	}
	for _, p := range ps {
		next.params[p] = true
	}
	return next
}

func checkModel(qm *QueryModel, outer scope) error {
	sc := outer.withSources(qm.Sources())
	var firstErr error
	qm.TransformExpressions(func(e expr.Expr) expr.Expr {
		if firstErr == nil {
			firstErr = checkExpr(e, e, sc)
		}
		return e
	})
	return firstErr
}

func checkExpr(root, e expr.Expr, sc scope) error {
	switch n := e.(type) {
	case nil:
		return nil
	case *expr.Param:
		if !sc.params[n] {
			return qerr.NewMalformedReference(n.Name, expr.String(root), "placeholder is not bound by any enclosing lambda")
		}
		return nil
	case *expr.SourceRef:
		if !sc.sources[n.Source] {
			return qerr.NewMalformedReference("["+n.Source.ItemName()+"]", expr.String(root), "reference to a clause that is not in scope")
		}
		return nil
	case *expr.Lambda:
		return checkExpr(root, n.Body, sc.withParams(n.Params))
	case *expr.SubQuery:
		inner, ok := n.Model.(*QueryModel)
		if !ok {
			return nil
		}
		return checkModel(inner, sc)
	default:
		for _, c := range expr.Children(e) {
			if err := checkExpr(root, c, sc); err != nil {
				return err
			}
		}
		return nil
	}
}
