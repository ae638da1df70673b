package querymodel

import (
	"fmt"

	"github.com/roach88/qchain/internal/expr"
	"github.com/roach88/qchain/internal/ir"
)

// PortableFunctions lists the host functions the portable fragment allows
// inside expressions. Backends must implement all of them.
var PortableFunctions = map[string]bool{
	"ToUpper":    true,
	"ToLower":    true,
	"Trim":       true,
	"Contains":   true,
	"StartsWith": true,
	"EndsWith":   true,
	"Abs":        true,
	"Concat":     true,
}

// ValidationResult contains the portability analysis of a model.
//
// The portable fragment is the subset of the QueryModel that a relational
// backend can run as a single SQL statement. Models outside it are still
// valid and run on in-memory executors.
type ValidationResult struct {
	// IsPortable indicates the model uses only portable features.
	IsPortable bool

	// Warnings lists the non-portable features found, in model order.
	Warnings []string
}

// Validate checks a model, including nested models, against the portable
// fragment rules:
//  1. No comparisons against a null literal
//  2. No nested-sequence results (GroupBy, group join)
//  3. No Reverse or Last without an ordering
//  4. No custom Aggregate folds
//  5. No Cast or OfType
//  6. Only PortableFunctions in expressions
//
// Validate is a pure function with no side effects.
func Validate(qm *QueryModel) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validateModel(qm)
	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateModel(qm *QueryModel) {
	ordered := false
	for _, c := range qm.body {
		switch c := c.(type) {
		case *OrderByClause:
			ordered = true
		case *GroupJoinClause:
			v.addWarning("group join into %s produces nested sequences - not portable", c.Name)
		}
	}

	for _, op := range qm.resultOps {
		switch op := op.(type) {
		case *ReverseOp:
			if !ordered {
				v.addWarning("Reverse without orderby has no defined order")
			}
		case *ChoiceOp:
			if op.Kind == ChoiceLast && !ordered {
				v.addWarning("%s without orderby has no defined order", op.Name())
			}
		case *AggregateOp:
			v.addWarning("Aggregate with a custom fold is not portable")
		case *CastOp:
			v.addWarning("%s<%s> is not portable", op.Name(), op.Type)
		case *GroupOp:
			v.addWarning("GroupBy produces nested sequences - not portable")
		}
	}

	qm.TransformExpressions(func(e expr.Expr) expr.Expr {
		v.validateExpr(e)
		return e
	})
}

func (v *validator) validateExpr(e expr.Expr) {
	expr.Inspect(e, func(n expr.Expr) bool {
		switch n := n.(type) {
		case *expr.Binary:
			if n.Op.IsComparison() && (isNullLiteral(n.Left) || isNullLiteral(n.Right)) {
				v.addWarning("comparison with null in %s - portable fragment requires explicit values", expr.String(n))
			}
		case *expr.Call:
			if !PortableFunctions[n.Func] {
				v.addWarning("host function %s is not portable", n.Func)
			}
		case *expr.SubQuery:
			if inner, ok := n.Model.(*QueryModel); ok {
				v.validateModel(inner)
			}
		}
		return true
	})
}

func isNullLiteral(e expr.Expr) bool {
	lit, ok := e.(*expr.Literal)
	if !ok {
		return false
	}
	_, isNull := lit.Value.(ir.Null)
	return isNull
}
