// Package querymodel defines the QueryModel: the structured form a query
// operation chain compiles to, and the contract execution backends consume.
//
// STRUCTURE:
//
// A QueryModel has exactly one main from clause, an ordered list of body
// clauses, exactly one select clause and an ordered list of result
// operators:
//
//	from p in people                   MainFromClause
//	join o in orders on ... equals ... BodyClause (JoinClause)
//	where ([p].age > 18)               BodyClause (WhereClause)
//	orderby [p].name asc               BodyClause (OrderByClause)
//	select [p].name                    SelectClause
//	=> Distinct() => Take(10)          ResultOperators
//
// Body clauses keep the order their operations were declared in. Result
// operators apply after the select clause, in declaration order. The model
// exposes its clause collections read-only; mutation goes through
// AddBodyClause, InsertBodyClause, SetSelectClause and AddResultOperator,
// which enforce these invariants.
//
// QUERY SOURCES:
//
// Clauses that introduce an item (main from, additional from, join, group
// join, let) implement expr.QuerySource. Expressions refer to those items
// with expr.SourceRef nodes; a reference is an identity, not a name.
//
// SUBQUERIES:
//
// A model can be embedded in an expression of another model through
// expr.SubQuery. The outer model owns the inner one and nothing points
// back. References from an inner model to an outer model's clauses are
// allowed.
//
// CLAUSE PROTOCOL:
//
// Every clause and result operator supports:
//   - Accept: double dispatch to a Visitor method (backend entry point)
//   - TransformExpressions: apply an expression rewrite in place
//   - Clone: deep copy, registering new query-source identities in a
//     CloneContext so sibling references can be remapped
//
// SEALED INTERFACES:
//
// BodyClause and ResultOperator are sealed with marker methods, so type
// switches in backends are exhaustive.
package querymodel
