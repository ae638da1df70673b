// Package eval implements partial evaluation of expression trees.
//
// Before a call chain is parsed, every self-contained subtree (one that
// reaches no parameter placeholder) is replaced by the literal value the
// host computes for it. Captured variables become literals this way while
// lambda parameters stay symbolic:
//
//	people.Where(p => p.age > value(minAge))  =>  people.Where(p => p.age > 18)
//
// Self-containment is computed bottom-up as a fixpoint over the tree:
//   - a parameter placeholder is never self-contained
//   - sequences, chains, subqueries and source references are never
//     self-contained
//   - a lambda is never replaced, but its body may be
//   - any other node is self-contained iff all its children are and the
//     host can evaluate it
//
// Failures raised by the host are returned to the caller unchanged.
package eval
