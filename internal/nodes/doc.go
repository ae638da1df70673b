// Package nodes holds the intermediate operation nodes a call chain is
// parsed into, the catalog that maps call signatures to node kinds, and
// the assembler that applies nodes onto a QueryModel.
//
// ARENA:
//
// Nodes live in an Arena and refer to their predecessor by NodeID. The
// chain is a simple linked list from the terminal operation back to the
// main source node; nothing points forward, so there are no cycles.
//
//	people.Where(p => p.age > 18).Select(p => p.name).Count()
//
//	[0] MainSource(people)  <- [1] Where  <- [2] Select  <- [3] ResultOp(Count)
//
// ASSEMBLY:
//
// The Assembler applies nodes from the main source to the terminal. Each
// node resolves its lambda parameters against its predecessor's output
// item, then adds clauses to the current model. A ClauseGenerationContext
// records which clause each node produced and its resolved item; later
// nodes resolve their parameters through it.
//
// CLAUSE BOUNDARY:
//
// The current model is wrapped as the main source of a fresh model when
//   - the predecessor is a result operator and the node is not, or
//   - an explicit projection has been applied and the node adds a body
//     clause or another projection, or
//   - the predecessor is a GroupBy and the node is a result operator with
//     a lambda over the groups.
//
// Identity projections (x => x) are dropped. Result selectors of joins,
// flattens and lets update the select clause but do not fix a projection.
package nodes
