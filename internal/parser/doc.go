// Package parser is the entry point of the compiler: it turns a query
// operator call chain into a querymodel.QueryModel.
//
// A parse runs in four steps:
//
//  1. PREPROCESS - the chain goes through the preprocessing pipeline
//     (partial evaluation, then rewrite rules).
//  2. PARSE - each call, innermost first, is looked up in the node-kind
//     catalog and turned into an intermediate node. Arguments are scanned
//     for nested chains first; each becomes a nested query model.
//  3. ASSEMBLE - the nodes are applied in order to build the model.
//  4. CHECK - every placeholder and source reference of the finished model
//     must be bound.
//
// A parse either returns a complete model or an error; partial models are
// never returned. A Parser holds only read-only state and may be shared by
// concurrent parses.
package parser
