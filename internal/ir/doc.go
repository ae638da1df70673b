// Package ir provides the literal value model shared by every qchain package.
//
// Literal folding, query-model fingerprints, the SQL backend and the store all
// exchange host values as ir.Value. The package imports nothing internal so it
// stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is sealed: only the types in this package implement it
//   - Objects iterate in RFC 8785 key order (SortedKeys)
//   - MarshalCanonical is the only serialization used for fingerprints
package ir
