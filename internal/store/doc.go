// Package store provides the SQLite side of query execution.
//
// A store holds three kinds of data:
//   - Fixture tables: one table per named sequence, rows of canonical JSON items
//   - Fixture registry: name, row count and content hash of each loaded table
//   - Compilation log: one record per distinct (query, model fingerprint)
//
// # Fixture Tables
//
// Every fixture table has the columns (id INTEGER PRIMARY KEY, item TEXT).
// id is the 1-based position of the item in the sequence it was loaded from,
// so the natural order of a sequence is ORDER BY id. Statements produced by
// package querysql rely on exactly this shape.
//
// # Deterministic Reads
//
// Compilation log reads use ORDER BY seq ASC, id COLLATE BINARY ASC.
// seq is a logical counter assigned on insert, never a timestamp.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
