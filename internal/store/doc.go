// Package store provides a SQLite-backed triple store that executes QueryIR.
//
// The store keeps one table of statements:
//   - triples: (graph, subject, predicate, object, object_kind, datatype)
//
// Store implements queryir.Executor, so the mapping core runs unchanged
// against SQLite or a remote SPARQL endpoint.
//
// # Critical Patterns
//
// Set semantics:
//   - UNIQUE(graph, subject, predicate, object, object_kind, datatype)
//   - Inserting an existing triple is a no-op (ON CONFLICT DO NOTHING)
//
// Deterministic query results:
//   - Every select ends with ORDER BY over all bound columns COLLATE BINARY
//   - Identical stores return identical row order
//
// Atomic updates:
//   - Insert and Delete run in a single transaction each
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
