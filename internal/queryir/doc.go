// Package queryir provides the abstract query representation the mapping
// core speaks, plus the executor contract every triple-store backend
// implements.
//
// QueryIR is the abstraction boundary between the object mapper and the
// concrete query languages:
//
//	[model] → [Builder] → [Query IR] → [SPARQL compiler] → HTTP endpoint
//	                                 → [SQL compiler]    → SQLite triples table
//
// # Query forms
//
//   - Select: required triple patterns, optional patterns, filter, distinct,
//     order and limit. Produces rows of variable bindings.
//   - Insert: concrete triples added to a graph.
//   - Delete: a template instantiated once per solution of a where clause.
//
// # Sealed interfaces
//
// Query, Term and Predicate are sealed with marker methods so backend
// compilers can switch exhaustively:
//
//	switch q := query.(type) {
//	case *Select:
//	case *Insert:
//	case *Delete:
//	}
//
// # Rows
//
// A Row maps variable names to ir.IRValue. Variables left unbound by an
// optional pattern are absent from the row, never present as null. A nil
// *Result means "no match" and must be treated exactly like zero rows.
package queryir
