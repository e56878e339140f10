package queryir

import (
	"context"

	"github.com/roach88/sparqlmodel/internal/ir"
)

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only Select, Insert and Delete implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition over bound variables.
//
// Predicate types:
//   - Equals: ?var = term
//   - And: all predicates must be true (empty = true)
//   - Or: any predicate must be true (empty = false)
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Pattern is one triple pattern. Any position may hold a Var; constants are
// IRIs, and literals are only valid in the object position.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// T builds a Pattern.
func T(s, p, o Term) Pattern {
	return Pattern{Subject: s, Predicate: p, Object: o}
}

// Order sorts solutions by one variable.
type Order struct {
	Var        Var
	Descending bool
}

// Select retrieves variable bindings.
//
// Semantics (SPARQL form):
//
//	SELECT [DISTINCT] * FROM <Graph> WHERE {
//	  <Where patterns>
//	  OPTIONAL { <pattern> }   # one block per Optional entry
//	  FILTER (<Filter>)
//	} ORDER BY <Order> LIMIT <Limit>
//
// Each optional pattern binds independently, so a solution may carry any
// subset of the optional variables.
type Select struct {
	Graph    string    // Named graph ("" = default graph)
	Distinct bool      // Remove duplicate solutions
	Where    []Pattern // Required patterns (at least one)
	Optional []Pattern // Independently optional patterns
	Filter   Predicate // nil = no filter
	Order    *Order    // nil = backend default order
	Limit    int       // 0 = no limit
}

func (Select) queryNode() {}

// Insert adds concrete triples to a graph.
type Insert struct {
	Graph   string
	Triples []Pattern // No variables allowed
}

func (Insert) queryNode() {}

// Delete removes, for every solution of Where+Filter, the Template patterns
// instantiated with that solution.
//
// Example - remove every triple of a subject:
//
//	Delete{
//	  Template: []Pattern{T(IRI(s), Var("x"), Var("y"))},
//	  Where:    []Pattern{T(IRI(s), Var("x"), Var("y"))},
//	}
type Delete struct {
	Graph    string
	Template []Pattern
	Where    []Pattern
	Filter   Predicate
}

func (Delete) queryNode() {}

// Equals compares a bound variable with a term.
type Equals struct {
	Var   Var
	Value Term
}

func (Equals) predicateNode() {}

// And is a conjunction of predicates.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction of predicates.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Row is one solution: variable name to value. Unbound variables are absent.
type Row map[string]ir.IRValue

// String returns the lexical form of a bound variable and whether it was bound.
func (r Row) String(name string) (string, bool) {
	v, ok := r[name]
	if !ok {
		return "", false
	}
	return ir.Lexical(v), true
}

// Result is the outcome of launching a query. Updates return a Result with
// no rows.
type Result struct {
	Vars []string
	Rows []Row
}

// Len returns the number of rows. Safe on a nil Result.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Solutions returns the rows. Safe on a nil Result.
func (r *Result) Solutions() []Row {
	if r == nil {
		return nil
	}
	return r.Rows
}

// Executor runs a query against a triple store.
//
// Launch returns a nil result (or a result with no rows) when nothing
// matched. Errors are reserved for execution failures: transport, endpoint
// or database errors.
type Executor interface {
	Launch(ctx context.Context, q Query) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, q Query) (*Result, error)

// Launch calls f(ctx, q).
func (f ExecutorFunc) Launch(ctx context.Context, q Query) (*Result, error) {
	return f(ctx, q)
}
