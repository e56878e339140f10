// Package harness runs YAML scenarios of model operations against a fresh
// in-memory store and checks the outcome.
//
// # Scenario Format
//
//	name: person_lifecycle
//	description: "Save, link, list and delete people"
//	graph: http://example.org/graph
//	steps:
//	  - op: save
//	    type: Person
//	    as: ada
//	    set: { name: Ada, age: 36 }
//	  - op: save
//	    type: Person
//	    as: bob
//	    set: { name: Bob }
//	  - op: link
//	    ref: ada
//	    target: bob
//	  - op: list
//	    ref: ada
//	    field: knows
//	    expect: { count: 1 }
//	  - op: delete
//	    ref: ada
//	    logical: true
//	assertions:
//	  - type: final_state
//	    ref: ada
//	    exists: false
//	  - type: triple_count
//	    ref: ada
//	    predicate: http://www.w3.org/ns/adms#status
//	    count: 1
//
// A "triples" list of {subject, predicate, object, iri, datatype} entries is
// written to the graph before the first step.
//
// Steps name entities with "as" and refer back to them with "ref" and
// "target". A step without "expect" must succeed. "expect.error" turns a
// failure into the expected outcome.
//
// # Assertion Types
//
//   - trace_count: how many steps ran an operation
//   - triple_count: triples of a subject in the store, optionally under one
//     predicate, ignoring status. Without ref it counts the whole graph.
//   - final_state: what a fresh find sees (exists, fields)
//
// # Determinism
//
// Identifiers come from a per-run sequence over each type's base URI and the
// clock starts at a fixed instant and moves one second per step, so the
// trace of a scenario is byte-identical across runs and can be compared
// against a golden file (see RunWithGolden).
package harness
