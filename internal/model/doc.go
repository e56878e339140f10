// Package model maps typed entities onto RDF triples.
//
// A Registry holds one EntityType per name. Each type declares a base URI,
// an optional rdf:type, scalar mappings (one predicate to one field) and
// relation mappings (one predicate to a collection of another type). The
// registry is sealed before use, which checks relation targets and order
// fields across types.
//
// A Mapper runs every operation through a queryir.Executor, so the same
// code works against a SPARQL endpoint and the local SQLite store:
//
//	m, _ := model.NewMapper(exec, reg, model.WithGraph("http://example.org/g"))
//	p, _ := m.New("Person")
//	_ = p.Set("name", ir.IRString("Ada"))
//	_ = m.Save(ctx, p, nil)        // insert with a generated identifier
//	q, _ := m.Find(ctx, "Person", p.Identifier)
//	_ = m.Listing(ctx, q, "knows") // load one relation, "" for all
//	_ = m.Delete(ctx, q, true)     // logical delete: status becomes deleted
//
// # Rows
//
// Query results reach an Entity in two shapes. Process takes narrow rows of
// (uri, property, value) and assigns the field mapped to property.
// ProcessLine takes wide rows with one variable per scalar field. Both
// ignore rows for another subject.
//
// # Lifecycle
//
// Status-tracked types carry a status triple (active or deleted) and
// created/updated timestamps. Lookups of such types only match active
// entities. The predicates and values come from Lifecycle.
package model
