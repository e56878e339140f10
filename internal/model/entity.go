package model

import (
	"fmt"
	"log/slog"

	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/queryir"
)

// Entity is one instance of an entity type: a subject URI plus a bag of
// field values.
//
// Scalar fields hold ir.IRValue. Relation fields hold []*Entity after
// Listing, or whatever Add put there.
//
// An Entity is not safe for concurrent use.
type Entity struct {
	// Identifier is the subject URI of every triple of the entity.
	Identifier string

	typ     *EntityType
	inStore bool
	fields  map[string]any
}

func newEntity(t *EntityType) *Entity {
	return &Entity{typ: t, fields: make(map[string]any)}
}

// Type returns the entity's type.
func (e *Entity) Type() *EntityType {
	return e.typ
}

// Exist reports whether the entity was found in or written to the store.
// It is false after Delete even when a logical delete left triples behind.
func (e *Entity) Exist() bool {
	return e.inStore
}

// Process binds one narrow row (uri, property, value) onto the entity.
//
// Rows for another subject and rows whose property is not a mapped scalar
// predicate are skipped. Returns whether a field was assigned.
func (e *Entity) Process(row queryir.Row) bool {
	if !e.matches(row) {
		return false
	}

	property, _ := row.String(propertyVar)
	field, ok := e.typ.FieldFor(property)
	if !ok {
		slog.Debug("skipping unmapped predicate",
			"type", e.typ.Name,
			"subject", e.Identifier,
			"predicate", property)
		return false
	}
	value, ok := row[valueVar]
	if !ok {
		return false
	}

	e.fields[field] = value
	e.inStore = true
	return true
}

// ProcessLine binds one wide row: the subject under "uri" and one variable
// per scalar field. Absent variables leave their field untouched, so several
// sparse rows for the same subject accumulate. Returns whether the row was
// for this entity.
func (e *Entity) ProcessLine(row queryir.Row) bool {
	if !e.matches(row) {
		return false
	}

	for _, s := range e.typ.Scalars {
		if v, ok := row[s.Field]; ok {
			e.fields[s.Field] = v
		}
	}
	e.inStore = true
	return true
}

func (e *Entity) matches(row queryir.Row) bool {
	uri, ok := row.String(subjectVar)
	return ok && uri != "" && uri == e.Identifier
}

// Add overlays every key of data onto the field bag without checking the
// mapping. Values may be IRValues, []*Entity, plain Go scalars accepted by
// ir.FromGo, or []any and []string of those, which become an ir.IRArray.
// Nothing is assigned if any value is unsupported.
func (e *Entity) Add(data map[string]any) error {
	converted := make(map[string]any, len(data))
	for k, v := range data {
		if related, ok := v.([]*Entity); ok {
			converted[k] = related
			continue
		}
		iv, err := addValue(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		converted[k] = iv
	}
	for k, v := range converted {
		e.fields[k] = v
	}
	return nil
}

func addValue(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case []string:
		arr := make(ir.IRArray, len(val))
		for i, s := range val {
			arr[i] = ir.IRString(s)
		}
		return arr, nil
	case []any:
		arr := make(ir.IRArray, len(val))
		for i, item := range val {
			iv, err := addValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = iv
		}
		return arr, nil
	default:
		return ir.FromGo(v)
	}
}

// Set assigns a mapped scalar field.
func (e *Entity) Set(field string, value ir.IRValue) error {
	if !e.typ.HasScalar(field) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, e.typ.Name, field)
	}
	e.fields[field] = value
	return nil
}

// Get returns a field value, scalar or relation.
func (e *Entity) Get(field string) (any, bool) {
	v, ok := e.fields[field]
	return v, ok
}

// Scalar returns a field value when it is an IRValue other than IRNull.
func (e *Entity) Scalar(field string) (ir.IRValue, bool) {
	v, ok := e.fields[field].(ir.IRValue)
	if !ok {
		return nil, false
	}
	if _, null := v.(ir.IRNull); null {
		return nil, false
	}
	return v, true
}

// Related returns the entities of a relation field, or nil when the field
// does not hold entities.
func (e *Entity) Related(field string) []*Entity {
	related, _ := e.fields[field].([]*Entity)
	return related
}
