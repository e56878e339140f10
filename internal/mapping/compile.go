// Package mapping compiles declarative entity definitions written in CUE
// into model entity types.
//
// A mapping file declares one struct per entity type under "entity":
//
//	entity: Person: {
//		base_uri: "http://example.org/person/"
//		rdf_type: "http://xmlns.com/foaf/0.1/Person"
//		status:   true
//		id:       "uuid7"
//		scalars: [
//			{predicate: "http://xmlns.com/foaf/0.1/name", field: "name"},
//		]
//		relations: [{
//			predicate: "http://xmlns.com/foaf/0.1/knows"
//			field:     "knows"
//			target:    "Person"
//			order: {direction: "asc", field: "name"}
//			limit: 50
//		}]
//	}
//
// Structural problems are reported here with CUE positions. Cross-type
// checks (relation targets, duplicate predicates) belong to model.Registry.
package mapping

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sparqlmodel/internal/idgen"
	"github.com/roach88/sparqlmodel/internal/model"
)

// Order directions.
const (
	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

var knownEntityFields = map[string]bool{
	"base_uri":  true,
	"rdf_type":  true,
	"status":    true,
	"id":        true,
	"scalars":   true,
	"relations": true,
}

// CompileEntity parses a CUE value into an EntityType.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Person: { ... }`)
//	t, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Person")))
//
// Status tracking defaults to true. The identifier generator named by "id"
// prefixes identifiers with base_uri.
func CompileEntity(v cue.Value) (*model.EntityType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	t := &model.EntityType{StatusTracked: true}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		t.Name = labels[len(labels)-1].String()
	}

	fields, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: "entity", Message: "entity must be a struct", Pos: v.Pos()}
	}
	for fields.Next() {
		label := fields.Label()
		if !knownEntityFields[label] {
			return nil, &CompileError{
				Field:   "entity",
				Message: fmt.Sprintf("unknown field %q", label),
				Pos:     fields.Value().Pos(),
			}
		}
	}

	if t.BaseURI, err = optionalString(v, "base_uri"); err != nil {
		return nil, err
	}
	if t.RDFType, err = optionalString(v, "rdf_type"); err != nil {
		return nil, err
	}

	if statusVal := v.LookupPath(cue.ParsePath("status")); statusVal.Exists() {
		tracked, err := statusVal.Bool()
		if err != nil {
			return nil, &CompileError{Field: "status", Message: "status must be a boolean", Pos: statusVal.Pos()}
		}
		t.StatusTracked = tracked
	}

	kind, err := optionalString(v, "id")
	if err != nil {
		return nil, err
	}
	if kind != "" && t.BaseURI == "" {
		return nil, &CompileError{Field: "id", Message: "an identifier generator requires base_uri", Pos: v.Pos()}
	}
	gen, err := idgen.New(idgen.Kind(kind), t.BaseURI)
	if err != nil {
		return nil, &CompileError{Field: "id", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("id")).Pos()}
	}
	t.IDGen = gen

	if t.Scalars, err = parseScalars(v); err != nil {
		return nil, err
	}
	if t.Relations, err = parseRelations(v); err != nil {
		return nil, err
	}

	return t, nil
}

// parseScalars extracts the predicate/field pairs.
func parseScalars(v cue.Value) ([]model.ScalarMapping, error) {
	scalarsVal := v.LookupPath(cue.ParsePath("scalars"))
	if !scalarsVal.Exists() {
		return nil, nil
	}

	iter, err := scalarsVal.List()
	if err != nil {
		return nil, &CompileError{Field: "scalars", Message: "scalars must be a list", Pos: scalarsVal.Pos()}
	}

	var scalars []model.ScalarMapping
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		label := fmt.Sprintf("scalars[%d]", i)

		predicate, err := requiredString(item, "predicate", "scalars", label)
		if err != nil {
			return nil, err
		}
		field, err := requiredString(item, "field", "scalars", label)
		if err != nil {
			return nil, err
		}
		scalars = append(scalars, model.ScalarMapping{Predicate: predicate, Field: field})
	}
	return scalars, nil
}

// parseRelations extracts relation mappings with their optional order and limit.
func parseRelations(v cue.Value) ([]model.RelationMapping, error) {
	relationsVal := v.LookupPath(cue.ParsePath("relations"))
	if !relationsVal.Exists() {
		return nil, nil
	}

	iter, err := relationsVal.List()
	if err != nil {
		return nil, &CompileError{Field: "relations", Message: "relations must be a list", Pos: relationsVal.Pos()}
	}

	var relations []model.RelationMapping
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		label := fmt.Sprintf("relations[%d]", i)

		var rel model.RelationMapping
		if rel.Predicate, err = requiredString(item, "predicate", "relations", label); err != nil {
			return nil, err
		}
		if rel.Field, err = requiredString(item, "field", "relations", label); err != nil {
			return nil, err
		}
		if rel.Target, err = requiredString(item, "target", "relations", label); err != nil {
			return nil, err
		}

		if orderVal := item.LookupPath(cue.ParsePath("order")); orderVal.Exists() {
			order, err := parseOrder(orderVal, label)
			if err != nil {
				return nil, err
			}
			rel.Order = order
		}

		if limitVal := item.LookupPath(cue.ParsePath("limit")); limitVal.Exists() {
			limit, err := limitVal.Int64()
			if err != nil || limit < 0 {
				return nil, &CompileError{
					Field:   "type",
					Message: fmt.Sprintf("%s.limit must be a non-negative integer", label),
					Pos:     limitVal.Pos(),
				}
			}
			rel.Limit = int(limit)
		}

		relations = append(relations, rel)
	}
	return relations, nil
}

func parseOrder(v cue.Value, label string) (*model.OrderSpec, error) {
	field, err := requiredString(v, "field", "relations.order", label+".order")
	if err != nil {
		return nil, err
	}

	direction, err := optionalString(v, "direction")
	if err != nil {
		return nil, err
	}
	switch direction {
	case "", DirectionAsc:
		return &model.OrderSpec{Field: field}, nil
	case DirectionDesc:
		return &model.OrderSpec{Field: field, Descending: true}, nil
	default:
		return nil, &CompileError{
			Field:   "relations.order",
			Message: fmt.Sprintf("%s.order.direction must be %q or %q, got %q", label, DirectionAsc, DirectionDesc, direction),
			Pos:     v.Pos(),
		}
	}
}

func optionalString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", &CompileError{Field: path, Message: fmt.Sprintf("%s must be a string", path), Pos: val.Pos()}
	}
	return s, nil
}

func requiredString(v cue.Value, path, field, label string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", &CompileError{Field: field, Message: fmt.Sprintf("%s.%s is required", label, path), Pos: v.Pos()}
	}
	s, err := val.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: fmt.Sprintf("%s.%s must be a string", label, path), Pos: val.Pos()}
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: fmt.Sprintf("%s.%s must not be empty", label, path), Pos: val.Pos()}
	}
	return s, nil
}

// CompileError is a mapping error with CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
