package model

import "github.com/roach88/sparqlmodel/internal/ir"

// ToArray returns the plain-structure view of the entity: "id", every set
// scalar field, and every relation field present.
//
// A relation holding entities expands each one recursively. A relation
// holding anything else, empty lists included, is copied as it is. Fields
// added with Add that are not in the mapping are left out.
func (e *Entity) ToArray() ir.IRObject {
	obj := make(ir.IRObject, 1+len(e.typ.Scalars)+len(e.typ.Relations))

	if e.Identifier == "" {
		obj[idKey] = ir.IRNull{}
	} else {
		obj[idKey] = ir.IRString(e.Identifier)
	}

	for _, s := range e.typ.Scalars {
		if v, ok := e.Scalar(s.Field); ok {
			obj[s.Field] = v
		}
	}

	for _, rel := range e.typ.Relations {
		v, ok := e.fields[rel.Field]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case []*Entity:
			arr := make(ir.IRArray, len(val))
			for i, related := range val {
				arr[i] = related.ToArray()
			}
			obj[rel.Field] = arr
		case ir.IRValue:
			obj[rel.Field] = val
		}
	}

	return obj
}

// ToJSON encodes ToArray as canonical JSON.
func (e *Entity) ToJSON() ([]byte, error) {
	return ir.MarshalCanonical(e.ToArray())
}
