package model

import "github.com/roach88/sparqlmodel/internal/idgen"

// Reserved names. "uri" is the subject variable of every generated query
// and "id" is the identifier key of ToArray.
const (
	subjectVar  = "uri"
	propertyVar = "property"
	valueVar    = "value"
	idKey       = "id"
)

// ScalarMapping ties one predicate URI to one single-valued field.
type ScalarMapping struct {
	Predicate string
	Field     string
}

// OrderSpec sorts a relation listing by one field of the target type, or by
// "uri" for the related identifier.
type OrderSpec struct {
	Field      string
	Descending bool
}

// RelationMapping ties one predicate URI to a collection field holding
// entities of the Target type.
type RelationMapping struct {
	Predicate string
	Field     string
	Target    string
	Order     *OrderSpec
	Limit     int // 0 means no limit
}

// EntityType is the static description of one class of entity.
//
// Build it once at startup and hand it to Registry.Register; the registry
// keeps its own copy and never mutates it afterwards.
type EntityType struct {
	Name          string
	BaseURI       string
	RDFType       string
	StatusTracked bool
	Scalars       []ScalarMapping
	Relations     []RelationMapping

	// IDGen produces subject URIs for new entities. Nil means the type
	// cannot create records.
	IDGen idgen.Generator

	fieldByPredicate map[string]string
	relationByField  map[string]int
	scalarFields     map[string]bool
}

// index builds the lookup tables. Called once by Register.
func (t *EntityType) index() {
	t.fieldByPredicate = make(map[string]string, len(t.Scalars))
	t.scalarFields = make(map[string]bool, len(t.Scalars))
	for _, s := range t.Scalars {
		t.fieldByPredicate[s.Predicate] = s.Field
		t.scalarFields[s.Field] = true
	}
	t.relationByField = make(map[string]int, len(t.Relations))
	for i, r := range t.Relations {
		t.relationByField[r.Field] = i
	}
}

// FieldFor returns the scalar field mapped to predicate.
func (t *EntityType) FieldFor(predicate string) (string, bool) {
	f, ok := t.fieldByPredicate[predicate]
	return f, ok
}

// HasScalar reports whether field is a mapped scalar field.
func (t *EntityType) HasScalar(field string) bool {
	return t.scalarFields[field]
}

// Relation returns the relation stored in field.
func (t *EntityType) Relation(field string) (RelationMapping, bool) {
	i, ok := t.relationByField[field]
	if !ok {
		return RelationMapping{}, false
	}
	return t.Relations[i], true
}

func (t EntityType) clone() *EntityType {
	c := t
	c.Scalars = append([]ScalarMapping(nil), t.Scalars...)
	c.Relations = make([]RelationMapping, len(t.Relations))
	for i, r := range t.Relations {
		if r.Order != nil {
			o := *r.Order
			r.Order = &o
		}
		c.Relations[i] = r
	}
	return &c
}
