package model

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/roach88/sparqlmodel/internal/queryir"
)

// Registry holds every entity type of a program, keyed by name.
//
// Types are registered at startup, then the registry is sealed. Seal checks
// cross-type references (relation targets, order fields). A sealed registry
// is read-only.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]*EntityType
	order  []string
	sealed bool
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*EntityType)}
}

// Register validates and adds entity types. It fails with ErrRegistrySealed
// after Seal, ErrDuplicateMapping for a repeated type name, predicate or
// field, and ErrInvalidMapping for anything else malformed. On error no type
// from the call is registered.
func (r *Registry) Register(types ...EntityType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}

	pending := make(map[string]bool, len(types))
	for i := range types {
		t := &types[i]
		if err := validateType(t); err != nil {
			return err
		}
		if _, exists := r.types[t.Name]; exists || pending[t.Name] {
			return fmt.Errorf("%w: entity type %q registered twice", ErrDuplicateMapping, t.Name)
		}
		pending[t.Name] = true
	}

	for _, t := range types {
		c := t.clone()
		c.index()
		r.types[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return nil
}

// Seal checks relation targets and order fields, then freezes the registry.
// Sealing twice is a no-op.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil
	}

	for _, name := range r.order {
		t := r.types[name]
		for _, rel := range t.Relations {
			target, ok := r.types[rel.Target]
			if !ok {
				return fmt.Errorf("%w: %s.%s targets unregistered type %q", ErrInvalidMapping, t.Name, rel.Field, rel.Target)
			}
			if rel.Order != nil && rel.Order.Field != subjectVar && !target.HasScalar(rel.Order.Field) {
				return fmt.Errorf("%w: %s.%s orders by %q, not a field of %s", ErrInvalidMapping, t.Name, rel.Field, rel.Order.Field, target.Name)
			}
		}
	}

	r.sealed = true
	return nil
}

// Sealed reports whether Seal has succeeded.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Type returns the entity type called name.
func (r *Registry) Type(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Types returns every entity type in registration order.
func (r *Registry) Types() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*EntityType, len(r.order))
	for i, name := range r.order {
		out[i] = r.types[name]
	}
	return out
}

// ScalarMapping returns the scalar mappings of a type without needing an
// instance of it.
func (r *Registry) ScalarMapping(name string) ([]ScalarMapping, error) {
	t, err := r.Type(name)
	if err != nil {
		return nil, err
	}
	return append([]ScalarMapping(nil), t.Scalars...), nil
}

// RelationMapping returns the relation mappings of a type.
func (r *Registry) RelationMapping(name string) ([]RelationMapping, error) {
	t, err := r.Type(name)
	if err != nil {
		return nil, err
	}
	return append([]RelationMapping(nil), t.Relations...), nil
}

// New returns an empty, not-in-store entity of the named type.
func (r *Registry) New(name string) (*Entity, error) {
	t, err := r.Type(name)
	if err != nil {
		return nil, err
	}
	return newEntity(t), nil
}

func validateType(t *EntityType) error {
	if t.Name == "" {
		return fmt.Errorf("%w: entity type without name", ErrInvalidMapping)
	}
	if t.BaseURI != "" && !IsAbsoluteIRI(t.BaseURI) {
		return fmt.Errorf("%w: %s: base URI %q is not absolute", ErrInvalidMapping, t.Name, t.BaseURI)
	}
	if t.RDFType != "" && !IsAbsoluteIRI(t.RDFType) {
		return fmt.Errorf("%w: %s: rdf type %q is not absolute", ErrInvalidMapping, t.Name, t.RDFType)
	}

	predicates := make(map[string]bool)
	fields := make(map[string]bool)

	checkField := func(field string) error {
		if !queryir.IsValidVarName(field) {
			return fmt.Errorf("%w: %s: field %q is not a valid name", ErrInvalidMapping, t.Name, field)
		}
		if field == subjectVar || field == idKey {
			return fmt.Errorf("%w: %s: field name %q is reserved", ErrInvalidMapping, t.Name, field)
		}
		if fields[field] {
			return fmt.Errorf("%w: %s: field %q mapped twice", ErrDuplicateMapping, t.Name, field)
		}
		fields[field] = true
		return nil
	}
	checkPredicate := func(field, predicate string) error {
		if !IsAbsoluteIRI(predicate) {
			return fmt.Errorf("%w: %s.%s: predicate %q is not absolute", ErrInvalidMapping, t.Name, field, predicate)
		}
		if predicates[predicate] {
			return fmt.Errorf("%w: %s: predicate %q mapped twice", ErrDuplicateMapping, t.Name, predicate)
		}
		predicates[predicate] = true
		return nil
	}

	for _, s := range t.Scalars {
		if err := checkField(s.Field); err != nil {
			return err
		}
		if err := checkPredicate(s.Field, s.Predicate); err != nil {
			return err
		}
	}
	for _, rel := range t.Relations {
		if err := checkField(rel.Field); err != nil {
			return err
		}
		if err := checkPredicate(rel.Field, rel.Predicate); err != nil {
			return err
		}
		if rel.Target == "" {
			return fmt.Errorf("%w: %s.%s: relation without target", ErrInvalidMapping, t.Name, rel.Field)
		}
		if rel.Limit < 0 {
			return fmt.Errorf("%w: %s.%s: negative limit %d", ErrInvalidMapping, t.Name, rel.Field, rel.Limit)
		}
		if rel.Order != nil && !queryir.IsValidVarName(rel.Order.Field) {
			return fmt.Errorf("%w: %s.%s: order field %q is not a valid name", ErrInvalidMapping, t.Name, rel.Field, rel.Order.Field)
		}
	}
	return nil
}

// IsAbsoluteIRI reports whether s has a scheme, something after it, and no
// character that cannot appear in an IRI reference.
func IsAbsoluteIRI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && len(u.Scheme) < len(s)-1 &&
		!strings.ContainsAny(s, " <>\"{}|^`\\")
}
