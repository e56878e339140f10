package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/queryir"
)

// Lifecycle names the predicates and status values shared by every entity
// type.
type Lifecycle struct {
	StatusPredicate  string
	CreatedPredicate string
	UpdatedPredicate string
	Active           int64
	Deleted          int64
}

// DefaultLifecycle returns the ADMS status and Dublin Core timestamp
// predicates with active=1 and deleted=2.
func DefaultLifecycle() Lifecycle {
	return Lifecycle{
		StatusPredicate:  "http://www.w3.org/ns/adms#status",
		CreatedPredicate: "http://purl.org/dc/terms/created",
		UpdatedPredicate: "http://purl.org/dc/terms/modified",
		Active:           1,
		Deleted:          2,
	}
}

// SavePolicy adjusts Save. The zero value is the literal behaviour: every
// set scalar predicate is deleted on update and a fresh identifier is
// generated on every save.
type SavePolicy struct {
	// ProtectTimestamps keeps a mapped created predicate out of the update
	// delete.
	ProtectTimestamps bool

	// KeepIdentifier reuses the current identifier on update and the
	// collision-checked identifier on create.
	KeepIdentifier bool
}

// Clock supplies timestamps for created and updated triples.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Option configures a Mapper.
type Option func(*Mapper)

// WithGraph sets the named graph every query runs against.
func WithGraph(graph string) Option {
	return func(m *Mapper) { m.graph = graph }
}

// WithLifecycle overrides the lifecycle predicates and status values.
func WithLifecycle(l Lifecycle) Option {
	return func(m *Mapper) { m.lifecycle = l }
}

// WithClock sets the timestamp source.
func WithClock(c Clock) Option {
	return func(m *Mapper) { m.clock = c }
}

// WithSavePolicy sets the Save override points.
func WithSavePolicy(p SavePolicy) Option {
	return func(m *Mapper) { m.policy = p }
}

// Mapper runs entity operations against a triple store.
//
// Every operation issues its queries one after the other and waits for each.
// Nothing is retried, and a save is not atomic: its delete and insert are
// separate updates.
type Mapper struct {
	exec      queryir.Executor
	registry  *Registry
	graph     string
	lifecycle Lifecycle
	clock     Clock
	policy    SavePolicy
}

// NewMapper seals the registry and returns a Mapper over exec.
func NewMapper(exec queryir.Executor, registry *Registry, opts ...Option) (*Mapper, error) {
	if err := registry.Seal(); err != nil {
		return nil, err
	}
	m := &Mapper{
		exec:      exec,
		registry:  registry,
		lifecycle: DefaultLifecycle(),
		clock:     SystemClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Registry returns the sealed registry.
func (m *Mapper) Registry() *Registry {
	return m.registry
}

// New returns an empty entity of the named type.
func (m *Mapper) New(typeName string) (*Entity, error) {
	return m.registry.New(typeName)
}

// Find loads the entity of typeName identified by id. An id that does not
// start with "http://" is prefixed with the type's base URI, if any.
//
// A missing subject is not an error: check Exist on the result.
func (m *Mapper) Find(ctx context.Context, typeName, id string) (*Entity, error) {
	t, err := m.registry.Type(typeName)
	if err != nil {
		return nil, err
	}
	if t.BaseURI != "" && !strings.HasPrefix(id, "http://") {
		id = t.BaseURI + id
	}

	e := newEntity(t)
	e.Identifier = id
	if err := m.Select(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Select loads every mapped scalar of e from the store. For status-tracked
// types only an active subject matches.
//
// No match leaves e untouched with Exist false. A malformed or absent result
// counts as no match.
func (m *Mapper) Select(ctx context.Context, e *Entity) error {
	if e.Identifier == "" {
		return fmt.Errorf("select %s: %w", e.typ.Name, ErrIdentifierRequired)
	}
	if len(e.typ.Scalars) == 0 {
		return nil
	}

	properties := make([]queryir.Predicate, len(e.typ.Scalars))
	for i, s := range e.typ.Scalars {
		properties[i] = queryir.Equals{Var: propertyVar, Value: queryir.IRI(s.Predicate)}
	}

	b := queryir.NewBuilder(m.exec).
		Select(m.graph).
		Where(queryir.Var(subjectVar), queryir.Var(propertyVar), queryir.Var(valueVar))
	if e.typ.StatusTracked {
		b.Where(queryir.Var(subjectVar), queryir.IRI(m.lifecycle.StatusPredicate), m.statusLiteral(m.lifecycle.Active))
	}
	b.Filter(queryir.Equals{Var: subjectVar, Value: queryir.IRI(e.Identifier)}).
		Filter(queryir.Or{Predicates: properties})

	res, err := b.Launch(ctx)
	if err != nil {
		return fmt.Errorf("select %s: %w", e.Identifier, err)
	}

	bound := 0
	for _, row := range res.Solutions() {
		if e.Process(row) {
			bound++
		}
	}
	slog.Debug("selected entity",
		"type", e.typ.Name,
		"subject", e.Identifier,
		"rows", res.Len(),
		"bound", bound)
	return nil
}

// Listing loads relation collections of e. An empty field loads every
// relation of the type; otherwise only the named one.
//
// Each relation is one distinct query with an optional pattern per target
// field, so a related entity may arrive over several sparse rows. Rows are
// merged per related identifier in first-seen order.
func (m *Mapper) Listing(ctx context.Context, e *Entity, field string) error {
	if e.Identifier == "" {
		return fmt.Errorf("listing %s: %w", e.typ.Name, ErrIdentifierRequired)
	}

	relations := e.typ.Relations
	if field != "" {
		rel, ok := e.typ.Relation(field)
		if !ok {
			return fmt.Errorf("%w: %s.%s is not a relation", ErrUnknownField, e.typ.Name, field)
		}
		relations = []RelationMapping{rel}
	}

	for _, rel := range relations {
		related, err := m.listRelation(ctx, e.Identifier, rel)
		if err != nil {
			return fmt.Errorf("listing %s.%s: %w", e.typ.Name, rel.Field, err)
		}
		e.fields[rel.Field] = related
	}
	return nil
}

func (m *Mapper) listRelation(ctx context.Context, subject string, rel RelationMapping) ([]*Entity, error) {
	target, err := m.registry.Type(rel.Target)
	if err != nil {
		return nil, err
	}

	b := queryir.NewBuilder(m.exec).
		Select(m.graph).
		Distinct().
		Where(queryir.IRI(subject), queryir.IRI(rel.Predicate), queryir.Var(subjectVar))
	for _, s := range target.Scalars {
		b.OptionalWhere(queryir.Var(subjectVar), queryir.IRI(s.Predicate), queryir.Var(s.Field))
	}
	if rel.Order != nil {
		b.OrderBy(queryir.Var(rel.Order.Field), rel.Order.Descending)
	}
	if rel.Limit > 0 {
		b.Limit(rel.Limit)
	}

	res, err := b.Launch(ctx)
	if err != nil {
		return nil, err
	}

	related := make([]*Entity, 0, res.Len())
	index := make(map[string]*Entity, res.Len())
	for _, row := range res.Solutions() {
		uri, ok := row.String(subjectVar)
		if !ok || uri == "" {
			continue
		}
		element, found := index[uri]
		if !found {
			element = newEntity(target)
			element.Identifier = uri
			index[uri] = element
			related = append(related, element)
		}
		element.ProcessLine(row)
	}

	slog.Debug("listed relation",
		"subject", subject,
		"relation", rel.Field,
		"rows", res.Len(),
		"entities", len(related))
	return related, nil
}

// Save writes e. extra maps additional predicate URIs to values written
// alongside the mapped fields.
//
// An entity already in the store first loses every triple of its set scalar
// predicates, of the extra predicates, and of the updated predicate. A new
// entity gets a generated identifier checked against the store; when that
// identifier is taken the save is skipped. Either way the identifier is then
// regenerated (unless SavePolicy.KeepIdentifier) and the fields, extras,
// rdf:type, active status, created (new only) and updated triples are
// inserted.
func (m *Mapper) Save(ctx context.Context, e *Entity, extra map[string]ir.IRValue) error {
	extraPredicates := make([]string, 0, len(extra))
	for p := range extra {
		extraPredicates = append(extraPredicates, p)
	}
	sort.Strings(extraPredicates)

	isNew := !e.inStore
	if isNew {
		id, err := m.generateID(e.typ)
		if err != nil {
			return err
		}
		e.Identifier = id
		if err := m.Select(ctx, e); err != nil {
			return err
		}
		if e.inStore {
			slog.Warn("generated identifier already in store, save skipped",
				"type", e.typ.Name,
				"subject", e.Identifier)
			return nil
		}
	} else if err := m.deleteForUpdate(ctx, e, extraPredicates); err != nil {
		return err
	}

	if !m.policy.KeepIdentifier {
		id, err := m.generateID(e.typ)
		if err != nil {
			return err
		}
		e.Identifier = id
	}

	subject := queryir.IRI(e.Identifier)
	b := queryir.NewBuilder(m.exec).Insert(m.graph)
	for _, s := range e.typ.Scalars {
		if v, ok := e.Scalar(s.Field); ok {
			b.Where(subject, queryir.IRI(s.Predicate), queryir.NewLiteral(v))
		}
	}
	for _, p := range extraPredicates {
		b.Where(subject, queryir.IRI(p), queryir.NewLiteral(extra[p]))
	}
	if e.typ.RDFType != "" {
		b.Where(subject, queryir.IRI(queryir.RDFType), queryir.IRI(e.typ.RDFType))
	}
	if e.typ.StatusTracked {
		b.Where(subject, queryir.IRI(m.lifecycle.StatusPredicate), m.statusLiteral(m.lifecycle.Active))
	}
	now := queryir.TypedLiteral(m.clock.Now().UTC().Format(time.RFC3339), queryir.XSDDateTime)
	if isNew {
		b.Where(subject, queryir.IRI(m.lifecycle.CreatedPredicate), now)
	}
	b.Where(subject, queryir.IRI(m.lifecycle.UpdatedPredicate), now)

	if _, err := b.Launch(ctx); err != nil {
		return fmt.Errorf("save %s: %w: %w", e.Identifier, ErrStoreWriteFailed, err)
	}

	e.inStore = true
	slog.Debug("saved entity",
		"type", e.typ.Name,
		"subject", e.Identifier,
		"new", isNew)
	return nil
}

func (m *Mapper) deleteForUpdate(ctx context.Context, e *Entity, extraPredicates []string) error {
	var predicates []queryir.Predicate
	for _, s := range e.typ.Scalars {
		if _, ok := e.Scalar(s.Field); !ok {
			continue
		}
		if m.policy.ProtectTimestamps && m.isTimestamp(s.Predicate) {
			continue
		}
		predicates = append(predicates, queryir.Equals{Var: "x", Value: queryir.IRI(s.Predicate)})
	}
	for _, p := range extraPredicates {
		predicates = append(predicates, queryir.Equals{Var: "x", Value: queryir.IRI(p)})
	}
	predicates = append(predicates, queryir.Equals{Var: "x", Value: queryir.IRI(m.lifecycle.UpdatedPredicate)})

	subject := queryir.IRI(e.Identifier)
	_, err := queryir.NewBuilder(m.exec).
		Delete(m.graph, queryir.T(subject, queryir.Var("x"), queryir.Var("y"))).
		Where(subject, queryir.Var("x"), queryir.Var("y")).
		Filter(queryir.Or{Predicates: predicates}).
		Launch(ctx)
	if err != nil {
		return fmt.Errorf("save %s: %w: %w", e.Identifier, ErrStoreWriteFailed, err)
	}
	return nil
}

func (m *Mapper) isTimestamp(predicate string) bool {
	return predicate == m.lifecycle.CreatedPredicate || predicate == m.lifecycle.UpdatedPredicate
}

// Delete removes e from the store. A hard delete removes every triple of the
// subject; a logical delete replaces its status with the deleted value.
// Either way Exist is false afterwards. An entity not in the store is left
// alone.
func (m *Mapper) Delete(ctx context.Context, e *Entity, logical bool) error {
	if !e.inStore {
		return nil
	}

	subject := queryir.IRI(e.Identifier)
	if !logical {
		_, err := queryir.NewBuilder(m.exec).
			Delete(m.graph, queryir.T(subject, queryir.Var("x"), queryir.Var("y"))).
			Where(subject, queryir.Var("x"), queryir.Var("y")).
			Launch(ctx)
		if err != nil {
			return fmt.Errorf("delete %s: %w: %w", e.Identifier, ErrStoreWriteFailed, err)
		}
	} else {
		status := queryir.IRI(m.lifecycle.StatusPredicate)
		_, err := queryir.NewBuilder(m.exec).
			Delete(m.graph, queryir.T(subject, status, queryir.Var("y"))).
			Where(subject, status, queryir.Var("y")).
			Launch(ctx)
		if err != nil {
			return fmt.Errorf("delete %s: %w: %w", e.Identifier, ErrStoreWriteFailed, err)
		}
		_, err = queryir.NewBuilder(m.exec).
			Insert(m.graph).
			Where(subject, status, m.statusLiteral(m.lifecycle.Deleted)).
			Launch(ctx)
		if err != nil {
			return fmt.Errorf("delete %s: %w: %w", e.Identifier, ErrStoreWriteFailed, err)
		}
	}

	e.inStore = false
	slog.Debug("deleted entity",
		"type", e.typ.Name,
		"subject", e.Identifier,
		"logical", logical)
	return nil
}

// Link adds the triple (e, predicate, target) using the first relation of
// e's type whose target is target's type. Without such a relation Link does
// nothing. Neither side is checked for existence and existing links are not
// deduplicated.
func (m *Mapper) Link(ctx context.Context, e, target *Entity) error {
	var rel *RelationMapping
	for i := range e.typ.Relations {
		if e.typ.Relations[i].Target == target.typ.Name {
			rel = &e.typ.Relations[i]
			break
		}
	}
	if rel == nil {
		slog.Debug("no relation to link",
			"type", e.typ.Name,
			"target_type", target.typ.Name)
		return nil
	}
	if e.Identifier == "" || target.Identifier == "" {
		return fmt.Errorf("link %s.%s: %w", e.typ.Name, rel.Field, ErrIdentifierRequired)
	}

	_, err := queryir.NewBuilder(m.exec).
		Insert(m.graph).
		Where(queryir.IRI(e.Identifier), queryir.IRI(rel.Predicate), queryir.IRI(target.Identifier)).
		Launch(ctx)
	if err != nil {
		return fmt.Errorf("link %s.%s: %w: %w", e.typ.Name, rel.Field, ErrStoreWriteFailed, err)
	}
	return nil
}

func (m *Mapper) generateID(t *EntityType) (string, error) {
	if t.IDGen == nil {
		return "", fmt.Errorf("%s: %w", t.Name, ErrNotImplemented)
	}
	id, err := t.IDGen.Generate()
	if err != nil {
		return "", fmt.Errorf("%s: generate identifier: %w", t.Name, err)
	}
	return id, nil
}

func (m *Mapper) statusLiteral(v int64) queryir.Literal {
	return queryir.NewLiteral(ir.IRInt(v))
}
