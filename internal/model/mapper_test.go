package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sparqlmodel/internal/idgen"
	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/queryir"
	"github.com/roach88/sparqlmodel/internal/store"
)

func savePerson(t *testing.T, m *Mapper, name string, age int64) *Entity {
	t.Helper()
	e, err := m.New("Person")
	require.NoError(t, err)
	require.NoError(t, e.Set("name", ir.IRString(name)))
	require.NoError(t, e.Set("age", ir.IRInt(age)))
	require.NoError(t, m.Save(context.Background(), e, nil))
	return e
}

func TestFind_MissingSubject(t *testing.T) {
	m, _, _ := newStoreMapper(t, nil)

	e, err := m.Find(context.Background(), "Person", "404")
	require.NoError(t, err)

	assert.False(t, e.Exist())
	assert.Equal(t, personBase+"404", e.Identifier)
	assert.Equal(t, ir.IRObject{"id": ir.IRString(personBase + "404")}, e.ToArray())
}

func TestFind_PrefixesOnlyRelativeIdentifiers(t *testing.T) {
	m, rec := newCannedMapper(t, nil)
	ctx := context.Background()

	e, err := m.Find(ctx, "Person", "http://other.org/p/1")
	require.NoError(t, err)
	assert.Equal(t, "http://other.org/p/1", e.Identifier)

	e, err = m.Find(ctx, "Person", "7")
	require.NoError(t, err)
	assert.Equal(t, personBase+"7", e.Identifier)

	assert.Equal(t, 2, rec.Count())

	_, err = m.Find(ctx, "Robot", "1")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestSaveThenFind_RoundTrip(t *testing.T) {
	gen := idgen.NewSequenceGenerator(personBase)
	m, s, _ := newStoreMapper(t, gen)
	ctx := context.Background()

	saved := savePerson(t, m, "Ada", 36)
	assert.True(t, saved.Exist())
	// One identifier for the collision check, a fresh one for the insert.
	assert.Equal(t, personBase+"2", saved.Identifier)

	found, err := m.Find(ctx, "Person", "2")
	require.NoError(t, err)
	assert.True(t, found.Exist())

	name, _ := found.Scalar("name")
	age, _ := found.Scalar("age")
	assert.Equal(t, ir.IRString("Ada"), name)
	assert.Equal(t, ir.IRInt(36), age)

	triples, err := s.ReadSubject(ctx, testGraph, personBase+"2")
	require.NoError(t, err)
	byPredicate := make(map[string]store.Triple)
	for _, tr := range triples {
		byPredicate[tr.Predicate] = tr
	}
	assert.Len(t, triples, 6)
	assert.Equal(t, foafPerson, byPredicate[queryir.RDFType].Object)
	assert.Equal(t, "1", byPredicate[DefaultLifecycle().StatusPredicate].Object)
	assert.Equal(t, "2024-01-01T12:00:00Z", byPredicate[DefaultLifecycle().CreatedPredicate].Object)
	assert.Equal(t, queryir.XSDDateTime, byPredicate[DefaultLifecycle().UpdatedPredicate].Datatype)
}

func TestSelect_QueryShape(t *testing.T) {
	m, rec := newCannedMapper(t, nil)

	e, err := m.New("Person")
	require.NoError(t, err)
	e.Identifier = personBase + "1"
	require.NoError(t, m.Select(context.Background(), e))

	text := rec.SPARQL()
	require.Len(t, text, 1)
	assert.Contains(t, text[0], "?uri ?property ?value .")
	assert.Contains(t, text[0], "?uri <http://www.w3.org/ns/adms#status> 1 .")
	assert.Contains(t, text[0], "FILTER (?uri = <http://example.org/person/1> && (?property = <http://xmlns.com/foaf/0.1/name> || ?property = <http://xmlns.com/foaf/0.1/age>))")
}

func TestSelect_UntrackedTypeHasNoStatusPattern(t *testing.T) {
	m, rec := newCannedMapper(t, nil)

	e, err := m.New("Tag")
	require.NoError(t, err)
	e.Identifier = tagBase + "go"
	require.NoError(t, m.Select(context.Background(), e))

	q := rec.Queries()[0].(*queryir.Select)
	assert.Len(t, q.Where, 1)
}

func TestSelect_RequiresIdentifier(t *testing.T) {
	m, rec := newCannedMapper(t, nil)

	e, err := m.New("Person")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Select(context.Background(), e), ErrIdentifierRequired)
	assert.ErrorIs(t, m.Listing(context.Background(), e, ""), ErrIdentifierRequired)
	assert.Equal(t, 0, rec.Count())
}

func TestSelect_NilResultIsNoMatch(t *testing.T) {
	m, _ := newCannedMapper(t, nil)

	e, err := m.Find(context.Background(), "Person", "1")
	require.NoError(t, err)
	assert.False(t, e.Exist())
}

func TestSelect_SkipsUnmappedRows(t *testing.T) {
	m, rec := newCannedMapper(t, nil)
	id := personBase + "1"
	rec.Respond(rows(
		queryir.Row{"uri": ir.IRString(id), "property": ir.IRString("http://example.org/unmapped"), "value": ir.IRString("x")},
		queryir.Row{"uri": ir.IRString(id), "property": ir.IRString(foafName), "value": ir.IRString("Ada")},
	))

	e, err := m.Find(context.Background(), "Person", id)
	require.NoError(t, err)
	assert.True(t, e.Exist())
	assert.Equal(t, ir.IRObject{"id": ir.IRString(id), "name": ir.IRString("Ada")}, e.ToArray())
}

func TestSelect_ExecutorErrorPropagates(t *testing.T) {
	m, rec := newCannedMapper(t, nil)
	boom := errors.New("connection refused")
	rec.Fail(boom)

	_, err := m.Find(context.Background(), "Person", "1")
	assert.ErrorIs(t, err, boom)
}

func TestListing_MergesSparseRows(t *testing.T) {
	member := EntityType{
		Name:    "Member",
		BaseURI: personBase,
		Scalars: []ScalarMapping{
			{Predicate: foafName, Field: "name"},
			{Predicate: foafAge, Field: "age"},
			{Predicate: foafNick, Field: "nick"},
		},
		Relations: []RelationMapping{{Predicate: foafKnows, Field: "knows", Target: "Member"}},
	}
	r := NewRegistry()
	require.NoError(t, r.Register(member))

	rec := newRecorder()
	m, err := NewMapper(rec, r)
	require.NoError(t, err)

	related := personBase + "2"
	rec.Respond(rows(
		queryir.Row{"uri": ir.IRString(related), "name": ir.IRString("Bob")},
		queryir.Row{"uri": ir.IRString(related), "age": ir.IRInt(9)},
		queryir.Row{"uri": ir.IRString(related), "nick": ir.IRString("bobby")},
	))

	e, err := m.New("Member")
	require.NoError(t, err)
	e.Identifier = personBase + "1"
	require.NoError(t, m.Listing(context.Background(), e, "knows"))

	knows := e.Related("knows")
	require.Len(t, knows, 1)
	assert.Equal(t, related, knows[0].Identifier)
	assert.True(t, knows[0].Exist())
	assert.Equal(t, ir.IRObject{
		"id":   ir.IRString(related),
		"name": ir.IRString("Bob"),
		"age":  ir.IRInt(9),
		"nick": ir.IRString("bobby"),
	}, knows[0].ToArray())
}

func TestListing_QueryShape(t *testing.T) {
	m, rec := newCannedMapper(t, nil)

	e, err := m.New("Person")
	require.NoError(t, err)
	e.Identifier = personBase + "1"
	require.NoError(t, m.Listing(context.Background(), e, ""))

	q := rec.Queries()[0].(*queryir.Select)
	assert.True(t, q.Distinct)
	assert.Equal(t, []queryir.Pattern{
		queryir.T(queryir.IRI(personBase+"1"), queryir.IRI(foafKnows), queryir.Var("uri")),
	}, q.Where)
	assert.Equal(t, []queryir.Pattern{
		queryir.T(queryir.Var("uri"), queryir.IRI(foafName), queryir.Var("name")),
		queryir.T(queryir.Var("uri"), queryir.IRI(foafAge), queryir.Var("age")),
	}, q.Optional)
	assert.Equal(t, &queryir.Order{Var: "name"}, q.Order)
	assert.Equal(t, 0, q.Limit)

	// A nil result still assigns an empty collection.
	assert.NotNil(t, e.Related("knows"))
	assert.Empty(t, e.Related("knows"))
}

func TestListing_UnknownRelation(t *testing.T) {
	m, rec := newCannedMapper(t, nil)

	e, err := m.New("Person")
	require.NoError(t, err)
	e.Identifier = personBase + "1"

	assert.ErrorIs(t, m.Listing(context.Background(), e, "name"), ErrUnknownField)
	assert.Equal(t, 0, rec.Count())
}

func TestListing_AgainstStore(t *testing.T) {
	m, _, _ := newStoreMapper(t, idgen.NewSequenceGenerator(personBase))
	ctx := context.Background()

	ada := savePerson(t, m, "Ada", 36)
	cyd := savePerson(t, m, "Cyd", 100)
	bob := savePerson(t, m, "Bob", 9)
	require.NoError(t, m.Link(ctx, ada, cyd))
	require.NoError(t, m.Link(ctx, ada, bob))

	found, err := m.Find(ctx, "Person", ada.Identifier)
	require.NoError(t, err)
	require.NoError(t, m.Listing(ctx, found, "knows"))

	knows := found.Related("knows")
	require.Len(t, knows, 2)
	assert.Equal(t, bob.Identifier, knows[0].Identifier)
	assert.Equal(t, cyd.Identifier, knows[1].Identifier)
	age, _ := knows[1].Scalar("age")
	assert.Equal(t, ir.IRInt(100), age)
}

func TestSave_CollisionSkipsWrite(t *testing.T) {
	gen := idgen.NewFixedGenerator(personBase+"1", personBase+"2")
	m, rec := newCannedMapper(t, gen)
	rec.Respond(rows(queryir.Row{
		"uri":      ir.IRString(personBase + "1"),
		"property": ir.IRString(foafName),
		"value":    ir.IRString("Existing"),
	}))

	e, err := m.New("Person")
	require.NoError(t, err)
	require.NoError(t, e.Set("name", ir.IRString("Ada")))

	require.NoError(t, m.Save(context.Background(), e, nil))

	assert.Equal(t, 1, rec.Count(), "only the collision check ran")
	assert.Equal(t, personBase+"1", e.Identifier)
	assert.Equal(t, 1, gen.Remaining())
}

func TestSave_WithoutGenerator(t *testing.T) {
	m, rec := newCannedMapper(t, nil)

	e, err := m.New("Person")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Save(context.Background(), e, nil), ErrNotImplemented)
	assert.Equal(t, 0, rec.Count())
}

func TestSave_InsertContents(t *testing.T) {
	gen := idgen.NewFixedGenerator(personBase+"1", personBase+"2")
	m, rec := newCannedMapper(t, gen)

	e, err := m.New("Person")
	require.NoError(t, err)
	require.NoError(t, e.Set("name", ir.IRString("Ada")))

	extra := map[string]ir.IRValue{"http://example.org/source": ir.IRString("import")}
	require.NoError(t, m.Save(context.Background(), e, extra))

	require.Equal(t, 2, rec.Count())
	insert := rec.Queries()[1].(*queryir.Insert)
	subject := queryir.IRI(personBase + "2")
	now := queryir.TypedLiteral("2024-01-01T12:00:00Z", queryir.XSDDateTime)
	lc := DefaultLifecycle()
	assert.Equal(t, []queryir.Pattern{
		queryir.T(subject, queryir.IRI(foafName), queryir.NewLiteral(ir.IRString("Ada"))),
		queryir.T(subject, queryir.IRI("http://example.org/source"), queryir.NewLiteral(ir.IRString("import"))),
		queryir.T(subject, queryir.IRI(queryir.RDFType), queryir.IRI(foafPerson)),
		queryir.T(subject, queryir.IRI(lc.StatusPredicate), queryir.NewLiteral(ir.IRInt(1))),
		queryir.T(subject, queryir.IRI(lc.CreatedPredicate), now),
		queryir.T(subject, queryir.IRI(lc.UpdatedPredicate), now),
	}, insert.Triples)
	assert.True(t, e.Exist())
}

func TestSave_UpdateDeletesSetPredicates(t *testing.T) {
	gen := idgen.NewFixedGenerator(personBase+"1", personBase+"2", personBase+"3")
	m, rec := newCannedMapper(t, gen)

	e, err := m.New("Person")
	require.NoError(t, err)
	require.NoError(t, e.Set("name", ir.IRString("Ada")))
	require.NoError(t, m.Save(context.Background(), e, nil))
	rec.Reset()

	require.NoError(t, m.Save(context.Background(), e, map[string]ir.IRValue{"http://example.org/source": ir.IRInt(2)}))

	queries := rec.Queries()
	require.Len(t, queries, 2)

	del := queries[0].(*queryir.Delete)
	subject := queryir.IRI(personBase + "2")
	assert.Equal(t, []queryir.Pattern{queryir.T(subject, queryir.Var("x"), queryir.Var("y"))}, del.Template)
	assert.Equal(t, queryir.Or{Predicates: []queryir.Predicate{
		queryir.Equals{Var: "x", Value: queryir.IRI(foafName)},
		queryir.Equals{Var: "x", Value: queryir.IRI("http://example.org/source")},
		queryir.Equals{Var: "x", Value: queryir.IRI(DefaultLifecycle().UpdatedPredicate)},
	}}, del.Filter)

	// The identifier is regenerated even on update, and no created triple is written.
	insert := queries[1].(*queryir.Insert)
	assert.Equal(t, personBase+"3", e.Identifier)
	for _, p := range insert.Triples {
		assert.Equal(t, queryir.IRI(personBase+"3"), p.Subject)
		assert.NotEqual(t, queryir.IRI(DefaultLifecycle().CreatedPredicate), p.Predicate)
	}
}

func TestSave_KeepIdentifierPolicy(t *testing.T) {
	gen := idgen.NewFixedGenerator(personBase + "1")
	m, s, _ := newStoreMapper(t, gen, WithSavePolicy(SavePolicy{KeepIdentifier: true}))
	ctx := context.Background()

	e, err := m.New("Person")
	require.NoError(t, err)
	require.NoError(t, e.Set("name", ir.IRString("Ada")))
	require.NoError(t, m.Save(ctx, e, nil))
	assert.Equal(t, personBase+"1", e.Identifier)

	require.NoError(t, e.Set("name", ir.IRString("Ada Lovelace")))
	require.NoError(t, m.Save(ctx, e, nil))
	assert.Equal(t, personBase+"1", e.Identifier)

	found, err := m.Find(ctx, "Person", "1")
	require.NoError(t, err)
	name, _ := found.Scalar("name")
	assert.Equal(t, ir.IRString("Ada Lovelace"), name)

	// created survives the update; updated is replaced.
	triples, err := s.ReadSubject(ctx, testGraph, personBase+"1")
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, tr := range triples {
		counts[tr.Predicate]++
	}
	assert.Equal(t, 1, counts[foafName])
	assert.Equal(t, 1, counts[DefaultLifecycle().CreatedPredicate])
	assert.Equal(t, 1, counts[DefaultLifecycle().UpdatedPredicate])
}

func TestSave_ProtectTimestampsPolicy(t *testing.T) {
	lc := DefaultLifecycle()
	withCreated := EntityType{
		Name: "Doc",
		Scalars: []ScalarMapping{
			{Predicate: dcTitle, Field: "title"},
			{Predicate: lc.CreatedPredicate, Field: "created"},
		},
		IDGen: idgen.NewSequenceGenerator("http://example.org/doc/"),
	}

	for _, protect := range []bool{false, true} {
		r := NewRegistry()
		require.NoError(t, r.Register(withCreated))
		rec := newRecorder()
		m, err := NewMapper(rec, r, WithSavePolicy(SavePolicy{ProtectTimestamps: protect}))
		require.NoError(t, err)

		e, err := m.New("Doc")
		require.NoError(t, err)
		require.NoError(t, e.Set("title", ir.IRString("Notes")))
		require.NoError(t, e.Set("created", ir.IRString("2013-01-01T00:00:00Z")))
		require.NoError(t, m.Save(context.Background(), e, nil))
		rec.Reset()
		require.NoError(t, m.Save(context.Background(), e, nil))

		del := rec.Queries()[0].(*queryir.Delete)
		filter := del.Filter.(queryir.Or)
		createdDeleted := false
		for _, p := range filter.Predicates {
			if p.(queryir.Equals).Value == queryir.IRI(lc.CreatedPredicate) {
				createdDeleted = true
			}
		}
		assert.Equal(t, !protect, createdDeleted, "protect=%v", protect)
	}
}

func TestSave_WriteFailure(t *testing.T) {
	m, rec := newCannedMapper(t, idgen.NewSequenceGenerator(personBase))
	e, err := m.New("Person")
	require.NoError(t, err)

	boom := errors.New("endpoint error 500")
	// The collision check runs; the insert fails.
	m.exec = failOnUpdate(rec, boom)

	err = m.Save(context.Background(), e, nil)
	assert.ErrorIs(t, err, ErrStoreWriteFailed)
	assert.ErrorIs(t, err, boom)
	assert.False(t, e.Exist())
}

func TestDelete_Logical(t *testing.T) {
	m, s, _ := newStoreMapper(t, idgen.NewSequenceGenerator(personBase))
	ctx := context.Background()

	e := savePerson(t, m, "Ada", 36)
	require.NoError(t, m.Delete(ctx, e, true))
	assert.False(t, e.Exist())

	found, err := m.Find(ctx, "Person", e.Identifier)
	require.NoError(t, err)
	assert.False(t, found.Exist(), "status is no longer active")

	triples, err := s.ReadSubject(ctx, testGraph, e.Identifier)
	require.NoError(t, err)
	assert.Len(t, triples, 6, "other triples stay")
	for _, tr := range triples {
		if tr.Predicate == DefaultLifecycle().StatusPredicate {
			assert.Equal(t, "2", tr.Object)
		}
	}
}

func TestDelete_Hard(t *testing.T) {
	m, s, _ := newStoreMapper(t, idgen.NewSequenceGenerator(personBase))
	ctx := context.Background()

	e := savePerson(t, m, "Ada", 36)
	other := savePerson(t, m, "Bob", 9)
	require.NoError(t, m.Delete(ctx, e, false))
	assert.False(t, e.Exist())

	triples, err := s.ReadSubject(ctx, testGraph, e.Identifier)
	require.NoError(t, err)
	assert.Empty(t, triples)

	found, err := m.Find(ctx, "Person", other.Identifier)
	require.NoError(t, err)
	assert.True(t, found.Exist())

	// In-memory fields are untouched.
	name, _ := e.Scalar("name")
	assert.Equal(t, ir.IRString("Ada"), name)
}

func TestDelete_NotInStoreIsNoop(t *testing.T) {
	m, rec := newCannedMapper(t, nil)
	e, err := m.New("Person")
	require.NoError(t, err)
	e.Identifier = personBase + "1"

	require.NoError(t, m.Delete(context.Background(), e, false))
	require.NoError(t, m.Delete(context.Background(), e, true))
	assert.Equal(t, 0, rec.Count())
}

func TestLink_NoMatchingRelationIsNoop(t *testing.T) {
	m, s, rec := newStoreMapper(t, idgen.NewSequenceGenerator(personBase))
	ctx := context.Background()

	ada := savePerson(t, m, "Ada", 36)
	tag, err := m.New("Tag")
	require.NoError(t, err)
	tag.Identifier = tagBase + "go"

	before, err := s.CountTriples(ctx, testGraph)
	require.NoError(t, err)
	launched := rec.Count()

	require.NoError(t, m.Link(ctx, ada, tag))

	after, err := s.CountTriples(ctx, testGraph)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, launched, rec.Count())
}

func TestLink_InsertsOneTriple(t *testing.T) {
	m, rec := newCannedMapper(t, nil)
	a, _ := m.New("Person")
	b, _ := m.New("Person")
	a.Identifier = personBase + "1"
	b.Identifier = personBase + "2"

	require.NoError(t, m.Link(context.Background(), a, b))
	require.NoError(t, m.Link(context.Background(), a, b))

	queries := rec.Queries()
	require.Len(t, queries, 2)
	assert.Equal(t, []queryir.Pattern{
		queryir.T(queryir.IRI(personBase+"1"), queryir.IRI(foafKnows), queryir.IRI(personBase+"2")),
	}, queries[0].(*queryir.Insert).Triples)
}

func TestLink_RequiresIdentifiers(t *testing.T) {
	m, rec := newCannedMapper(t, nil)
	a, _ := m.New("Person")
	b, _ := m.New("Person")
	a.Identifier = personBase + "1"

	assert.ErrorIs(t, m.Link(context.Background(), a, b), ErrIdentifierRequired)
	assert.Equal(t, 0, rec.Count())
}

func TestNewMapper_SealsRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityType{
		Name:      "Person",
		Relations: []RelationMapping{{Predicate: foafKnows, Field: "knows", Target: "Robot"}},
	}))
	_, err := NewMapper(newRecorder(), r)
	assert.ErrorIs(t, err, ErrInvalidMapping)

	r = newTestRegistry(t, nil)
	m, err := NewMapper(newRecorder(), r)
	require.NoError(t, err)
	assert.True(t, m.Registry().Sealed())
}
