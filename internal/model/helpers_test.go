package model

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sparqlmodel/internal/idgen"
	"github.com/roach88/sparqlmodel/internal/queryir"
	"github.com/roach88/sparqlmodel/internal/store"
	"github.com/roach88/sparqlmodel/internal/testutil"
)

const (
	foafName   = "http://xmlns.com/foaf/0.1/name"
	foafAge    = "http://xmlns.com/foaf/0.1/age"
	foafKnows  = "http://xmlns.com/foaf/0.1/knows"
	foafNick   = "http://xmlns.com/foaf/0.1/nick"
	foafPerson = "http://xmlns.com/foaf/0.1/Person"
	dcTitle    = "http://purl.org/dc/terms/title"
	personBase = "http://example.org/person/"
	tagBase    = "http://example.org/tag/"
	testGraph  = "http://example.org/graph"
)

func personType(gen idgen.Generator) EntityType {
	return EntityType{
		Name:          "Person",
		BaseURI:       personBase,
		RDFType:       foafPerson,
		StatusTracked: true,
		Scalars: []ScalarMapping{
			{Predicate: foafName, Field: "name"},
			{Predicate: foafAge, Field: "age"},
		},
		Relations: []RelationMapping{
			{Predicate: foafKnows, Field: "knows", Target: "Person", Order: &OrderSpec{Field: "name"}},
		},
		IDGen: gen,
	}
}

func tagType() EntityType {
	return EntityType{
		Name:    "Tag",
		BaseURI: tagBase,
		Scalars: []ScalarMapping{{Predicate: dcTitle, Field: "title"}},
	}
}

func newTestRegistry(t *testing.T, gen idgen.Generator) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(personType(gen), tagType()))
	return r
}

// newStoreMapper returns a mapper over a fresh SQLite store, with a recorder
// in between.
func newStoreMapper(t *testing.T, gen idgen.Generator, opts ...Option) (*Mapper, *store.Store, *testutil.RecordingExecutor) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rec := testutil.NewRecordingExecutor(s)
	opts = append([]Option{
		WithGraph(testGraph),
		WithClock(testutil.NewFixedClock(time.Time{})),
	}, opts...)
	m, err := NewMapper(rec, newTestRegistry(t, gen), opts...)
	require.NoError(t, err)
	return m, s, rec
}

// newCannedMapper returns a mapper whose executor answers from canned results.
func newCannedMapper(t *testing.T, gen idgen.Generator, opts ...Option) (*Mapper, *testutil.RecordingExecutor) {
	t.Helper()

	rec := testutil.NewRecordingExecutor(nil)
	opts = append([]Option{WithClock(testutil.NewFixedClock(time.Time{}))}, opts...)
	m, err := NewMapper(rec, newTestRegistry(t, gen), opts...)
	require.NoError(t, err)
	return m, rec
}

func rows(rs ...queryir.Row) *queryir.Result {
	return &queryir.Result{Rows: rs}
}

func newRecorder() *testutil.RecordingExecutor {
	return testutil.NewRecordingExecutor(nil)
}

// failOnUpdate forwards selects to next and fails every insert and delete.
func failOnUpdate(next queryir.Executor, err error) queryir.Executor {
	return queryir.ExecutorFunc(func(ctx context.Context, q queryir.Query) (*queryir.Result, error) {
		switch q.(type) {
		case queryir.Select, *queryir.Select:
			return next.Launch(ctx, q)
		}
		return nil, err
	})
}
