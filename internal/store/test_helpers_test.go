package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/sparqlmodel/internal/querysql"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// iriTriple builds a triple whose object is an IRI.
func iriTriple(graph, s, p, o string) Triple {
	return Triple{Graph: graph, Subject: s, Predicate: p, Object: o, ObjectKind: querysql.KindIRI}
}

// literalTriple builds a triple whose object is a literal.
func literalTriple(graph, s, p, o, datatype string) Triple {
	return Triple{Graph: graph, Subject: s, Predicate: p, Object: o, ObjectKind: querysql.KindLiteral, Datatype: datatype}
}
