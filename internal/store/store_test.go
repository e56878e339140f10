package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s1.WriteTriples(context.Background(), []Triple{
		iriTriple("", "http://example.org/a", "http://example.org/p", "http://example.org/b"),
	}); err != nil {
		t.Fatalf("WriteTriples() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	count, err := s2.CountTriples(context.Background(), "")
	if err != nil {
		t.Fatalf("CountTriples() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 after reopen", count)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='triples'").Scan(&name)
	if err != nil {
		t.Errorf("triples table not found after idempotent opens: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

// Schema tests

func TestSchema_TriplesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "triples")
	expected := []string{"id", "graph", "subject", "predicate", "object", "object_kind", "datatype"}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("triples table missing column %q", col)
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "triples")
	for _, idx := range []string{"idx_triples_subject", "idx_triples_object"} {
		if !contains(indexes, idx) {
			t.Errorf("triples table missing index %q, got %v", idx, indexes)
		}
	}
}

func TestConstraint_ObjectKindChecked(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO triples (graph, subject, predicate, object, object_kind, datatype)
		VALUES ('', 's', 'p', 'o', 'blank', '')
	`)
	if err == nil {
		t.Error("expected CHECK constraint failure for object_kind 'blank'")
	}
}

func TestConstraint_DuplicateTripleIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	triple := literalTriple("", "http://example.org/a", "http://example.org/name", "Ada", "")
	for i := 0; i < 2; i++ {
		if err := s.WriteTriples(ctx, []Triple{triple}); err != nil {
			t.Fatalf("WriteTriples() iteration %d failed: %v", i, err)
		}
	}

	count, err := s.CountTriples(ctx, "")
	if err != nil {
		t.Fatalf("CountTriples() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (set semantics)", count)
	}
}

func TestConstraint_DatatypeDistinguishesLiterals(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WriteTriples(ctx, []Triple{
		literalTriple("", "http://example.org/a", "http://example.org/n", "1", ""),
		literalTriple("", "http://example.org/a", "http://example.org/n", "1", "http://www.w3.org/2001/XMLSchema#integer"),
	})
	if err != nil {
		t.Fatalf("WriteTriples() failed: %v", err)
	}

	count, _ := s.CountTriples(ctx, "")
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Apply schema but NOT migrations (simulates pre-migration state)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}
	if !contains(getTableIndexes(t, s.db, "triples"), "idx_triples_object") {
		t.Error("expected idx_triples_object after migration")
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
