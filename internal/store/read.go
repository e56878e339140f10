package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadSubject returns every triple of a subject in a graph.
// Results are ordered by predicate, object COLLATE BINARY, then id.
func (s *Store) ReadSubject(ctx context.Context, graph, subject string) ([]Triple, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT graph, subject, predicate, object, object_kind, datatype
		FROM triples
		WHERE graph = ? AND subject = ?
		ORDER BY predicate ASC COLLATE BINARY, object ASC COLLATE BINARY, id ASC
	`, graph, subject)
	if err != nil {
		return nil, fmt.Errorf("read subject: %w", err)
	}
	defer rows.Close()

	return scanTriples(rows)
}

// CountTriples returns the number of triples in a graph.
func (s *Store) CountTriples(ctx context.Context, graph string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM triples WHERE graph = ?", graph,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count triples: %w", err)
	}
	return count, nil
}

func scanTriples(rows *sql.Rows) ([]Triple, error) {
	var triples []Triple
	for rows.Next() {
		var t Triple
		if err := rows.Scan(&t.Graph, &t.Subject, &t.Predicate, &t.Object, &t.ObjectKind, &t.Datatype); err != nil {
			return nil, fmt.Errorf("scan triple: %w", err)
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triples: %w", err)
	}
	return triples, nil
}
