package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sparqlmodel/internal/querysql"
)

// Triple is one concrete stored statement.
type Triple = querysql.Triple

// WriteTriples inserts concrete triples in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency - existing triples are
// silently ignored.
func (s *Store) WriteTriples(ctx context.Context, triples []Triple) error {
	stmts := make([]querysql.Statement, len(triples))
	for i, t := range triples {
		if t.ObjectKind != querysql.KindIRI && t.ObjectKind != querysql.KindLiteral {
			return fmt.Errorf("write triples: triple %d: invalid object kind %q", i, t.ObjectKind)
		}
		stmts[i] = querysql.InsertTriple(t)
	}

	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return execAll(ctx, tx, stmts)
	}); err != nil {
		return fmt.Errorf("write triples: %w", err)
	}
	return nil
}
