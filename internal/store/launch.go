package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sparqlmodel/internal/queryir"
	"github.com/roach88/sparqlmodel/internal/querysql"
)

var _ queryir.Executor = (*Store)(nil)

// Launch executes a QueryIR query.
//
// Selects return one row per solution; variables left unbound by an
// optional pattern are absent from the row. Inserts and deletes return an
// empty result and run in a single transaction.
func (s *Store) Launch(ctx context.Context, q queryir.Query) (*queryir.Result, error) {
	switch query := q.(type) {
	case queryir.Select:
		return s.launchSelect(ctx, query)
	case *queryir.Select:
		return s.launchSelect(ctx, *query)
	case queryir.Insert:
		return s.launchInsert(ctx, query)
	case *queryir.Insert:
		return s.launchInsert(ctx, *query)
	case queryir.Delete:
		return s.launchDelete(ctx, query)
	case *queryir.Delete:
		return s.launchDelete(ctx, *query)
	default:
		return nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (s *Store) launchSelect(ctx context.Context, q queryir.Select) (*queryir.Result, error) {
	compiled, err := s.compiler.CompileSelect(q)
	if err != nil {
		return nil, fmt.Errorf("compile select: %w", err)
	}

	solutions, err := querySolutions(ctx, s.db, compiled)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	result := &queryir.Result{
		Vars: make([]string, len(compiled.Columns)),
		Rows: make([]queryir.Row, 0, len(solutions)),
	}
	for i, col := range compiled.Columns {
		result.Vars[i] = col.Var
	}
	for _, sol := range solutions {
		row := make(queryir.Row, len(sol))
		for name, b := range sol {
			row[name] = b.Decode()
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func (s *Store) launchInsert(ctx context.Context, q queryir.Insert) (*queryir.Result, error) {
	stmts, err := s.compiler.CompileInsert(q)
	if err != nil {
		return nil, fmt.Errorf("compile insert: %w", err)
	}

	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return execAll(ctx, tx, stmts)
	}); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	return &queryir.Result{}, nil
}

// launchDelete collects every solution of the where clause, then removes
// the instantiated template triples, all inside one transaction.
func (s *Store) launchDelete(ctx context.Context, q queryir.Delete) (*queryir.Result, error) {
	compiled, err := s.compiler.CompileDelete(q)
	if err != nil {
		return nil, fmt.Errorf("compile delete: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		solutions, err := querySolutions(ctx, tx, compiled)
		if err != nil {
			return err
		}

		var stmts []querysql.Statement
		for _, sol := range solutions {
			for i, p := range q.Template {
				t, err := querysql.Instantiate(q.Graph, p, sol)
				if err != nil {
					return fmt.Errorf("template[%d]: %w", i, err)
				}
				stmts = append(stmts, querysql.DeleteTriple(t))
			}
		}
		return execAll(ctx, tx, stmts)
	})
	if err != nil {
		return nil, fmt.Errorf("delete: %w", err)
	}

	return &queryir.Result{}, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// querySolutions runs a compiled select and returns its raw bindings. Rows
// are fully read and closed before returning.
func querySolutions(ctx context.Context, q queryer, compiled querysql.Compiled) ([]map[string]querysql.Binding, error) {
	rows, err := q.QueryContext(ctx, compiled.SQL, compiled.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solutions []map[string]querysql.Binding
	for rows.Next() {
		raw := make([]sql.NullString, len(compiled.Columns)*3)
		dest := make([]any, len(raw))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		sol := make(map[string]querysql.Binding, len(compiled.Columns))
		for i, col := range compiled.Columns {
			value, kind, datatype := raw[i*3], raw[i*3+1], raw[i*3+2]
			if !value.Valid {
				continue
			}
			sol[col.Var] = querysql.Binding{
				Value:    value.String,
				Kind:     kind.String,
				Datatype: datatype.String,
			}
		}
		solutions = append(solutions, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return solutions, nil
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []querysql.Statement) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
