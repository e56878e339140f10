package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/queryir"
)

// Object kinds stored in triples.object_kind.
const (
	KindIRI     = "iri"
	KindLiteral = "literal"
)

// SQLCompiler compiles QueryIR to parameterized SQL over the triples table.
//
// CRITICAL: ALL selects include ORDER BY with a total tiebreaker for
// deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Column describes one selected variable. Each variable is selected as
// three adjacent columns: value, kind and datatype.
type Column struct {
	Var string
}

// Compiled is a parameterized SELECT plus the variables it returns.
type Compiled struct {
	SQL     string
	Params  []any
	Columns []Column
}

// Statement is one parameterized write.
type Statement struct {
	SQL    string
	Params []any
}

// Triple is a fully concrete row of the triples table.
type Triple struct {
	Graph      string
	Subject    string
	Predicate  string
	Object     string
	ObjectKind string
	Datatype   string
}

// Binding is the raw stored form of one variable value.
type Binding struct {
	Value    string
	Kind     string
	Datatype string
}

// Decode converts a stored binding to an IR value. IRIs decode to their
// string form; literals decode by datatype.
func (b Binding) Decode() ir.IRValue {
	if b.Kind == KindIRI {
		return ir.IRString(b.Value)
	}
	return queryir.DecodeLiteral(b.Value, b.Datatype)
}

// CompileSelect converts a select to SQL.
//
// Required patterns become inner joins of the triples table, each optional
// pattern a LEFT JOIN. A variable is bound at its first occurrence; later
// occurrences become equality constraints.
func (c *SQLCompiler) CompileSelect(q queryir.Select) (Compiled, error) {
	if err := queryir.Check(q); err != nil {
		return Compiled{}, err
	}
	return c.compileSelect(q.Graph, q.Distinct, q.Where, q.Optional, q.Filter, q.Order, q.Limit)
}

// CompileDelete converts the where clause of a delete to a SELECT that
// yields one row per solution. The caller instantiates the template with
// Instantiate and removes the resulting triples.
func (c *SQLCompiler) CompileDelete(q queryir.Delete) (Compiled, error) {
	if err := queryir.Check(q); err != nil {
		return Compiled{}, err
	}
	return c.compileSelect(q.Graph, true, q.Where, nil, q.Filter, nil, 0)
}

// CompileInsert converts an insert to one statement per triple. Existing
// triples are left untouched.
func (c *SQLCompiler) CompileInsert(q queryir.Insert) ([]Statement, error) {
	if err := queryir.Check(q); err != nil {
		return nil, err
	}

	stmts := make([]Statement, 0, len(q.Triples))
	for i, p := range q.Triples {
		t, err := Instantiate(q.Graph, p, nil)
		if err != nil {
			return nil, fmt.Errorf("triples[%d]: %w", i, err)
		}
		stmts = append(stmts, InsertTriple(t))
	}
	return stmts, nil
}

// InsertTriple returns the statement adding one triple.
func InsertTriple(t Triple) Statement {
	return Statement{
		SQL: "INSERT INTO triples (graph, subject, predicate, object, object_kind, datatype) " +
			"VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
		Params: []any{t.Graph, t.Subject, t.Predicate, t.Object, t.ObjectKind, t.Datatype},
	}
}

// DeleteTriple returns the statement removing one triple.
func DeleteTriple(t Triple) Statement {
	return Statement{
		SQL: "DELETE FROM triples WHERE graph = ? AND subject = ? AND predicate = ? " +
			"AND object = ? AND object_kind = ? AND datatype = ?",
		Params: []any{t.Graph, t.Subject, t.Predicate, t.Object, t.ObjectKind, t.Datatype},
	}
}

// Instantiate resolves a pattern against a solution. Every variable must be
// bound, and subjects and predicates must resolve to IRIs.
func Instantiate(graph string, p queryir.Pattern, solution map[string]Binding) (Triple, error) {
	s, err := resolve(p.Subject, solution)
	if err != nil {
		return Triple{}, fmt.Errorf("subject: %w", err)
	}
	pr, err := resolve(p.Predicate, solution)
	if err != nil {
		return Triple{}, fmt.Errorf("predicate: %w", err)
	}
	o, err := resolve(p.Object, solution)
	if err != nil {
		return Triple{}, fmt.Errorf("object: %w", err)
	}
	if s.Kind != KindIRI || pr.Kind != KindIRI {
		return Triple{}, fmt.Errorf("subject and predicate must be IRIs")
	}

	return Triple{
		Graph:      graph,
		Subject:    s.Value,
		Predicate:  pr.Value,
		Object:     o.Value,
		ObjectKind: o.Kind,
		Datatype:   o.Datatype,
	}, nil
}

func resolve(t queryir.Term, solution map[string]Binding) (Binding, error) {
	switch term := t.(type) {
	case queryir.Var:
		b, ok := solution[string(term)]
		if !ok {
			return Binding{}, fmt.Errorf("variable ?%s unbound", term)
		}
		return b, nil
	case queryir.IRI:
		return Binding{Value: string(term), Kind: KindIRI}, nil
	case queryir.Literal:
		return Binding{Value: term.Lexical(), Kind: KindLiteral, Datatype: term.Datatype}, nil
	default:
		return Binding{}, fmt.Errorf("unsupported term type: %T", t)
	}
}

// varExpr holds the SQL expressions of a bound variable.
type varExpr struct {
	value    string
	kind     string
	datatype string
}

// isIRIPosition reports whether the expression is a subject or predicate
// column, which only ever holds IRIs.
func (e varExpr) isIRIPosition() bool {
	return e.kind == "'"+KindIRI+"'"
}

// selectBuilder accumulates the clauses of one SELECT.
type selectBuilder struct {
	vars     map[queryir.Var]varExpr
	order    []queryir.Var
	joins    []string
	joinArgs []any
	where    []string
	args     []any
}

func (c *SQLCompiler) compileSelect(
	graph string,
	distinct bool,
	where, optional []queryir.Pattern,
	filter queryir.Predicate,
	order *queryir.Order,
	limit int,
) (Compiled, error) {
	sb := &selectBuilder{vars: make(map[queryir.Var]varExpr)}

	for i, p := range where {
		alias := fmt.Sprintf("t%d", i)
		conds, args, err := sb.bindPattern(alias, graph, p)
		if err != nil {
			return Compiled{}, fmt.Errorf("where[%d]: %w", i, err)
		}
		if i == 0 {
			sb.joins = append(sb.joins, "FROM triples AS "+alias)
		} else {
			sb.joins = append(sb.joins, "JOIN triples AS "+alias)
		}
		sb.where = append(sb.where, conds...)
		sb.args = append(sb.args, args...)
	}

	for i, p := range optional {
		alias := fmt.Sprintf("o%d", i)
		conds, args, err := sb.bindPattern(alias, graph, p)
		if err != nil {
			return Compiled{}, fmt.Errorf("optional[%d]: %w", i, err)
		}
		sb.joins = append(sb.joins, fmt.Sprintf("LEFT JOIN triples AS %s ON %s", alias, strings.Join(conds, " AND ")))
		sb.joinArgs = append(sb.joinArgs, args...)
	}

	if filter != nil {
		cond, args, err := sb.compilePredicate(filter)
		if err != nil {
			return Compiled{}, fmt.Errorf("compile filter: %w", err)
		}
		sb.where = append(sb.where, cond)
		sb.args = append(sb.args, args...)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if distinct {
		b.WriteString("DISTINCT ")
	}

	columns := make([]Column, 0, len(sb.order))
	selectList := make([]string, 0, len(sb.order)*3)
	for _, v := range sb.order {
		e := sb.vars[v]
		selectList = append(selectList,
			fmt.Sprintf("%s AS v_%s", e.value, v),
			fmt.Sprintf("%s AS k_%s", e.kind, v),
			fmt.Sprintf("%s AS d_%s", e.datatype, v),
		)
		columns = append(columns, Column{Var: string(v)})
	}
	b.WriteString(strings.Join(selectList, ", "))
	b.WriteString(" ")
	b.WriteString(strings.Join(sb.joins, " "))

	params := append([]any{}, sb.joinArgs...)
	if len(sb.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(sb.where, " AND "))
		params = append(params, sb.args...)
	}

	orderSQL, orderArgs := sb.stableOrderKey(order)
	b.WriteString(" ORDER BY " + orderSQL)
	params = append(params, orderArgs...)

	if limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(limit))
	}

	return Compiled{SQL: b.String(), Params: params, Columns: columns}, nil
}

// bindPattern returns the conditions constraining alias to match p,
// binding variables seen for the first time.
func (sb *selectBuilder) bindPattern(alias, graph string, p queryir.Pattern) ([]string, []any, error) {
	conds := []string{alias + ".graph = ?"}
	args := []any{graph}

	positions := []struct {
		term queryir.Term
		expr varExpr
	}{
		{p.Subject, varExpr{alias + ".subject", "'" + KindIRI + "'", "''"}},
		{p.Predicate, varExpr{alias + ".predicate", "'" + KindIRI + "'", "''"}},
		{p.Object, varExpr{alias + ".object", alias + ".object_kind", alias + ".datatype"}},
	}

	for _, pos := range positions {
		switch term := pos.term.(type) {
		case queryir.Var:
			if bound, ok := sb.vars[term]; ok {
				conds = append(conds, sameValue(bound, pos.expr))
				continue
			}
			sb.vars[term] = pos.expr
			sb.order = append(sb.order, term)
		case queryir.IRI, queryir.Literal:
			c, a, err := equalsConstant(pos.expr, term)
			if err != nil {
				return nil, nil, err
			}
			conds = append(conds, c)
			args = append(args, a...)
		default:
			return nil, nil, fmt.Errorf("unsupported term type: %T", pos.term)
		}
	}

	return conds, args, nil
}

func sameValue(a, b varExpr) string {
	return fmt.Sprintf("%s = %s AND %s = %s AND %s = %s",
		a.value, b.value, a.kind, b.kind, a.datatype, b.datatype)
}

// equalsConstant compares a position with an IRI or literal.
// CRITICAL: Value is NEVER interpolated - always parameterized.
func equalsConstant(e varExpr, t queryir.Term) (string, []any, error) {
	switch term := t.(type) {
	case queryir.IRI:
		if e.isIRIPosition() {
			return e.value + " = ?", []any{string(term)}, nil
		}
		return fmt.Sprintf("%s = ? AND %s = '%s'", e.value, e.kind, KindIRI), []any{string(term)}, nil
	case queryir.Literal:
		return fmt.Sprintf("%s = ? AND %s = '%s' AND %s = ?", e.value, e.kind, KindLiteral, e.datatype),
			[]any{term.Lexical(), term.Datatype}, nil
	default:
		return "", nil, fmt.Errorf("unsupported constant type: %T", t)
	}
}

// compilePredicate compiles a queryir.Predicate to a WHERE fragment.
func (sb *selectBuilder) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return sb.compileEquals(pred)
	case *queryir.Equals:
		return sb.compileEquals(*pred)
	case queryir.And:
		return sb.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return sb.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return sb.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case *queryir.Or:
		return sb.compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (sb *selectBuilder) compileEquals(eq queryir.Equals) (string, []any, error) {
	left, ok := sb.vars[eq.Var]
	if !ok {
		return "", nil, fmt.Errorf("variable ?%s not bound", eq.Var)
	}

	if v, isVar := eq.Value.(queryir.Var); isVar {
		right, ok := sb.vars[v]
		if !ok {
			return "", nil, fmt.Errorf("variable ?%s not bound", v)
		}
		return "(" + sameValue(left, right) + ")", nil, nil
	}

	cond, args, err := equalsConstant(left, eq.Value)
	if err != nil {
		return "", nil, err
	}
	return "(" + cond + ")", args, nil
}

func (sb *selectBuilder) compileJunction(preds []queryir.Predicate, op, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var allArgs []any
	for _, sub := range preds {
		s, args, err := sb.compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		allArgs = append(allArgs, args...)
	}

	return "(" + strings.Join(parts, op) + ")", allArgs, nil
}

// stableOrderKey returns the ORDER BY clause for a select.
//
// The requested variable sorts first, numerically when it holds integer
// literals. Every bound variable follows as a tiebreaker, using COLLATE
// BINARY for deterministic text ordering across SQLite versions.
func (sb *selectBuilder) stableOrderKey(order *queryir.Order) (string, []any) {
	var keys []string
	var args []any

	if order != nil {
		e := sb.vars[order.Var]
		dir := "ASC"
		if order.Descending {
			dir = "DESC"
		}
		keys = append(keys,
			fmt.Sprintf("CASE WHEN %s IN (?, ?, ?) THEN CAST(%s AS INTEGER) END %s", e.datatype, e.value, dir),
			fmt.Sprintf("%s %s COLLATE BINARY", e.value, dir),
		)
		args = append(args, queryir.XSDInteger, queryir.XSDInt, queryir.XSDLong)
	}

	for _, v := range sb.order {
		e := sb.vars[v]
		keys = append(keys, e.value+" ASC COLLATE BINARY")
	}

	return strings.Join(keys, ", "), args
}
