// Package querysparql compiles QueryIR to SPARQL 1.1 query and update text.
package querysparql

import (
	"fmt"
	"strings"

	"github.com/roach88/sparqlmodel/internal/queryir"
)

// SPARQLCompiler compiles QueryIR to SPARQL text.
//
// Constants are written inline: IRIs in angle brackets, literals quoted and
// escaped. xsd:integer and xsd:boolean literals use their bare lexical form.
type SPARQLCompiler struct {
	// Indent is the per-level indentation. Defaults to two spaces.
	Indent string
}

// NewSPARQLCompiler creates a new SPARQLCompiler.
func NewSPARQLCompiler() *SPARQLCompiler {
	return &SPARQLCompiler{Indent: "  "}
}

// IsUpdate reports whether q must be sent to the update endpoint.
func IsUpdate(q queryir.Query) bool {
	switch q.(type) {
	case queryir.Insert, *queryir.Insert, queryir.Delete, *queryir.Delete:
		return true
	default:
		return false
	}
}

// Compile converts a QueryIR query to SPARQL text.
func (c *SPARQLCompiler) Compile(q queryir.Query) (string, error) {
	if q == nil {
		return "", fmt.Errorf("cannot compile nil query")
	}
	if err := queryir.Check(q); err != nil {
		return "", err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Insert:
		return c.compileInsert(query)
	case *queryir.Insert:
		return c.compileInsert(*query)
	case queryir.Delete:
		return c.compileDelete(query)
	case *queryir.Delete:
		return c.compileDelete(*query)
	default:
		return "", fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SPARQLCompiler) indent(level int) string {
	ind := c.Indent
	if ind == "" {
		ind = "  "
	}
	return strings.Repeat(ind, level)
}

// compileSelect emits:
//
//	SELECT [DISTINCT] * [FROM <g>] WHERE { ... } [ORDER BY ...] [LIMIT n]
func (c *SPARQLCompiler) compileSelect(q queryir.Select) (string, error) {
	var b strings.Builder

	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString("*")
	if q.Graph != "" {
		g, err := formatIRI(q.Graph)
		if err != nil {
			return "", fmt.Errorf("graph: %w", err)
		}
		b.WriteString(" FROM " + g)
	}
	b.WriteString(" WHERE {\n")

	if err := c.writePatterns(&b, q.Where, 1); err != nil {
		return "", fmt.Errorf("where: %w", err)
	}
	for i, p := range q.Optional {
		triple, err := formatPattern(p)
		if err != nil {
			return "", fmt.Errorf("optional[%d]: %w", i, err)
		}
		fmt.Fprintf(&b, "%sOPTIONAL { %s }\n", c.indent(1), triple)
	}
	if err := c.writeFilter(&b, q.Filter, 1); err != nil {
		return "", err
	}
	b.WriteString("}")

	if q.Order != nil {
		if q.Order.Descending {
			fmt.Fprintf(&b, "\nORDER BY DESC(?%s)", q.Order.Var)
		} else {
			fmt.Fprintf(&b, "\nORDER BY ASC(?%s)", q.Order.Var)
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d", q.Limit)
	}

	return b.String(), nil
}

// compileInsert emits INSERT DATA, wrapping triples in a GRAPH block when
// a graph is named.
func (c *SPARQLCompiler) compileInsert(q queryir.Insert) (string, error) {
	var b strings.Builder
	b.WriteString("INSERT DATA {\n")

	level := 1
	if q.Graph != "" {
		g, err := formatIRI(q.Graph)
		if err != nil {
			return "", fmt.Errorf("graph: %w", err)
		}
		fmt.Fprintf(&b, "%sGRAPH %s {\n", c.indent(1), g)
		level = 2
	}
	if err := c.writePatterns(&b, q.Triples, level); err != nil {
		return "", fmt.Errorf("triples: %w", err)
	}
	if q.Graph != "" {
		b.WriteString(c.indent(1) + "}\n")
	}
	b.WriteString("}")

	return b.String(), nil
}

// compileDelete emits [WITH <g>] DELETE { template } WHERE { where FILTER }.
func (c *SPARQLCompiler) compileDelete(q queryir.Delete) (string, error) {
	var b strings.Builder

	if q.Graph != "" {
		g, err := formatIRI(q.Graph)
		if err != nil {
			return "", fmt.Errorf("graph: %w", err)
		}
		b.WriteString("WITH " + g + "\n")
	}

	b.WriteString("DELETE {\n")
	if err := c.writePatterns(&b, q.Template, 1); err != nil {
		return "", fmt.Errorf("template: %w", err)
	}
	b.WriteString("}\nWHERE {\n")
	if err := c.writePatterns(&b, q.Where, 1); err != nil {
		return "", fmt.Errorf("where: %w", err)
	}
	if err := c.writeFilter(&b, q.Filter, 1); err != nil {
		return "", err
	}
	b.WriteString("}")

	return b.String(), nil
}

func (c *SPARQLCompiler) writePatterns(b *strings.Builder, patterns []queryir.Pattern, level int) error {
	for i, p := range patterns {
		triple, err := formatPattern(p)
		if err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
		b.WriteString(c.indent(level) + triple + "\n")
	}
	return nil
}

func (c *SPARQLCompiler) writeFilter(b *strings.Builder, p queryir.Predicate, level int) error {
	if p == nil {
		return nil
	}
	expr, err := compilePredicate(p, false)
	if err != nil {
		return fmt.Errorf("compile filter: %w", err)
	}
	fmt.Fprintf(b, "%sFILTER (%s)\n", c.indent(level), expr)
	return nil
}

// compilePredicate renders a filter expression. Nested conjunctions and
// disjunctions are parenthesized.
func compilePredicate(p queryir.Predicate, nested bool) (string, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		term, err := formatTerm(pred.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("?%s = %s", pred.Var, term), nil
	case *queryir.Equals:
		return compilePredicate(*pred, nested)
	case queryir.And:
		return compileJunction(pred.Predicates, " && ", "true", nested)
	case *queryir.And:
		return compilePredicate(*pred, nested)
	case queryir.Or:
		return compileJunction(pred.Predicates, " || ", "false", nested)
	case *queryir.Or:
		return compilePredicate(*pred, nested)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileJunction(preds []queryir.Predicate, op, empty string, nested bool) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	if len(preds) == 1 {
		return compilePredicate(preds[0], nested)
	}

	parts := make([]string, 0, len(preds))
	for _, sub := range preds {
		s, err := compilePredicate(sub, true)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}

	expr := strings.Join(parts, op)
	if nested {
		return "(" + expr + ")", nil
	}
	return expr, nil
}

func formatPattern(p queryir.Pattern) (string, error) {
	s, err := formatTerm(p.Subject)
	if err != nil {
		return "", fmt.Errorf("subject: %w", err)
	}
	pr, err := formatTerm(p.Predicate)
	if err != nil {
		return "", fmt.Errorf("predicate: %w", err)
	}
	o, err := formatTerm(p.Object)
	if err != nil {
		return "", fmt.Errorf("object: %w", err)
	}
	return s + " " + pr + " " + o + " .", nil
}

func formatTerm(t queryir.Term) (string, error) {
	switch term := t.(type) {
	case queryir.Var:
		return "?" + string(term), nil
	case queryir.IRI:
		return formatIRI(string(term))
	case queryir.Literal:
		return formatLiteral(term)
	default:
		return "", fmt.Errorf("unsupported term type: %T", t)
	}
}

// formatIRI wraps an IRI in angle brackets, rejecting characters the
// SPARQL IRIREF production forbids.
func formatIRI(iri string) (string, error) {
	if iri == "" {
		return "", fmt.Errorf("empty IRI")
	}
	for _, r := range iri {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			return "", fmt.Errorf("invalid character %q in IRI %q", r, iri)
		}
	}
	return "<" + iri + ">", nil
}

func formatLiteral(l queryir.Literal) (string, error) {
	lex := l.Lexical()
	switch l.Datatype {
	case "":
		return quote(lex), nil
	case queryir.XSDInteger, queryir.XSDBoolean:
		if isBareLexical(lex, l.Datatype) {
			return lex, nil
		}
	}
	dt, err := formatIRI(l.Datatype)
	if err != nil {
		return "", fmt.Errorf("datatype: %w", err)
	}
	return quote(lex) + "^^" + dt, nil
}

func isBareLexical(lex, datatype string) bool {
	if datatype == queryir.XSDBoolean {
		return lex == "true" || lex == "false"
	}
	digits := strings.TrimPrefix(strings.TrimPrefix(lex, "-"), "+")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\b", `\b`,
	"\f", `\f`,
)

func quote(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}
