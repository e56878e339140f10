package queryir

import (
	"strconv"
	"strings"

	"github.com/roach88/sparqlmodel/internal/ir"
)

// XML Schema datatypes understood by the backends.
const (
	XSD         = "http://www.w3.org/2001/XMLSchema#"
	XSDString   = XSD + "string"
	XSDInteger  = XSD + "integer"
	XSDInt      = XSD + "int"
	XSDLong     = XSD + "long"
	XSDBoolean  = XSD + "boolean"
	XSDDateTime = XSD + "dateTime"

	RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// Term is one position of a triple pattern.
//
// This is a sealed interface - only Var, IRI and Literal implement it.
type Term interface {
	termNode() // Marker method - seals interface to this package
}

// Var is a query variable, written without the leading '?'.
type Var string

func (Var) termNode() {}

// IRI is an absolute resource identifier, written without angle brackets.
type IRI string

func (IRI) termNode() {}

// Literal is an RDF literal. An empty Datatype means a plain literal.
type Literal struct {
	Value    ir.IRValue
	Datatype string
}

func (Literal) termNode() {}

// Lexical returns the literal's lexical form.
func (l Literal) Lexical() string {
	return ir.Lexical(l.Value)
}

// NewLiteral wraps a value, inferring the datatype: integers become
// xsd:integer, booleans xsd:boolean, strings stay plain.
func NewLiteral(v ir.IRValue) Literal {
	switch v.(type) {
	case ir.IRInt:
		return Literal{Value: v, Datatype: XSDInteger}
	case ir.IRBool:
		return Literal{Value: v, Datatype: XSDBoolean}
	default:
		return Literal{Value: v}
	}
}

// TypedLiteral builds a string-valued literal with an explicit datatype.
func TypedLiteral(lexical, datatype string) Literal {
	return Literal{Value: ir.IRString(lexical), Datatype: datatype}
}

// DecodeLiteral turns a lexical form and datatype coming back from a store
// into a value. Integer and boolean datatypes decode to IRInt and IRBool;
// everything else, including unparseable numbers, stays a string.
func DecodeLiteral(lexical, datatype string) ir.IRValue {
	switch datatype {
	case XSDInteger, XSDInt, XSDLong:
		if n, err := strconv.ParseInt(strings.TrimSpace(lexical), 10, 64); err == nil {
			return ir.IRInt(n)
		}
	case XSDBoolean:
		switch lexical {
		case "true", "1":
			return ir.IRBool(true)
		case "false", "0":
			return ir.IRBool(false)
		}
	}
	return ir.IRString(lexical)
}

// IsValidVarName reports whether name can be used as a variable in both
// SPARQL and generated SQL aliases.
func IsValidVarName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// patternVars returns the variables of a pattern in subject, predicate,
// object order.
func patternVars(p Pattern) []Var {
	var vars []Var
	for _, t := range []Term{p.Subject, p.Predicate, p.Object} {
		if v, ok := t.(Var); ok {
			vars = append(vars, v)
		}
	}
	return vars
}

// PredicateVars collects every variable referenced by a predicate.
func PredicateVars(p Predicate) []Var {
	var vars []Var
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Equals:
			vars = append(vars, pred.Var)
			if v, ok := pred.Value.(Var); ok {
				vars = append(vars, v)
			}
		case *Equals:
			walk(*pred)
		case And:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		case *And:
			walk(*pred)
		case Or:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		case *Or:
			walk(*pred)
		}
	}
	walk(p)
	return vars
}

// BoundVars returns the variables a select binds, in first-occurrence order
// across the required patterns and then the optional ones.
func (s Select) BoundVars() []Var {
	seen := make(map[Var]bool)
	var out []Var
	for _, group := range [][]Pattern{s.Where, s.Optional} {
		for _, p := range group {
			for _, v := range patternVars(p) {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
	}
	return out
}
