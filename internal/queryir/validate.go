package queryir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is wrapped by every error Check returns.
var ErrInvalidQuery = errors.New("invalid query")

// ValidationResult lists the structural problems found in a query.
type ValidationResult struct {
	// IsValid is true when the query can be compiled by every backend.
	IsValid bool

	// Problems describes each violation. Empty when IsValid is true.
	Problems []string
}

// Err returns nil for a valid result, otherwise an error wrapping
// ErrInvalidQuery that lists every problem.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidQuery, strings.Join(r.Problems, "; "))
}

// Validate checks the structural rules both backends rely on:
//  1. Subjects and predicates are variables or IRIs; literals only as objects
//  2. Variable names are identifiers ([A-Za-z_][A-Za-z0-9_]*)
//  3. Filters and ORDER BY only reference variables bound by the patterns
//  4. Insert triples are fully concrete
//  5. Delete templates only use variables bound by the where clause
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

// Check is Validate(query).Err().
func Check(query Query) error {
	return Validate(query).Err()
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addProblem("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Insert:
		v.validateInsert(query)
	case *Insert:
		v.validateInsert(*query)
	case Delete:
		v.validateDelete(query)
	case *Delete:
		v.validateDelete(*query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(s Select) {
	if len(s.Where) == 0 {
		v.addProblem("select requires at least one where pattern")
	}
	for i, p := range s.Where {
		v.validatePattern(fmt.Sprintf("where[%d]", i), p)
	}
	for i, p := range s.Optional {
		v.validatePattern(fmt.Sprintf("optional[%d]", i), p)
	}

	bound := varSet(s.BoundVars())
	v.validatePredicate("filter", s.Filter, bound)

	if s.Order != nil && !bound[s.Order.Var] {
		v.addProblem("order by ?%s: variable not bound by any pattern", s.Order.Var)
	}
	if s.Limit < 0 {
		v.addProblem("negative limit %d", s.Limit)
	}
}

func (v *validator) validateInsert(ins Insert) {
	if len(ins.Triples) == 0 {
		v.addProblem("insert requires at least one triple")
	}
	for i, p := range ins.Triples {
		label := fmt.Sprintf("triples[%d]", i)
		v.validatePattern(label, p)
		for _, name := range patternVars(p) {
			v.addProblem("%s: variable ?%s not allowed in insert data", label, name)
		}
	}
}

func (v *validator) validateDelete(d Delete) {
	if len(d.Template) == 0 {
		v.addProblem("delete requires at least one template pattern")
	}
	if len(d.Where) == 0 {
		v.addProblem("delete requires at least one where pattern")
	}
	for i, p := range d.Where {
		v.validatePattern(fmt.Sprintf("where[%d]", i), p)
	}

	bound := varSet(Select{Where: d.Where}.BoundVars())
	for i, p := range d.Template {
		label := fmt.Sprintf("template[%d]", i)
		v.validatePattern(label, p)
		for _, name := range patternVars(p) {
			if !bound[name] {
				v.addProblem("%s: variable ?%s not bound by where clause", label, name)
			}
		}
	}
	v.validatePredicate("filter", d.Filter, bound)
}

func (v *validator) validatePattern(label string, p Pattern) {
	v.validateTerm(label+".subject", p.Subject, false)
	v.validateTerm(label+".predicate", p.Predicate, false)
	v.validateTerm(label+".object", p.Object, true)
}

func (v *validator) validateTerm(label string, t Term, literalAllowed bool) {
	switch term := t.(type) {
	case nil:
		v.addProblem("%s: missing term", label)
	case Var:
		if !IsValidVarName(string(term)) {
			v.addProblem("%s: invalid variable name %q", label, string(term))
		}
	case IRI:
		if term == "" {
			v.addProblem("%s: empty IRI", label)
		}
	case Literal:
		if !literalAllowed {
			v.addProblem("%s: literal only allowed in object position", label)
		}
		if term.Value == nil {
			v.addProblem("%s: literal without value", label)
		}
	default:
		v.addProblem("%s: unknown term type %T", label, t)
	}
}

func (v *validator) validatePredicate(label string, p Predicate, bound map[Var]bool) {
	if p == nil {
		return
	}
	for _, name := range PredicateVars(p) {
		if !bound[name] {
			v.addProblem("%s: variable ?%s not bound by any pattern", label, name)
		}
	}

	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Equals:
			if pred.Value == nil {
				v.addProblem("%s: ?%s compared with nothing", label, pred.Var)
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
		default:
			v.addProblem("%s: unknown predicate type %T", label, p)
		}
	}
	walk(p)
}

func varSet(vars []Var) map[Var]bool {
	set := make(map[Var]bool, len(vars))
	for _, name := range vars {
		set[name] = true
	}
	return set
}
