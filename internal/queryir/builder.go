package queryir

import (
	"context"
	"errors"
)

// ErrNoQueryForm is returned when a Builder is launched before Select,
// Insert or Delete was called.
var ErrNoQueryForm = errors.New("builder has no query form")

type builderForm int

const (
	formNone builderForm = iota
	formSelect
	formInsert
	formDelete
)

// Builder assembles one query fluently and launches it on an executor.
//
//	res, err := queryir.NewBuilder(exec).
//	    Select(graph).
//	    Where(queryir.Var("uri"), queryir.Var("property"), queryir.Var("value")).
//	    Filter(queryir.Equals{Var: "uri", Value: queryir.IRI(id)}).
//	    Launch(ctx)
//
// A Builder is single-use and not safe for concurrent use.
type Builder struct {
	exec     Executor
	form     builderForm
	graph    string
	distinct bool
	where    []Pattern
	optional []Pattern
	template []Pattern
	filters  []Predicate
	order    *Order
	limit    int
}

// NewBuilder returns a Builder bound to an executor.
func NewBuilder(exec Executor) *Builder {
	return &Builder{exec: exec}
}

// Select starts a select over graph.
func (b *Builder) Select(graph string) *Builder {
	b.form = formSelect
	b.graph = graph
	return b
}

// Insert starts an insert into graph. Where adds the triples to insert.
func (b *Builder) Insert(graph string) *Builder {
	b.form = formInsert
	b.graph = graph
	return b
}

// Delete starts a delete over graph removing the template patterns.
func (b *Builder) Delete(graph string, template ...Pattern) *Builder {
	b.form = formDelete
	b.graph = graph
	b.template = append(b.template, template...)
	return b
}

// Distinct removes duplicate solutions from a select.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Where adds a required pattern (or an insert triple).
func (b *Builder) Where(s, p, o Term) *Builder {
	b.where = append(b.where, T(s, p, o))
	return b
}

// OptionalWhere adds an independently optional pattern.
func (b *Builder) OptionalWhere(s, p, o Term) *Builder {
	b.optional = append(b.optional, T(s, p, o))
	return b
}

// Filter adds a predicate. Repeated calls are combined with And.
func (b *Builder) Filter(p Predicate) *Builder {
	b.filters = append(b.filters, p)
	return b
}

// OrderBy sorts select solutions by one variable.
func (b *Builder) OrderBy(v Var, descending bool) *Builder {
	b.order = &Order{Var: v, Descending: descending}
	return b
}

// Limit caps the number of select solutions. 0 means no limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Build returns the assembled query after validating it.
func (b *Builder) Build() (Query, error) {
	var q Query
	switch b.form {
	case formSelect:
		q = &Select{
			Graph:    b.graph,
			Distinct: b.distinct,
			Where:    b.where,
			Optional: b.optional,
			Filter:   b.filter(),
			Order:    b.order,
			Limit:    b.limit,
		}
	case formInsert:
		q = &Insert{Graph: b.graph, Triples: b.where}
	case formDelete:
		q = &Delete{
			Graph:    b.graph,
			Template: b.template,
			Where:    b.where,
			Filter:   b.filter(),
		}
	default:
		return nil, ErrNoQueryForm
	}

	if err := Check(q); err != nil {
		return nil, err
	}
	return q, nil
}

// Launch builds the query and runs it on the bound executor.
func (b *Builder) Launch(ctx context.Context) (*Result, error) {
	q, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.exec.Launch(ctx, q)
}

func (b *Builder) filter() Predicate {
	switch len(b.filters) {
	case 0:
		return nil
	case 1:
		return b.filters[0]
	default:
		return And{Predicates: b.filters}
	}
}
