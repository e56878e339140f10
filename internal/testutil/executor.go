package testutil

import (
	"context"
	"sync"

	"github.com/roach88/sparqlmodel/internal/queryir"
	"github.com/roach88/sparqlmodel/internal/querysparql"
)

// RecordingExecutor records every query launched through it.
//
// With a backing executor it forwards each query and returns its answer.
// Without one it returns the canned results queued with Respond, in order,
// and nil once they run out. This lets model tests assert the exact queries
// an operation issues, with or without a real store behind it.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingExecutor struct {
	mu      sync.Mutex
	next    queryir.Executor
	queries []queryir.Query
	canned  []*queryir.Result
	err     error
}

var _ queryir.Executor = (*RecordingExecutor)(nil)

// NewRecordingExecutor wraps next, which may be nil.
func NewRecordingExecutor(next queryir.Executor) *RecordingExecutor {
	return &RecordingExecutor{next: next}
}

// Respond queues canned results for an executor without a backing store.
func (r *RecordingExecutor) Respond(results ...*queryir.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canned = append(r.canned, results...)
}

// Fail makes every following Launch return err after recording the query.
func (r *RecordingExecutor) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Launch records q, then answers it.
func (r *RecordingExecutor) Launch(ctx context.Context, q queryir.Query) (*queryir.Result, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	err := r.err
	next := r.next
	var canned *queryir.Result
	if next == nil && len(r.canned) > 0 {
		canned = r.canned[0]
		r.canned = r.canned[1:]
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if next != nil {
		return next.Launch(ctx, q)
	}
	return canned, nil
}

// Queries returns a copy of the recorded queries in launch order.
func (r *RecordingExecutor) Queries() []queryir.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queryir.Query(nil), r.queries...)
}

// Count returns how many queries were launched.
func (r *RecordingExecutor) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// SPARQL returns the recorded queries compiled to SPARQL text. Queries that
// fail to compile render as the empty string.
func (r *RecordingExecutor) SPARQL() []string {
	compiler := querysparql.NewSPARQLCompiler()
	queries := r.Queries()
	out := make([]string, len(queries))
	for i, q := range queries {
		text, err := compiler.Compile(q)
		if err == nil {
			out[i] = text
		}
	}
	return out
}

// Reset forgets recorded queries, canned results and the failure.
func (r *RecordingExecutor) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = nil
	r.canned = nil
	r.err = nil
}
