package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/sparqlmodel/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// assertTraceCount checks how many steps ran a given operation.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s step(s)", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertTripleCount counts what is physically in the store, regardless of
// status: every triple of the graph, or those of one subject.
func (h *Harness) assertTripleCount(ctx context.Context, graph string, a Assertion) error {
	if a.Ref == "" {
		count, err := h.store.CountTriples(ctx, graph)
		if err != nil {
			return fmt.Errorf("%s: %w", AssertTripleCount, err)
		}
		if count != a.Count {
			return &AssertionError{
				Type:     AssertTripleCount,
				Expected: fmt.Sprintf("%d triples in graph %q", a.Count, graph),
				Actual:   fmt.Sprintf("%d", count),
			}
		}
		return nil
	}

	e, err := h.ref(a.Ref)
	if err != nil {
		return err
	}
	if e.Identifier == "" {
		return fmt.Errorf("%s: ref %q has no identifier", AssertTripleCount, a.Ref)
	}

	triples, err := h.store.ReadSubject(ctx, graph, e.Identifier)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertTripleCount, err)
	}
	count := 0
	for _, t := range triples {
		if a.Predicate == "" || t.Predicate == a.Predicate {
			count++
		}
	}
	if count != a.Count {
		what := "triples of " + e.Identifier
		if a.Predicate != "" {
			what += " under " + a.Predicate
		}
		return &AssertionError{
			Type:     AssertTripleCount,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertFinalState finds the bound entity again and checks what a fresh
// lookup sees.
func (h *Harness) assertFinalState(ctx context.Context, a Assertion) error {
	bound, err := h.ref(a.Ref)
	if err != nil {
		return err
	}
	e, err := h.mapper.Find(ctx, bound.Type().Name, bound.Identifier)
	if err != nil {
		return fmt.Errorf("%s: find failed: %w", AssertFinalState, err)
	}

	if a.Exists != nil && e.Exist() != *a.Exists {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exists=%v for %s", *a.Exists, bound.Identifier),
			Actual:   fmt.Sprintf("exists=%v", e.Exist()),
		}
	}
	if msgs := matchFields(e.ToArray(), a.Fields); len(msgs) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "fields of " + bound.Identifier,
			Actual:   strings.Join(msgs, "; "),
		}
	}
	return nil
}

// matchFields checks that actual holds every expected key with an equal
// value (subset semantics). Keys are checked in sorted order.
func matchFields(actual ir.IRObject, expected map[string]interface{}) []string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msgs []string
	for _, k := range keys {
		want, err := toIR(expected[k])
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("field %q: %v", k, err))
			continue
		}
		got, ok := actual[k]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("field %q missing", k))
			continue
		}
		if !ir.Equal(got, want) {
			gotJSON, _ := ir.MarshalCanonical(got)
			wantJSON, _ := ir.MarshalCanonical(want)
			msgs = append(msgs, fmt.Sprintf("field %q = %s, expected %s", k, gotJSON, wantJSON))
		}
	}
	return msgs
}

// toIR converts decoded YAML into an IRValue, recursing into lists and maps.
func toIR(v interface{}) (ir.IRValue, error) {
	switch val := v.(type) {
	case []interface{}:
		arr := make(ir.IRArray, len(val))
		for i, item := range val {
			iv, err := toIR(item)
			if err != nil {
				return nil, err
			}
			arr[i] = iv
		}
		return arr, nil
	case map[string]interface{}:
		obj := make(ir.IRObject, len(val))
		for k, item := range val {
			iv, err := toIR(item)
			if err != nil {
				return nil, err
			}
			obj[k] = iv
		}
		return obj, nil
	default:
		return ir.FromGo(v)
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
