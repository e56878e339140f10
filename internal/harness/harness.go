package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/sparqlmodel/internal/idgen"
	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/model"
	"github.com/roach88/sparqlmodel/internal/querysql"
	"github.com/roach88/sparqlmodel/internal/store"
	"github.com/roach88/sparqlmodel/internal/testutil"
)

// stepInterval separates the timestamps of consecutive steps.
const stepInterval = time.Second

// Harness runs one scenario against a private store.
type Harness struct {
	store  *store.Store
	mapper *model.Mapper
	refs   map[string]*model.Entity
}

// Run executes a scenario against a fresh in-memory store.
//
// Entity types are registered anew for every run. Types that generate
// identifiers get a sequence generator over their base URI and the clock
// starts at testutil.DefaultEpoch, so a scenario always produces the same
// identifiers, timestamps and trace.
func Run(scenario *Scenario, types []model.EntityType) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	reg := model.NewRegistry()
	if err := reg.Register(deterministic(types)...); err != nil {
		return nil, fmt.Errorf("failed to register mappings: %w", err)
	}

	clock := testutil.NewFixedClock(time.Time{})
	mapper, err := model.NewMapper(st, reg,
		model.WithGraph(scenario.Graph),
		model.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create mapper: %w", err)
	}

	h := &Harness{
		store:  st,
		mapper: mapper,
		refs:   make(map[string]*model.Entity),
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
		clock.Advance(stepInterval)
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario, result) {
		result.AddError(msg)
	}
	return result, nil
}

// deterministic copies types, replacing each identifier generator with a
// sequence over the type's base URI.
func deterministic(types []model.EntityType) []model.EntityType {
	out := make([]model.EntityType, len(types))
	for i, t := range types {
		if t.IDGen != nil {
			t.IDGen = idgen.NewSequenceGenerator(t.BaseURI)
		}
		out[i] = t
	}
	return out
}

// seed writes the scenario's raw triples into its graph.
func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	if len(scenario.Triples) == 0 {
		return nil
	}
	triples := make([]store.Triple, len(scenario.Triples))
	for i, t := range scenario.Triples {
		kind := querysql.KindLiteral
		if t.IRI {
			kind = querysql.KindIRI
		}
		triples[i] = store.Triple{
			Graph:      scenario.Graph,
			Subject:    t.Subject,
			Predicate:  t.Predicate,
			Object:     t.Object,
			ObjectKind: kind,
			Datatype:   t.Datatype,
		}
	}
	if err := h.store.WriteTriples(ctx, triples); err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	ev := TraceEvent{Step: i, Op: step.Op, Type: step.Type}

	e, err := h.apply(ctx, step, &ev)
	if e != nil {
		ev.Type = e.Type().Name
		ev.Subject = e.Identifier
		ev.Exists = e.Exist()
		ev.Entity = e.ToArray()
		if step.As != "" {
			h.refs[step.As] = e
		}
	}
	if err != nil {
		ev.Error = err.Error()
	}
	result.AddTrace(ev)

	slog.Debug("scenario step",
		"step", i,
		"op", step.Op,
		"subject", ev.Subject,
		"error", ev.Error)

	for _, msg := range checkExpect(step, e, err) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Op, msg))
	}
}

// apply runs the step's operation and returns the entity it acted on.
func (h *Harness) apply(ctx context.Context, step Step, ev *TraceEvent) (*model.Entity, error) {
	switch step.Op {
	case OpSave:
		e := h.refs[step.Ref]
		if e == nil {
			var err error
			if e, err = h.mapper.New(step.Type); err != nil {
				return nil, err
			}
		}
		for _, field := range sortedKeys(step.Set) {
			v, err := ir.FromGo(step.Set[field])
			if err != nil {
				return e, fmt.Errorf("set %s: %w", field, err)
			}
			if err := e.Set(field, v); err != nil {
				return e, err
			}
		}
		extra := make(map[string]ir.IRValue, len(step.Extra))
		for p, raw := range step.Extra {
			v, err := ir.FromGo(raw)
			if err != nil {
				return e, fmt.Errorf("extra %s: %w", p, err)
			}
			extra[p] = v
		}
		return e, h.mapper.Save(ctx, e, extra)

	case OpFind:
		id := step.ID
		if step.Ref != "" {
			bound, err := h.ref(step.Ref)
			if err != nil {
				return nil, err
			}
			id = bound.Identifier
		}
		e, err := h.mapper.Find(ctx, step.Type, id)
		if err != nil || !step.Listing || !e.Exist() {
			return e, err
		}
		return e, h.mapper.Listing(ctx, e, "")

	case OpList:
		e, err := h.ref(step.Ref)
		if err != nil {
			return nil, err
		}
		return e, h.mapper.Listing(ctx, e, step.Field)

	case OpLink:
		e, err := h.ref(step.Ref)
		if err != nil {
			return nil, err
		}
		target, err := h.ref(step.Target)
		if err != nil {
			return e, err
		}
		ev.Object = target.Identifier
		return e, h.mapper.Link(ctx, e, target)

	case OpDelete:
		e, err := h.ref(step.Ref)
		if err != nil {
			return nil, err
		}
		return e, h.mapper.Delete(ctx, e, step.Logical)
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) ref(name string) (*model.Entity, error) {
	e, ok := h.refs[name]
	if !ok {
		return nil, fmt.Errorf("ref %q was never bound", name)
	}
	return e, nil
}

func checkExpect(step Step, e *model.Entity, err error) []string {
	exp := step.Expect
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	var msgs []string
	switch {
	case exp.Error != "" && err == nil:
		msgs = append(msgs, fmt.Sprintf("expected error containing %q, got none", exp.Error))
	case exp.Error != "" && !containsFold(err.Error(), exp.Error):
		msgs = append(msgs, fmt.Sprintf("expected error containing %q, got %v", exp.Error, err))
	case exp.Error == "" && err != nil:
		msgs = append(msgs, fmt.Sprintf("unexpected error: %v", err))
	}
	if e == nil {
		return msgs
	}

	if exp.Exists != nil && e.Exist() != *exp.Exists {
		msgs = append(msgs, fmt.Sprintf("exists = %v, expected %v", e.Exist(), *exp.Exists))
	}
	msgs = append(msgs, matchFields(e.ToArray(), exp.Fields)...)
	if exp.Count != nil {
		if got := len(e.Related(step.Field)); got != *exp.Count {
			msgs = append(msgs, fmt.Sprintf("%s has %d related entities, expected %d", step.Field, got, *exp.Count))
		}
	}
	return msgs
}

func (h *Harness) evaluateAssertions(ctx context.Context, scenario *Scenario, result *Result) []string {
	var msgs []string
	for i, a := range scenario.Assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTripleCount:
			err = h.assertTripleCount(ctx, scenario.Graph, a)
		case AssertFinalState:
			err = h.assertFinalState(ctx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
