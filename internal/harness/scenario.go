package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of model operations run against a fresh store,
// with expectations on each step and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the named graph every query targets. Empty means the
	// default graph.
	Graph string `yaml:"graph,omitempty"`

	// Triples are written to the store before the first step.
	Triples []SeedTriple `yaml:"triples,omitempty"`

	// Steps run in order. A failing step is recorded and the run goes on.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedTriple is one raw statement in Graph.
type SeedTriple struct {
	Subject   string `yaml:"subject"`
	Predicate string `yaml:"predicate"`
	Object    string `yaml:"object"`

	// IRI marks Object as an IRI. Otherwise it is a literal.
	IRI bool `yaml:"iri,omitempty"`

	// Datatype of a literal Object. Empty means a plain string.
	Datatype string `yaml:"datatype,omitempty"`
}

// Step is one model operation.
type Step struct {
	// Op is one of save, find, list, link, delete.
	Op string `yaml:"op"`

	// Type is the entity type. Required for save without ref and for find.
	Type string `yaml:"type,omitempty"`

	// ID identifies the entity for find. Relative ids get the base URI.
	ID string `yaml:"id,omitempty"`

	// Ref names an entity bound by an earlier step's As.
	Ref string `yaml:"ref,omitempty"`

	// As binds the step's entity to a name for later steps.
	As string `yaml:"as,omitempty"`

	// Set assigns scalar fields before save.
	Set map[string]interface{} `yaml:"set,omitempty"`

	// Extra holds predicate/value pairs written alongside a save.
	Extra map[string]interface{} `yaml:"extra,omitempty"`

	// Field restricts list to one relation, or selects the relation an
	// expect count applies to.
	Field string `yaml:"field,omitempty"`

	// Target names the bound entity link points at.
	Target string `yaml:"target,omitempty"`

	// Logical makes delete a status change.
	Logical bool `yaml:"logical,omitempty"`

	// Listing makes find also load every relation.
	Listing bool `yaml:"listing,omitempty"`

	// Expect validates the step outcome. Nil means the step must not fail.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause describes a step's expected outcome.
type ExpectClause struct {
	// Exists is the expected Exist() of the entity after the step.
	Exists *bool `yaml:"exists,omitempty"`

	// Fields is a subset match against the entity's ToArray view.
	Fields map[string]interface{} `yaml:"fields,omitempty"`

	// Count is the expected number of related entities in Field.
	Count *int `yaml:"count,omitempty"`

	// Error is a substring the step error must contain. Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final store contents.
type Assertion struct {
	// Type is one of trace_count, triple_count, final_state.
	Type string `yaml:"type"`

	// Op counts trace events of this operation (trace_count).
	Op string `yaml:"op,omitempty"`

	// Ref names the bound entity whose triples or state are checked.
	// A triple_count without Ref counts the whole graph.
	Ref string `yaml:"ref,omitempty"`

	// Predicate restricts triple_count of Ref to one predicate.
	Predicate string `yaml:"predicate,omitempty"`

	// Count is the expected number (trace_count, triple_count).
	Count int `yaml:"count,omitempty"`

	// Exists and Fields check a fresh find of Ref (final_state).
	Exists *bool                  `yaml:"exists,omitempty"`
	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// Operation names.
const (
	OpSave   = "save"
	OpFind   = "find"
	OpList   = "list"
	OpLink   = "link"
	OpDelete = "delete"
)

// Assertion type constants.
const (
	AssertTraceCount  = "trace_count"
	AssertTripleCount = "triple_count"
	AssertFinalState  = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos like "assertion:" fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, t := range s.Triples {
		where := fmt.Sprintf("triples[%d]", i)
		switch {
		case t.Subject == "":
			return fmt.Errorf("%s: subject is required", where)
		case t.Predicate == "":
			return fmt.Errorf("%s: predicate is required", where)
		case t.IRI && t.Datatype != "":
			return fmt.Errorf("%s: an iri object has no datatype", where)
		}
	}

	bound := make(map[string]bool)
	checkRef := func(where, ref string) error {
		if ref == "" {
			return fmt.Errorf("%s: ref is required", where)
		}
		if !bound[ref] {
			return fmt.Errorf("%s: ref %q is not bound by an earlier step", where, ref)
		}
		return nil
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		switch step.Op {
		case OpSave:
			if step.Ref == "" && step.Type == "" {
				return fmt.Errorf("%s: save needs type or ref", where)
			}
			if step.Ref != "" {
				if err := checkRef(where, step.Ref); err != nil {
					return err
				}
			}
		case OpFind:
			if step.Type == "" {
				return fmt.Errorf("%s: type is required for find", where)
			}
			if step.ID == "" && step.Ref == "" {
				return fmt.Errorf("%s: find needs id or ref", where)
			}
			if step.Ref != "" {
				if err := checkRef(where, step.Ref); err != nil {
					return err
				}
			}
		case OpList, OpDelete:
			if err := checkRef(where, step.Ref); err != nil {
				return err
			}
		case OpLink:
			if err := checkRef(where, step.Ref); err != nil {
				return err
			}
			if err := checkRef(where+".target", step.Target); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: unknown op %q", where, step.Op)
		}
		if step.Expect != nil && step.Expect.Count != nil && step.Field == "" {
			return fmt.Errorf("%s.expect: count requires field", where)
		}
		if step.As != "" {
			bound[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, bound); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, bound map[string]bool) error {
	switch a.Type {
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
	case AssertTripleCount:
		if a.Ref == "" && a.Predicate != "" {
			return fmt.Errorf("assertions[%d]: predicate requires ref", index)
		}
		if a.Ref != "" && !bound[a.Ref] {
			return fmt.Errorf("assertions[%d]: ref %q is not bound by any step", index, a.Ref)
		}
	case AssertFinalState:
		if a.Ref == "" || !bound[a.Ref] {
			return fmt.Errorf("assertions[%d]: ref %q is not bound by any step", index, a.Ref)
		}
		if a.Exists == nil && len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: final_state needs exists or fields", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
