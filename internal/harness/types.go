package harness

import "github.com/roach88/sparqlmodel/internal/ir"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int         `json:"step"`
	Op      string      `json:"op"`
	Type    string      `json:"type,omitempty"`
	Subject string      `json:"subject,omitempty"`
	Object  string      `json:"object,omitempty"`
	Exists  bool        `json:"exists"`
	Entity  ir.IRObject `json:"entity,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// canonicalTrace renders the trace as an IR array so it can be encoded with
// ir.MarshalCanonical.
func canonicalTrace(trace []TraceEvent) ir.IRArray {
	out := make(ir.IRArray, len(trace))
	for i, ev := range trace {
		obj := ir.IRObject{
			"step":   ir.IRInt(ev.Step),
			"op":     ir.IRString(ev.Op),
			"exists": ir.IRBool(ev.Exists),
		}
		if ev.Type != "" {
			obj["type"] = ir.IRString(ev.Type)
		}
		if ev.Subject != "" {
			obj["subject"] = ir.IRString(ev.Subject)
		}
		if ev.Object != "" {
			obj["object"] = ir.IRString(ev.Object)
		}
		if ev.Entity != nil {
			obj["entity"] = ev.Entity
		}
		if ev.Error != "" {
			obj["error"] = ir.IRString(ev.Error)
		}
		out[i] = obj
	}
	return out
}
