package harness

import "github.com/roach88/doccore/internal/ir"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int       `json:"step"`
	Kind    string    `json:"kind"`
	Target  string    `json:"target,omitempty"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
	Updates ir.Object `json:"updates,omitempty"`

	// Generation is the document's engine generation after the step. It
	// restarts from zero when a step rebuilds the document.
	Generation int64 `json:"generation"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expected outcome and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// BuildErrors are the document's build errors after the last step.
	BuildErrors []string `json:"build_errors,omitempty"`

	// Initial and Final are the rendered trees before the first step and
	// after the last.
	Initial ir.Object `json:"initial"`
	Final   ir.Object `json:"final"`

	// State is the essential state after the last step.
	State ir.Object `json:"state"`
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
