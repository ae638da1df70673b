package harness

import (
	"github.com/roach88/qchain/internal/ir"
)

// CaseResult is the outcome of running one case through the compiler,
// the SQL backend and the store.
type CaseResult struct {
	Name  string `json:"name"`
	Query string `json:"query,omitempty"`
	Chain string `json:"chain"`

	// Model renders the query model; empty if parsing failed.
	Model       string   `json:"model,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`

	SQL    string `json:"sql,omitempty"`
	Params []any  `json:"params,omitempty"`

	// Value is the executed result; nil if any stage failed.
	Value ir.Value `json:"value,omitempty"`

	// ErrorCode classifies the failure of the first failing stage.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	// Errors contains failed assertion messages.
	Errors []string `json:"errors,omitempty"`
}

// Pass reports whether every assertion of the case held.
func (c *CaseResult) Pass() bool {
	return len(c.Errors) == 0
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every assertion of every case matched.
	Pass bool `json:"pass"`

	// Cases holds one entry per scenario case, in scenario order.
	Cases []*CaseResult `json:"cases"`

	// Errors contains assertion failure messages prefixed with the case
	// name. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []*CaseResult{},
		Errors: []string{},
	}
}

// AddCase appends a case outcome, folding its assertion failures into
// the overall result.
func (r *Result) AddCase(c *CaseResult) {
	r.Cases = append(r.Cases, c)
	for _, msg := range c.Errors {
		r.AddError(c.Name + ": " + msg)
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
