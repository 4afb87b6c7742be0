package harness

import (
	"github.com/roach88/runproof/internal/assertion"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/run"
)

// Outcome holds whatever the scenario's operation produced. Exactly one of
// Diff, Assert and Replay is set unless Err is.
type Outcome struct {
	Diff   *diff.Result
	Assert *assertion.Result
	Replay *run.Run
	Err    error
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success: every assertion held.
	Pass bool `json:"pass"`

	Mode Mode `json:"mode"`

	Outcome Outcome `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(mode Mode) *Result {
	return &Result{
		Pass:   true,
		Mode:   mode,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
