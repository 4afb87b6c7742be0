// Package assertion turns a run diff into a pass/fail verdict.
//
// Non-strict assertion passes exactly when every aligned step is
// hash-identical. Strict assertion additionally compares what the content
// hash deliberately hides: the environment fingerprint, the runtime
// versions, and the raw metadata of every step pair that already matched.
package assertion

import (
	"fmt"
	"strings"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/run"
)

// FailureKind classifies a strict-mode failure.
type FailureKind string

const (
	FailureEnvironmentMismatch FailureKind = "environment_mismatch"
	FailureRuntimeMismatch     FailureKind = "runtime_mismatch"
	FailureMetadataDrift       FailureKind = "metadata_drift"
)

// StrictFailure is one difference surfaced only by strict mode.
type StrictFailure struct {
	Kind FailureKind `json:"kind"`

	// StepIndex is the 1-based step position for metadata drift, else 0.
	StepIndex int    `json:"step_index,omitempty"`
	StepID    string `json:"step_id,omitempty"`

	// Path is a JSON pointer relative to the compared document
	// (the run for environment/runtime, the step for metadata).
	Path  string      `json:"path"`
	Left  canon.Value `json:"baseline,omitempty"`
	Right canon.Value `json:"candidate,omitempty"`
}

// Result is the outcome of an assertion.
type Result struct {
	Passed         bool            `json:"passed"`
	Strict         bool            `json:"strict"`
	Diff           *diff.Result    `json:"diff"`
	StrictFailures []StrictFailure `json:"strict_failures"`

	// StrictTruncated is set when a strict check hit MaxChangesPerStep.
	StrictTruncated bool `json:"strict_truncated"`
}

// Options controls an assertion.
type Options struct {
	Strict            bool
	MaxChangesPerStep int
	Hasher            *canon.Hasher
}

// DefaultOptions returns non-strict options with the default change bound.
func DefaultOptions() Options {
	return Options{MaxChangesPerStep: diff.DefaultMaxChangesPerStep}
}

// Runs asserts that candidate is behaviorally equivalent to baseline.
// The only error is for invalid options.
func Runs(baseline, candidate run.Run, opts Options) (*Result, error) {
	d, err := diff.Runs(baseline, candidate, diff.Options{
		MaxChangesPerStep: opts.MaxChangesPerStep,
		Hasher:            opts.Hasher,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Strict:         opts.Strict,
		Diff:           d,
		StrictFailures: []StrictFailure{},
	}
	if opts.Strict {
		res.strictChecks(baseline, candidate, opts.MaxChangesPerStep)
	}
	res.Passed = d.Identical && len(res.StrictFailures) == 0
	return res, nil
}

func (r *Result) strictChecks(baseline, candidate run.Run, limit int) {
	r.compare(FailureEnvironmentMismatch, 0, "", "/environment_fingerprint",
		objectValue(baseline.EnvironmentFingerprint), objectValue(candidate.EnvironmentFingerprint), limit)
	r.compare(FailureRuntimeMismatch, 0, "", "/runtime_versions",
		objectValue(baseline.RuntimeVersions), objectValue(candidate.RuntimeVersions), limit)

	for _, sd := range r.Diff.StepDiffs {
		if sd.Status != diff.StatusIdentical {
			continue
		}
		l := baseline.Steps[sd.Index-1]
		c := candidate.Steps[sd.Index-1]
		r.compare(FailureMetadataDrift, sd.Index, l.ID, "/metadata",
			objectValue(l.Metadata), objectValue(c.Metadata), limit)
	}
}

func (r *Result) compare(kind FailureKind, index int, stepID, path string, left, right canon.Value, limit int) {
	changes, truncated := diff.Values(path, left, right, limit)
	for _, ch := range changes {
		r.StrictFailures = append(r.StrictFailures, StrictFailure{
			Kind:      kind,
			StepIndex: index,
			StepID:    stepID,
			Path:      ch.Path,
			Left:      ch.Left,
			Right:     ch.Right,
		})
	}
	if truncated {
		r.StrictTruncated = true
	}
}

func objectValue(o canon.Object) canon.Value {
	if o == nil {
		return canon.Object{}
	}
	return o
}

// Summary renders the verdict for terminals and logs.
func (r *Result) Summary() string {
	var b strings.Builder

	mode := "non-strict"
	if r.Strict {
		mode = "strict"
	}
	verdict := "PASS"
	if !r.Passed {
		verdict = "FAIL"
	}
	fmt.Fprintf(&b, "assert (%s): %s\n", mode, verdict)
	b.WriteString(indent(r.Diff.Summary(), "  "))

	if len(r.StrictFailures) > 0 {
		fmt.Fprintf(&b, "  strict failures: %d\n", len(r.StrictFailures))
		for _, f := range r.StrictFailures {
			where := ""
			if f.StepIndex > 0 {
				where = fmt.Sprintf(" step %d", f.StepIndex)
			}
			fmt.Fprintf(&b, "    %s%s %s: %s -> %s\n", f.Kind, where, f.Path, render(f.Left), render(f.Right))
		}
		if r.StrictTruncated {
			b.WriteString("    ... (truncated)\n")
		}
	}
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
	}
	return b.String()
}

func render(v canon.Value) string {
	if v == nil {
		return "<missing>"
	}
	data, err := canon.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
