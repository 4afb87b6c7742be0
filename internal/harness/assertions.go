package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/replay"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// diffOf returns the diff result behind a diff or assert outcome.
func diffOf(o Outcome) *diff.Result {
	if o.Diff != nil {
		return o.Diff
	}
	if o.Assert != nil {
		return o.Assert.Diff
	}
	return nil
}

func missing(typ, want string) error {
	return &AssertionError{Type: typ, Expected: want, Actual: "no result for this mode"}
}

func assertIdentical(o Outcome, a Assertion) error {
	d := diffOf(o)
	if d == nil {
		return missing(a.Type, "a diff result")
	}
	want := a.Equals.(bool)
	if d.Identical != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("identical=%t", want),
			Actual:   fmt.Sprintf("identical=%t", d.Identical),
		}
	}
	return nil
}

func assertPassed(o Outcome, a Assertion) error {
	if o.Assert == nil {
		return missing(a.Type, "an assertion result")
	}
	want := a.Equals.(bool)
	if o.Assert.Passed != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("passed=%t", want),
			Actual:   fmt.Sprintf("passed=%t", o.Assert.Passed),
		}
	}
	return nil
}

func assertFirstDivergence(o Outcome, a Assertion) error {
	d := diffOf(o)
	if d == nil {
		return missing(a.Type, "a diff result")
	}
	fd := d.FirstDivergence
	if fd == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("divergence at step %d", a.Index),
			Actual:   "runs are identical",
		}
	}
	if fd.Index != a.Index ||
		(a.Status != "" && string(fd.Status) != a.Status) ||
		(a.StepType != "" && string(fd.StepType) != a.StepType) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d status=%q type=%q", a.Index, a.Status, a.StepType),
			Actual:   fmt.Sprintf("step %d status=%q type=%q", fd.Index, fd.Status, fd.StepType),
		}
	}
	return nil
}

// assertChangedPaths checks the exact set of change paths at a step.
// Order is ignored.
func assertChangedPaths(o Outcome, a Assertion) error {
	d := diffOf(o)
	if d == nil {
		return missing(a.Type, "a diff result")
	}
	var sd *diff.StepDiff
	for i := range d.StepDiffs {
		if d.StepDiffs[i].Index == a.Index {
			sd = &d.StepDiffs[i]
			break
		}
	}
	if sd == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d with paths %v", a.Index, a.Paths),
			Actual:   fmt.Sprintf("only %d steps compared", len(d.StepDiffs)),
		}
	}
	got := []string{}
	for _, c := range sd.Changes {
		got = append(got, c.Path)
	}
	want := slices.Clone(a.Paths)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("paths %v at step %d", want, a.Index),
			Actual:   fmt.Sprintf("paths %v", got),
		}
	}
	return nil
}

func assertStatusCount(o Outcome, a Assertion) error {
	d := diffOf(o)
	if d == nil {
		return missing(a.Type, "a diff result")
	}
	got := d.StatusCounts[diff.Status(a.Status)]
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d steps %s", a.Count, a.Status),
			Actual:   fmt.Sprintf("%d steps", got),
		}
	}
	return nil
}

func assertStrictFailures(o Outcome, a Assertion) error {
	if o.Assert == nil {
		return missing(a.Type, "an assertion result")
	}
	got := 0
	for _, f := range o.Assert.StrictFailures {
		if a.Kind == "" || string(f.Kind) == a.Kind {
			got++
		}
	}
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d strict failures (kind %q)", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d strict failures", got),
		}
	}
	return nil
}

func assertStepCount(o Outcome, a Assertion) error {
	if o.Replay == nil {
		return missing(a.Type, "a replayed run")
	}
	if got := len(o.Replay.Steps); got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d steps", a.Count),
			Actual:   fmt.Sprintf("%d steps", got),
		}
	}
	return nil
}

func assertStepMetadata(o Outcome, a Assertion) error {
	if o.Replay == nil {
		return missing(a.Type, "a replayed run")
	}
	if a.Index > len(o.Replay.Steps) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d", a.Index),
			Actual:   fmt.Sprintf("%d steps", len(o.Replay.Steps)),
		}
	}
	want, err := canon.FromAny(a.Equals)
	if err != nil {
		return fmt.Errorf("step_metadata: %w", err)
	}
	got, ok := o.Replay.Steps[a.Index-1].Metadata.Get(a.Field)
	if !ok || !canon.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d metadata %s=%v", a.Index, a.Field, a.Equals),
			Actual:   fmt.Sprintf("%v (present=%t)", canon.ToAny(got), ok),
		}
	}
	return nil
}

func assertError(o Outcome, a Assertion) error {
	if o.Err == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("configuration error %s", a.Code),
			Actual:   "operation succeeded",
		}
	}
	if !replay.HasCode(o.Err, replay.ErrorCode(a.Code)) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("configuration error %s", a.Code),
			Actual:   o.Err.Error(),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the outcome.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(outcome Outcome, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertIdentical:
			err = assertIdentical(outcome, assertion)
		case AssertPassed:
			err = assertPassed(outcome, assertion)
		case AssertFirstDivergence:
			err = assertFirstDivergence(outcome, assertion)
		case AssertChangedPaths:
			err = assertChangedPaths(outcome, assertion)
		case AssertStatusCount:
			err = assertStatusCount(outcome, assertion)
		case AssertStrictFailures:
			err = assertStrictFailures(outcome, assertion)
		case AssertStepCount:
			err = assertStepCount(outcome, assertion)
		case AssertStepMetadata:
			err = assertStepMetadata(outcome, assertion)
		case AssertError:
			err = assertError(outcome, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
