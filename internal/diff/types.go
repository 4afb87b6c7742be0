package diff

import (
	"errors"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
)

// DefaultMaxChangesPerStep bounds change accumulation when callers do not
// choose a limit.
const DefaultMaxChangesPerStep = 50

// ErrInvalidOptions is returned for options the engine cannot honor.
var ErrInvalidOptions = errors.New("invalid diff options")

// Status classifies one aligned step position.
type Status string

const (
	StatusIdentical    Status = "identical"
	StatusChanged      Status = "changed"
	StatusMissingLeft  Status = "missing_left"
	StatusMissingRight Status = "missing_right"
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusIdentical, StatusChanged, StatusMissingLeft, StatusMissingRight}

// ChangeKind classifies one change leaf.
type ChangeKind string

const (
	// KindChanged means both sides hold scalars of the same kind with different values.
	KindChanged ChangeKind = "changed"

	// KindAdded means the node exists only on the right.
	KindAdded ChangeKind = "added"

	// KindRemoved means the node exists only on the left.
	KindRemoved ChangeKind = "removed"

	// KindTypeMismatch means the two sides hold different JSON kinds.
	KindTypeMismatch ChangeKind = "type_mismatch"
)

// Change is one difference at a JSON pointer path. A nil Left or Right
// means the node is missing on that side (distinct from a JSON null).
type Change struct {
	Path  string      `json:"path"`
	Kind  ChangeKind  `json:"kind"`
	Left  canon.Value `json:"left,omitempty"`
	Right canon.Value `json:"right,omitempty"`
}

// StepDiff is the comparison of one aligned position.
type StepDiff struct {
	// Index is 1-based.
	Index       int          `json:"index"`
	Status      Status       `json:"status"`
	LeftStepID  string       `json:"left_step_id,omitempty"`
	RightStepID string       `json:"right_step_id,omitempty"`
	StepType    run.StepType `json:"step_type"`
	Changes     []Change     `json:"changes"`
	Truncated   bool         `json:"truncated"`

	// Context carries display hints (model, tool, url...) for humans.
	Context canon.Object `json:"context"`
}

// Result is the outcome of diffing two runs.
type Result struct {
	LeftRunID      string         `json:"left_run_id"`
	RightRunID     string         `json:"right_run_id"`
	LeftStepCount  int            `json:"left_step_count"`
	RightStepCount int            `json:"right_step_count"`
	Identical      bool           `json:"identical"`
	StoppedEarly   bool           `json:"stopped_early"`
	StepDiffs      []StepDiff     `json:"step_diffs"`
	StatusCounts   map[Status]int `json:"status_counts"`

	// FirstDivergence is the first non-identical entry of StepDiffs, or nil.
	FirstDivergence *StepDiff `json:"first_divergence"`
}

// Options controls a diff.
type Options struct {
	// StopAtFirstDivergence halts scanning after the first non-identical step.
	StopAtFirstDivergence bool

	// MaxChangesPerStep bounds the changes recorded per step. Must be >= 1.
	MaxChangesPerStep int

	// Hasher computes hashes for steps that carry none. Nil means the
	// default hasher.
	Hasher *canon.Hasher
}

// DefaultOptions returns a full scan with the default change bound.
func DefaultOptions() Options {
	return Options{MaxChangesPerStep: DefaultMaxChangesPerStep}
}

func (o Options) hasher() canon.Hasher {
	if o.Hasher == nil {
		return canon.DefaultHasher()
	}
	return *o.Hasher
}
