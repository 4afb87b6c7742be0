package replay

import (
	"fmt"
	"sort"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
)

// Policy selects the source steps a hybrid replay substitutes with rerun
// steps. A step is selected when its type is in StepTypes or its id is in
// StepIDs.
type Policy struct {
	StepTypes []run.StepType `json:"step_types,omitempty" yaml:"step_types,omitempty"`
	StepIDs   []string       `json:"step_ids,omitempty" yaml:"step_ids,omitempty"`

	// AllowLengthMismatch relaxes the default strict alignment, which
	// requires source and rerun to have the same number of steps.
	AllowLengthMismatch bool `json:"allow_length_mismatch,omitempty" yaml:"allow_length_mismatch,omitempty"`
}

// Validate rejects an empty selector or one naming an unknown step type.
func (p Policy) Validate() error {
	if len(p.StepTypes) == 0 && len(p.StepIDs) == 0 {
		return &ConfigurationError{
			Code:    ErrCodeEmptyPolicy,
			Message: "hybrid replay policy must name at least one step type or step id",
		}
	}
	for _, t := range p.StepTypes {
		if !t.Valid() {
			return &ConfigurationError{
				Code:    ErrCodeInvalidPolicy,
				Message: fmt.Sprintf("unknown step type %q in selector", t),
			}
		}
	}
	return nil
}

// Selects reports whether s matches the policy.
func (p Policy) Selects(s run.Step) bool {
	for _, t := range p.StepTypes {
		if s.Type == t {
			return true
		}
	}
	for _, id := range p.StepIDs {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Selectors renders the policy as a sorted, de-duplicated value for
// folding into the replay id. Selector order therefore never changes the id.
func (p Policy) Selectors() canon.Object {
	types := make([]string, len(p.StepTypes))
	for i, t := range p.StepTypes {
		types[i] = string(t)
	}
	return canon.Object{
		"step_types": sortedSet(types),
		"step_ids":   sortedSet(p.StepIDs),
	}
}

func sortedSet(items []string) canon.Array {
	seen := make(map[string]struct{}, len(items))
	uniq := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		uniq = append(uniq, s)
	}
	sort.Strings(uniq)
	out := make(canon.Array, len(uniq))
	for i, s := range uniq {
		out[i] = canon.String(s)
	}
	return out
}
