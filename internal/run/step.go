package run

import (
	"fmt"

	"github.com/roach88/runproof/internal/canon"
)

// NewStep constructs a step, rejecting types outside the closed enum.
// The hash is left empty; use WithHash to compute it.
func NewStep(id, stepType string, input, output canon.Value, metadata canon.Object) (Step, error) {
	t, err := ParseStepType(stepType)
	if err != nil {
		var ve *ValidationError
		if asValidation(err, &ve) {
			ve.StepID = id
		}
		return Step{}, err
	}
	return Step{
		ID:       id,
		Type:     t,
		Input:    orNull(input),
		Output:   orNull(output),
		Metadata: metadata,
	}, nil
}

// MustNewStep is like NewStep but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNewStep(id, stepType string, input, output canon.Value, metadata canon.Object) Step {
	s, err := NewStep(id, stepType, input, output, metadata)
	if err != nil {
		panic(err)
	}
	return s
}

// ComputeHash returns the content hash of the step under the default hasher.
func (s Step) ComputeHash() (string, error) {
	return s.ComputeHashWith(canon.DefaultHasher())
}

// ComputeHashWith returns the content hash of the step under h.
func (s Step) ComputeHashWith(h canon.Hasher) (string, error) {
	if !s.Type.Valid() {
		return "", &ValidationError{
			Code:    ErrCodeUnknownStepType,
			Field:   "type",
			Message: fmt.Sprintf("unknown step type %q", s.Type),
			StepID:  s.ID,
		}
	}
	hash, err := h.StepHash(string(s.Type), s.Input, s.Output, s.Metadata)
	if err != nil {
		return "", fmt.Errorf("step %s: %w", s.ID, err)
	}
	return hash, nil
}

// WithHash returns a copy of the step with its hash recomputed.
func (s Step) WithHash() (Step, error) {
	return s.WithHashWith(canon.DefaultHasher())
}

// WithHashWith returns a copy of the step with its hash recomputed under h.
func (s Step) WithHashWith(h canon.Hasher) (Step, error) {
	hash, err := s.ComputeHashWith(h)
	if err != nil {
		return Step{}, err
	}
	out := s.Clone()
	out.Hash = hash
	return out, nil
}

// VerifyHash checks that a stored hash matches the step content.
// Steps without a hash verify trivially.
func (s Step) VerifyHash() error {
	return s.VerifyHashWith(canon.DefaultHasher())
}

// VerifyHashWith is VerifyHash under a specific hasher.
func (s Step) VerifyHashWith(h canon.Hasher) error {
	if s.Hash == "" {
		return nil
	}
	hash, err := s.ComputeHashWith(h)
	if err != nil {
		return err
	}
	if hash != s.Hash {
		return &ValidationError{
			Code:    ErrCodeHashMismatch,
			Field:   "hash",
			Message: fmt.Sprintf("stored %s, computed %s", s.Hash, hash),
			StepID:  s.ID,
		}
	}
	return nil
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	return Step{
		ID:       s.ID,
		Type:     s.Type,
		Input:    canon.Clone(s.Input),
		Output:   canon.Clone(s.Output),
		Metadata: canon.CloneObject(s.Metadata),
		Hash:     s.Hash,
	}
}

// Value renders the step as a JSON value (used when a whole step is
// reported as a single change).
func (s Step) Value() canon.Value {
	meta := s.Metadata
	if meta == nil {
		meta = canon.Object{}
	}
	obj := canon.Object{
		"id":       canon.String(s.ID),
		"type":     canon.String(s.Type),
		"input":    orNull(canon.Clone(s.Input)),
		"output":   orNull(canon.Clone(s.Output)),
		"metadata": canon.CloneObject(meta),
	}
	if s.Hash != "" {
		obj["hash"] = canon.String(s.Hash)
	}
	return obj
}
