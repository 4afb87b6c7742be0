package run

import (
	"errors"
	"fmt"

	"github.com/roach88/runproof/internal/canon"
)

// Validate checks the run's model invariants: offset-aware timestamp,
// known step types and unique step ids.
func (r Run) Validate() error {
	if r.Timestamp != "" {
		if _, ok := canon.ParseTimestamp(r.Timestamp); !ok {
			return &ValidationError{
				Code:    ErrCodeInvalidTimestamp,
				Field:   "timestamp",
				Message: fmt.Sprintf("%q is not RFC3339 with an explicit offset", r.Timestamp),
			}
		}
	}

	seen := make(map[string]struct{}, len(r.Steps))
	for i, s := range r.Steps {
		if !s.Type.Valid() {
			return &ValidationError{
				Code:    ErrCodeUnknownStepType,
				Field:   fmt.Sprintf("steps[%d].type", i),
				Message: fmt.Sprintf("unknown step type %q", s.Type),
				StepID:  s.ID,
			}
		}
		if _, dup := seen[s.ID]; dup {
			return &ValidationError{
				Code:    ErrCodeDuplicateStepID,
				Field:   fmt.Sprintf("steps[%d].id", i),
				Message: fmt.Sprintf("step id %q appears more than once", s.ID),
				StepID:  s.ID,
			}
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// WithHashedSteps returns a copy of the run with every step hash recomputed.
func (r Run) WithHashedSteps() (Run, error) {
	return r.WithHashedStepsWith(canon.DefaultHasher())
}

// WithHashedStepsWith is WithHashedSteps under a specific hasher.
func (r Run) WithHashedStepsWith(h canon.Hasher) (Run, error) {
	out := r.Clone()
	for i := range out.Steps {
		hashed, err := out.Steps[i].WithHashWith(h)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: %w", r.ID, err)
		}
		out.Steps[i] = hashed
	}
	return out, nil
}

// VerifyHashes checks every stored step hash and returns all mismatches.
func (r Run) VerifyHashes() error {
	return r.VerifyHashesWith(canon.DefaultHasher())
}

// VerifyHashesWith is VerifyHashes under a specific hasher.
func (r Run) VerifyHashesWith(h canon.Hasher) error {
	var errs []error
	for _, s := range r.Steps {
		if err := s.VerifyHashWith(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of the run.
func (r Run) Clone() Run {
	out := r
	out.EnvironmentFingerprint = canon.CloneObject(r.EnvironmentFingerprint)
	out.RuntimeVersions = canon.CloneObject(r.RuntimeVersions)
	if r.Steps != nil {
		out.Steps = make([]Step, len(r.Steps))
		for i, s := range r.Steps {
			out.Steps[i] = s.Clone()
		}
	}
	return out
}

// StepHashes returns the content hash of every step, recomputed under h.
// Stored hashes are not trusted here so a stale hash cannot mask a change.
func (r Run) StepHashes(h canon.Hasher) ([]string, error) {
	hashes := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		hash, err := s.ComputeHashWith(h)
		if err != nil {
			return nil, err
		}
		hashes[i] = hash
	}
	return hashes, nil
}

// Fingerprint folds the run id and every step hash into one digest.
// Any change to the run's semantic content changes the fingerprint.
func (r Run) Fingerprint(h canon.Hasher) (string, error) {
	hashes, err := r.StepHashes(h)
	if err != nil {
		return "", fmt.Errorf("fingerprint run %s: %w", r.ID, err)
	}
	list := make(canon.Array, len(hashes))
	for i, hash := range hashes {
		list[i] = canon.String(hash)
	}
	obj := canon.Object{
		"run_id":      canon.String(r.ID),
		"step_hashes": list,
	}
	data, err := canon.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint run %s: %w", r.ID, err)
	}
	return canon.Digest(data), nil
}

func asValidation(err error, target **ValidationError) bool {
	return errors.As(err, target)
}
