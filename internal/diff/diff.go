package diff

import (
	"fmt"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
)

// Runs diffs left against right position by position.
//
// Runs never fails on the content of either run. It returns
// ErrInvalidOptions when opts.MaxChangesPerStep < 1.
func Runs(left, right run.Run, opts Options) (*Result, error) {
	if opts.MaxChangesPerStep < 1 {
		return nil, fmt.Errorf("%w: max changes per step must be >= 1, got %d",
			ErrInvalidOptions, opts.MaxChangesPerStep)
	}
	h := opts.hasher()

	res := &Result{
		LeftRunID:      left.ID,
		RightRunID:     right.ID,
		LeftStepCount:  len(left.Steps),
		RightStepCount: len(right.Steps),
		StepDiffs:      []StepDiff{},
		StatusCounts:   make(map[Status]int, len(Statuses)),
	}
	for _, s := range Statuses {
		res.StatusCounts[s] = 0
	}

	n := max(len(left.Steps), len(right.Steps))
	for i := 0; i < n; i++ {
		var l, r *run.Step
		if i < len(left.Steps) {
			l = &left.Steps[i]
		}
		if i < len(right.Steps) {
			r = &right.Steps[i]
		}

		sd := compareSteps(i+1, l, r, h, opts.MaxChangesPerStep)
		res.StepDiffs = append(res.StepDiffs, sd)
		res.StatusCounts[sd.Status]++

		if sd.Status != StatusIdentical && opts.StopAtFirstDivergence {
			res.StoppedEarly = i+1 < n
			break
		}
	}

	for i := range res.StepDiffs {
		if res.StepDiffs[i].Status != StatusIdentical {
			res.FirstDivergence = &res.StepDiffs[i]
			break
		}
	}
	res.Identical = res.FirstDivergence == nil
	return res, nil
}

// compareSteps diffs one aligned position. At least one of l and r is set.
func compareSteps(index int, l, r *run.Step, h canon.Hasher, limit int) StepDiff {
	sd := StepDiff{Index: index, Changes: []Change{}}

	switch {
	case l == nil:
		sd.Status = StatusMissingLeft
		sd.RightStepID = r.ID
		sd.StepType = r.Type
		sd.Context = stepContext(*r)
		sd.Changes = append(sd.Changes, Change{Path: "", Kind: KindAdded, Right: r.Value()})
		return sd
	case r == nil:
		sd.Status = StatusMissingRight
		sd.LeftStepID = l.ID
		sd.StepType = l.Type
		sd.Context = stepContext(*l)
		sd.Changes = append(sd.Changes, Change{Path: "", Kind: KindRemoved, Left: l.Value()})
		return sd
	}

	sd.LeftStepID = l.ID
	sd.RightStepID = r.ID
	sd.StepType = l.Type
	sd.Context = stepContext(*l)

	lh, rh := stepHash(*l, h), stepHash(*r, h)
	if l.Type == r.Type && lh != "" && lh == rh {
		sd.Status = StatusIdentical
		return sd
	}

	sd.Status = StatusChanged
	c := &collector{limit: limit}
	if l.Type != r.Type {
		c.add(Change{Path: "/type", Kind: KindChanged, Left: canon.String(l.Type), Right: canon.String(r.Type)})
	}
	if lh != rh {
		c.add(Change{Path: "/hash", Kind: KindChanged, Left: hashValue(lh), Right: hashValue(rh)})
	}
	walk(c, "/input", orNull(l.Input), true, orNull(r.Input), true)
	walk(c, "/output", orNull(l.Output), true, orNull(r.Output), true)
	walk(c, "/metadata", metadataValue(l.Metadata), true, metadataValue(r.Metadata), true)

	sd.Changes = append(sd.Changes, c.changes...)
	sd.Truncated = c.truncated
	return sd
}

// stepHash returns the stored hash, or computes one. An empty result means
// the step could not be hashed and must be compared field by field.
func stepHash(s run.Step, h canon.Hasher) string {
	if s.Hash != "" {
		return s.Hash
	}
	hash, err := s.ComputeHashWith(h)
	if err != nil {
		return ""
	}
	return hash
}

func hashValue(hash string) canon.Value {
	if hash == "" {
		return canon.Null{}
	}
	return canon.String(hash)
}

func metadataValue(m canon.Object) canon.Value {
	if m == nil {
		return canon.Object{}
	}
	return m
}
