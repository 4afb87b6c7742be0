// Package policy loads CUE policy files that configure replays, assertions
// and canonicalization.
//
// A policy file is unified with an embedded #Policy schema, so type errors,
// unknown fields and unknown step types are reported with CUE source
// positions before anything runs.
//
//	replay: {
//		seed:        7
//		fixed_clock: "2026-01-01T00:00:00Z"
//		select: step_types: ["tool.response"]
//	}
//	assert: strict: true
package policy

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/run"
)

//go:embed schema.cue
var schemaCUE string

// Document is a compiled policy file. Absent sections are nil.
type Document struct {
	Replay    *ReplayPolicy    `json:"replay,omitempty"`
	Assert    *AssertPolicy    `json:"assert,omitempty"`
	Canonical *CanonicalPolicy `json:"canonical,omitempty"`
}

// ReplayPolicy configures stub and hybrid replays.
type ReplayPolicy struct {
	Seed                int64    `json:"seed"`
	FixedClock          string   `json:"fixed_clock"`
	Select              Selector `json:"select"`
	AllowLengthMismatch bool     `json:"allow_length_mismatch"`
}

// Selector names the steps a hybrid replay substitutes.
type Selector struct {
	StepTypes []string `json:"step_types,omitempty"`
	StepIDs   []string `json:"step_ids,omitempty"`
}

// AssertPolicy configures assertions.
type AssertPolicy struct {
	Strict                bool `json:"strict"`
	MaxChangesPerStep     int  `json:"max_changes_per_step"`
	StopAtFirstDivergence bool `json:"stop_at_first_divergence"`
}

// CanonicalPolicy adds field names to the canonicalizer defaults.
type CanonicalPolicy struct {
	VolatileFields  []string `json:"volatile_fields,omitempty"`
	UnorderedFields []string `json:"unordered_fields,omitempty"`
}

// HybridPolicy converts the selector into a replay policy.
func (r ReplayPolicy) HybridPolicy() replay.Policy {
	p := replay.Policy{
		StepIDs:             append([]string(nil), r.Select.StepIDs...),
		AllowLengthMismatch: r.AllowLengthMismatch,
	}
	for _, t := range r.Select.StepTypes {
		p.StepTypes = append(p.StepTypes, run.StepType(t))
	}
	return p
}

// Options extends base with the policy's extra field names.
// A nil policy returns base unchanged.
func (c *CanonicalPolicy) Options(base canon.Options) canon.Options {
	if c == nil {
		return base
	}
	return base.WithExtraFields(c.VolatileFields, c.UnorderedFields)
}

// Compile parses CUE source, validates it against #Policy and decodes it.
// filename is used only for error positions.
func Compile(src []byte, filename string) (*Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return decode(ctx, v)
}

// Load compiles a single policy file.
func Load(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Compile(src, path)
}

// LoadDir compiles the CUE package in dir, so a policy may be split
// across several files.
func LoadDir(dir string) (*Document, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CompileError{Field: "load", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return decode(ctx, v)
}

func decode(ctx *cue.Context, v cue.Value) (*Document, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("policy schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Policy")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc Document
	if err := unified.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}

	if doc.Replay != nil {
		if _, err := replay.ParseFixedClock(doc.Replay.FixedClock); err != nil {
			return nil, &CompileError{
				Field:   "replay.fixed_clock",
				Message: err.Error(),
				Pos:     unified.LookupPath(cue.ParsePath("replay.fixed_clock")).Pos(),
			}
		}
	}
	return &doc, nil
}

// AssertOptions returns the assertion settings, defaulting when the
// section is absent.
func (d *Document) AssertOptions() AssertPolicy {
	if d == nil || d.Assert == nil {
		return AssertPolicy{MaxChangesPerStep: diff.DefaultMaxChangesPerStep}
	}
	return *d.Assert
}

// Hasher returns a content hasher honouring the canonical section.
func (d *Document) Hasher() canon.Hasher {
	if d == nil || d.Canonical == nil {
		return canon.DefaultHasher()
	}
	return canon.NewHasher(d.Canonical.Options(canon.HashOptions()))
}
