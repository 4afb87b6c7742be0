package run

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/runproof/internal/canon"
)

// Recorder accumulates steps append-only and materializes them into a Run.
// It is the in-memory handoff point for capture layers: they call Append
// for every boundary crossing and Finish once.
//
// Thread-safety: Recorder is safe for concurrent use; step ids follow the
// order in which Append calls acquire the lock.
type Recorder struct {
	mu       sync.Mutex
	id       string
	started  time.Time
	env      canon.Object
	runtime  canon.Object
	source   string
	provider string
	agent    string
	steps    []Step
	finished bool
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) RecorderOption {
	return func(r *Recorder) { r.id = id }
}

// WithIDGenerator generates the run id from gen.
func WithIDGenerator(gen IDGenerator) RecorderOption {
	return func(r *Recorder) { r.id = gen.Generate() }
}

// WithStartTime sets the run timestamp.
func WithStartTime(t time.Time) RecorderOption {
	return func(r *Recorder) { r.started = t }
}

// WithEnvironment sets the environment fingerprint.
func WithEnvironment(env canon.Object) RecorderOption {
	return func(r *Recorder) { r.env = canon.CloneObject(env) }
}

// WithRuntimeVersions sets the runtime version map.
func WithRuntimeVersions(versions canon.Object) RecorderOption {
	return func(r *Recorder) { r.runtime = canon.CloneObject(versions) }
}

// WithTags sets the optional source, provider and agent tags.
func WithTags(source, provider, agent string) RecorderOption {
	return func(r *Recorder) {
		r.source = source
		r.provider = provider
		r.agent = agent
	}
}

// NewRecorder creates a recorder. Without WithRunID or WithIDGenerator the
// run id is a UUIDv7; without WithStartTime the timestamp is time.Now().
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	if r.id == "" {
		r.id = UUIDv7Generator{}.Generate()
	}
	if r.started.IsZero() {
		r.started = time.Now()
	}
	if r.env == nil {
		r.env = canon.Object{}
	}
	if r.runtime == nil {
		r.runtime = canon.Object{}
	}
	return r
}

// Append records one step and returns it with its assigned id and hash.
func (r *Recorder) Append(stepType string, input, output canon.Value, metadata canon.Object) (Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return Step{}, fmt.Errorf("recorder for run %s already finished", r.id)
	}
	step, err := NewStep(StepID(len(r.steps)+1), stepType,
		canon.Clone(input), canon.Clone(output), canon.CloneObject(metadata))
	if err != nil {
		return Step{}, err
	}
	step, err = step.WithHash()
	if err != nil {
		return Step{}, err
	}
	r.steps = append(r.steps, step)
	return step.Clone(), nil
}

// Len returns the number of steps recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// Finish materializes the run. The recorder rejects further appends.
func (r *Recorder) Finish() Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished = true
	out := Run{
		ID:                     r.id,
		Timestamp:              r.started.Format(time.RFC3339Nano),
		EnvironmentFingerprint: canon.CloneObject(r.env),
		RuntimeVersions:        canon.CloneObject(r.runtime),
		Source:                 r.source,
		Provider:               r.provider,
		Agent:                  r.agent,
		Steps:                  make([]Step, len(r.steps)),
	}
	for i, s := range r.steps {
		out.Steps[i] = s.Clone()
	}
	return out
}
