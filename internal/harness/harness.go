package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/runproof/internal/assertion"
	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/policy"
	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/runfile"
)

// Harness executes scenarios. It holds no per-scenario state, so one
// harness may run many scenarios.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to the replay engine.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness. Logs are discarded unless WithLogger is given.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and evaluates its assertions.
//
// Execution flow:
// 1. Load the run files and optional policy
// 2. Execute the scenario's operation
// 3. Evaluate assertions against the outcome
//
// Only load failures return an error. Failures of the operation itself are
// recorded in the outcome so "error" assertions can match them.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	baseline, err := runfile.Read(scenario.Baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline: %w", err)
	}

	var candidate run.Run
	if scenario.Candidate != "" {
		candidate, err = runfile.Read(scenario.Candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to load candidate: %w", err)
		}
	}

	var doc *policy.Document
	if scenario.Policy != "" {
		doc, err = policy.Load(scenario.Policy)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
	}

	result := NewResult(scenario.Mode)
	result.Outcome = h.execute(ctx, scenario, doc, baseline, candidate)

	if result.Outcome.Err != nil && !expectsError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("unexpected error: %v", result.Outcome.Err))
	}
	for _, msg := range EvaluateAssertions(result.Outcome, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"mode", scenario.Mode,
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) execute(ctx context.Context, s *Scenario, doc *policy.Document, baseline, candidate run.Run) Outcome {
	hasher := doc.Hasher()

	switch s.Mode {
	case ModeDiff:
		opts := h.diffOptions(s, doc, hasher)
		res, err := diff.Runs(baseline, candidate, opts)
		return Outcome{Diff: res, Err: err}

	case ModeAssert:
		d := h.diffOptions(s, doc, hasher)
		opts := assertion.Options{
			Strict:            s.Strict || doc.AssertOptions().Strict,
			MaxChangesPerStep: d.MaxChangesPerStep,
			Hasher:            d.Hasher,
		}
		res, err := assertion.Runs(baseline, candidate, opts)
		return Outcome{Assert: res, Err: err}

	case ModeReplayStub, ModeReplayHybrid:
		seed, err := scenarioSeed(s, doc)
		if err != nil {
			return Outcome{Err: err}
		}
		clock := s.FixedClock
		if clock == "" && doc != nil && doc.Replay != nil {
			clock = doc.Replay.FixedClock
		}
		engine := replay.New(replay.WithLogger(h.logger), replay.WithHasher(hasher))

		var replayed run.Run
		if s.Mode == ModeReplayStub {
			replayed, err = engine.Stub(ctx, baseline, seed, clock)
		} else {
			replayed, err = engine.Hybrid(ctx, baseline, candidate, hybridPolicy(s, doc), seed, clock)
		}
		if err != nil {
			return Outcome{Err: err}
		}
		return Outcome{Replay: &replayed}
	}
	return Outcome{Err: fmt.Errorf("unknown mode %q", s.Mode)}
}

func (h *Harness) diffOptions(s *Scenario, doc *policy.Document, hasher canon.Hasher) diff.Options {
	ap := doc.AssertOptions()
	opts := diff.Options{
		StopAtFirstDivergence: s.StopAtFirst || ap.StopAtFirstDivergence,
		MaxChangesPerStep:     ap.MaxChangesPerStep,
		Hasher:                &hasher,
	}
	if s.MaxChangesPerStep > 0 {
		opts.MaxChangesPerStep = s.MaxChangesPerStep
	}
	return opts
}

// scenarioSeed prefers the scenario's seed over the policy's. A scenario
// with neither passes nil to ParseSeed, which reports INVALID_SEED.
func scenarioSeed(s *Scenario, doc *policy.Document) (int64, error) {
	if s.Seed != nil {
		return replay.ParseSeed(s.Seed)
	}
	if doc != nil && doc.Replay != nil {
		return doc.Replay.Seed, nil
	}
	return replay.ParseSeed(nil)
}

func hybridPolicy(s *Scenario, doc *policy.Document) replay.Policy {
	if s.Select == nil && doc != nil && doc.Replay != nil {
		p := doc.Replay.HybridPolicy()
		p.AllowLengthMismatch = p.AllowLengthMismatch || s.AllowLengthMismatch
		return p
	}
	p := replay.Policy{AllowLengthMismatch: s.AllowLengthMismatch}
	if s.Select != nil {
		p.StepIDs = append([]string(nil), s.Select.StepIDs...)
		for _, t := range s.Select.StepTypes {
			p.StepTypes = append(p.StepTypes, run.StepType(t))
		}
	}
	return p
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
