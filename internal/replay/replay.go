// Package replay reconstructs recorded runs deterministically.
//
// Stub replay rebuilds a run from its own recorded steps. Hybrid replay
// does the same but substitutes the steps a Policy selects with the steps
// of a second, freshly executed run. Both modes execute inside a Sandbox
// (seeded random source, offline dialer, fixed clock) that is threaded
// through explicitly, so replays never patch process-wide state and are
// safe to run concurrently.
//
// Replaying the same inputs with the same seed and fixed clock always
// produces byte-identical output. Source runs are never mutated.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
)

// Mode names a replay strategy.
type Mode string

const (
	ModeStub   Mode = "stub"
	ModeHybrid Mode = "hybrid"
)

// Replay strategies recorded in step metadata.
const (
	StrategyStub  = "stub"
	StrategyRerun = "rerun"
)

// SourceTag is the source tag of every replayed run.
const SourceTag = "replay"

// Hook observes each synthesized step from inside the sandbox. A hook
// returning an error aborts the replay.
type Hook func(ctx context.Context, sb *Sandbox, step run.Step) error

// Engine performs replays. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
	hasher canon.Hasher
	dialer Dialer
	hooks  []Hook
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHasher sets the hasher used for step hashes and fingerprints.
func WithHasher(h canon.Hasher) Option {
	return func(e *Engine) { e.hasher = h }
}

// WithDialer replaces the sandbox dialer. The default refuses every dial.
func WithDialer(d Dialer) Option {
	return func(e *Engine) { e.dialer = d }
}

// WithHooks appends hooks run for every synthesized step.
func WithHooks(hooks ...Hook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, hooks...) }
}

// New creates a replay engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		hasher: canon.DefaultHasher(),
		dialer: OfflineDialer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stub replays source under seed and fixedClock.
func (e *Engine) Stub(ctx context.Context, source run.Run, seed int64, fixedClock string) (run.Run, error) {
	clock, err := ParseFixedClock(fixedClock)
	if err != nil {
		return run.Run{}, err
	}
	sourceFP, err := source.Fingerprint(e.hasher)
	if err != nil {
		return run.Run{}, err
	}

	idSeed := canon.Object{
		"mode":               canon.String(ModeStub),
		"source_fingerprint": canon.String(sourceFP),
		"seed":               canon.Int(seed),
		"fixed_clock":        canon.String(FormatClock(clock)),
	}
	replayID, err := replayID(idSeed)
	if err != nil {
		return run.Run{}, err
	}

	sb := newSandbox(seed, clock, e.dialer)
	steps := make([]run.Step, 0, len(source.Steps))
	for i, src := range source.Steps {
		step, err := e.stubStep(i+1, src)
		if err != nil {
			return run.Run{}, err
		}
		if err := e.observe(ctx, sb, step); err != nil {
			return run.Run{}, err
		}
		steps = append(steps, step)
	}

	out := e.assemble(source, replayID, ModeStub, seed, clock, sourceFP, steps)
	e.logger.Info("replay complete",
		"mode", ModeStub,
		"source_run_id", source.ID,
		"replay_run_id", out.ID,
		"steps", len(steps))
	return out, nil
}

// Hybrid replays source, substituting every step the policy selects with
// the rerun step at the same position.
func (e *Engine) Hybrid(ctx context.Context, source, rerun run.Run, policy Policy, seed int64, fixedClock string) (run.Run, error) {
	if err := policy.Validate(); err != nil {
		return run.Run{}, err
	}
	clock, err := ParseFixedClock(fixedClock)
	if err != nil {
		return run.Run{}, err
	}
	if !policy.AllowLengthMismatch && len(source.Steps) != len(rerun.Steps) {
		return run.Run{}, &ConfigurationError{
			Code: ErrCodeAlignmentMismatch,
			Message: fmt.Sprintf("source run %s has %d steps but rerun %s has %d",
				source.ID, len(source.Steps), rerun.ID, len(rerun.Steps)),
		}
	}

	selected, err := selectSteps(source, rerun, policy)
	if err != nil {
		return run.Run{}, err
	}

	sourceFP, err := source.Fingerprint(e.hasher)
	if err != nil {
		return run.Run{}, err
	}
	rerunFP, err := rerun.Fingerprint(e.hasher)
	if err != nil {
		return run.Run{}, err
	}

	idSeed := canon.Object{
		"mode":               canon.String(ModeHybrid),
		"source_fingerprint": canon.String(sourceFP),
		"rerun_fingerprint":  canon.String(rerunFP),
		"selectors":          policy.Selectors(),
		"seed":               canon.Int(seed),
		"fixed_clock":        canon.String(FormatClock(clock)),
	}
	replayID, err := replayID(idSeed)
	if err != nil {
		return run.Run{}, err
	}

	sb := newSandbox(seed, clock, e.dialer)
	steps := make([]run.Step, 0, len(source.Steps))
	for i, src := range source.Steps {
		var step run.Step
		if selected[i] {
			step, err = e.rerunStep(i+1, src, rerun.Steps[i], rerun.ID)
		} else {
			step, err = e.stubStep(i+1, src)
		}
		if err != nil {
			return run.Run{}, err
		}
		if err := e.observe(ctx, sb, step); err != nil {
			return run.Run{}, err
		}
		steps = append(steps, step)
	}

	out := e.assemble(source, replayID, ModeHybrid, seed, clock, sourceFP, steps)
	out.EnvironmentFingerprint["rerun_run_id"] = canon.String(rerun.ID)
	out.EnvironmentFingerprint["rerun_fingerprint"] = canon.String(rerunFP)
	e.logger.Info("replay complete",
		"mode", ModeHybrid,
		"source_run_id", source.ID,
		"rerun_run_id", rerun.ID,
		"replay_run_id", out.ID,
		"steps", len(steps),
		"rerun_steps", countTrue(selected))
	return out, nil
}

// selectSteps resolves the policy against source and checks every selected
// position against the rerun.
func selectSteps(source, rerun run.Run, policy Policy) ([]bool, error) {
	selected := make([]bool, len(source.Steps))
	for i, s := range source.Steps {
		selected[i] = policy.Selects(s)
	}
	if countTrue(selected) == 0 {
		return nil, &ConfigurationError{
			Code:    ErrCodeNoSelection,
			Message: fmt.Sprintf("policy selects no step of source run %s", source.ID),
		}
	}

	for i, s := range source.Steps {
		if !selected[i] {
			continue
		}
		if i >= len(rerun.Steps) {
			return nil, &ConfigurationError{
				Code:      ErrCodeMissingRerunStep,
				Message:   fmt.Sprintf("rerun %s has no step at selected position", rerun.ID),
				StepIndex: i + 1,
			}
		}
		if r := rerun.Steps[i]; r.Type != s.Type {
			return nil, &ConfigurationError{
				Code:      ErrCodeStepTypeMismatch,
				Message:   fmt.Sprintf("source step %s is %s but rerun step %s is %s", s.ID, s.Type, r.ID, r.Type),
				StepIndex: i + 1,
			}
		}
	}
	return selected, nil
}

func (e *Engine) stubStep(index int, src run.Step) (run.Step, error) {
	meta := canon.CloneObject(src.Metadata)
	if meta == nil {
		meta = canon.Object{}
	}
	meta["source_step_id"] = canon.String(src.ID)
	meta["replay_strategy"] = canon.String(StrategyStub)

	return e.finishStep(index, src.Type, src.Input, src.Output, meta)
}

func (e *Engine) rerunStep(index int, src, rr run.Step, rerunRunID string) (run.Step, error) {
	meta := canon.CloneObject(rr.Metadata)
	if meta == nil {
		meta = canon.Object{}
	}
	meta["source_step_id"] = canon.String(src.ID)
	meta["rerun_step_id"] = canon.String(rr.ID)
	meta["rerun_from_run_id"] = canon.String(rerunRunID)
	meta["replay_strategy"] = canon.String(StrategyRerun)

	return e.finishStep(index, src.Type, rr.Input, rr.Output, meta)
}

func (e *Engine) finishStep(index int, t run.StepType, input, output canon.Value, meta canon.Object) (run.Step, error) {
	step, err := run.NewStep(run.StepID(index), string(t), canon.Clone(input), canon.Clone(output), meta)
	if err != nil {
		return run.Step{}, err
	}
	step, err = step.WithHashWith(e.hasher)
	if err != nil {
		return run.Step{}, err
	}
	e.logger.Debug("replayed step",
		"step_id", step.ID,
		"type", step.Type,
		"strategy", meta["replay_strategy"],
		"hash", step.Hash)
	return step, nil
}

func (e *Engine) observe(ctx context.Context, sb *Sandbox, step run.Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, hook := range e.hooks {
		if err := hook(ctx, sb, step.Clone()); err != nil {
			return fmt.Errorf("replay hook on %s: %w", step.ID, err)
		}
	}
	return nil
}

func (e *Engine) assemble(source run.Run, id string, mode Mode, seed int64, clock time.Time, sourceFP string, steps []run.Step) run.Run {
	env := canon.CloneObject(source.EnvironmentFingerprint)
	if env == nil {
		env = canon.Object{}
	}
	env["replay_mode"] = canon.String(mode)
	env["replay_offline"] = canon.Bool(true)
	env["replay_seed"] = canon.Int(seed)
	env["replay_fixed_clock"] = canon.String(FormatClock(clock))
	env["source_run_id"] = canon.String(source.ID)
	env["source_fingerprint"] = canon.String(sourceFP)

	versions := canon.CloneObject(source.RuntimeVersions)
	if versions == nil {
		versions = canon.Object{}
	}
	versions["replay_mode"] = canon.String(mode)
	versions["replay_engine"] = canon.String(run.EngineVersion)

	return run.Run{
		ID:                     id,
		Timestamp:              FormatClock(clock),
		EnvironmentFingerprint: env,
		RuntimeVersions:        versions,
		Source:                 SourceTag,
		Provider:               source.Provider,
		Agent:                  source.Agent,
		Steps:                  steps,
	}
}

func replayID(seed canon.Object) (string, error) {
	data, err := canon.Marshal(seed)
	if err != nil {
		return "", fmt.Errorf("replay id: %w", err)
	}
	return "replay-" + canon.Hex12(data), nil
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
