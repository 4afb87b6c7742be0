package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runproof/internal/policy"
	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/runfile"
	"github.com/roach88/runproof/internal/store"
)

// ReplayOptions holds flags shared by the replay subcommands.
type ReplayOptions struct {
	*RootOptions
	Policy     string
	Seed       string
	FixedClock string
	Out        string
	Store      bool
	Stored     bool

	// hybrid only
	SelectTypes         []string
	SelectIDs           []string
	AllowLengthMismatch bool
}

// ReplayResult is the JSON payload when the replayed run is written to a
// file or the store instead of stdout.
type ReplayResult struct {
	RunID       string `json:"run_id"`
	SourceRunID string `json:"source_run_id"`
	RerunRunID  string `json:"rerun_run_id,omitempty"`
	Steps       int    `json:"steps"`
	Out         string `json:"out,omitempty"`
	Stored      bool   `json:"stored"`
}

// NewReplayCommand creates the replay command group.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a run offline under a fixed seed and clock",
		Long: `Replay a recorded run deterministically.

Replays never touch the network: every step is synthesized from recorded
data inside a sandbox with a seeded random source and a fixed clock. The
replayed run's id is derived from its inputs, so the same inputs always
produce a byte-identical run.

Exit codes:
  0 - Replay succeeded
  2 - Command error (bad seed or clock, empty selector, misaligned runs, etc.)`,
	}

	cmd.AddCommand(newReplayStubCommand(rootOpts))
	cmd.AddCommand(newReplayHybridCommand(rootOpts))

	return cmd
}

func newReplayStubCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stub <source>",
		Short: "Replay every step from the source run",
		Long: `Replay every step from the source run's own recorded outputs.

Examples:
  runproof replay stub --seed 42 --fixed-clock 2026-01-01T00:00:00Z run.json
  runproof replay stub --policy replay.cue --out replayed.json run.json
  runproof replay stub --stored --store --seed 7 --fixed-clock 2026-01-01T00:00:00Z run-a`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], "", cmd)
		},
	}
	addReplayFlags(cmd, opts)

	return cmd
}

func newReplayHybridCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hybrid <source> <rerun>",
		Short: "Replay the source run, taking selected steps from a rerun",
		Long: `Replay the source run, substituting every step the selector matches
with the rerun step at the same position. Unselected steps are replayed
from the source.

The selector comes from --select-type/--select-id, or from the policy
file's replay.select section when neither flag is given.

Examples:
  runproof replay hybrid --select-type tool.response --seed 42 \
    --fixed-clock 2026-01-01T00:00:00Z source.json rerun.json
  runproof replay hybrid --policy replay.cue source.json rerun.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], args[1], cmd)
		},
	}
	addReplayFlags(cmd, opts)
	cmd.Flags().StringSliceVar(&opts.SelectTypes, "select-type", nil, "step types to take from the rerun (repeatable)")
	cmd.Flags().StringSliceVar(&opts.SelectIDs, "select-id", nil, "step ids to take from the rerun (repeatable)")
	cmd.Flags().BoolVar(&opts.AllowLengthMismatch, "allow-length-mismatch", false, "allow source and rerun step counts to differ")

	return cmd
}

func addReplayFlags(cmd *cobra.Command, opts *ReplayOptions) {
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "CUE policy file with replay seed, clock and selector")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "integer random seed (default from policy)")
	cmd.Flags().StringVar(&opts.FixedClock, "fixed-clock", "", "RFC3339 time with offset (default from policy)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the replayed run to a file (.json or .yaml)")
	cmd.Flags().BoolVar(&opts.Store, "store", false, "save the replayed run and a replay report in the store")
	cmd.Flags().BoolVar(&opts.Stored, "stored", false, "treat arguments as run ids in the store")
}

func runReplay(opts *ReplayOptions, sourceRef, rerunRef string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	doc, err := loadPolicy(f, opts.Policy)
	if err != nil {
		return err
	}
	hasher := hasherFor(opts.RootOptions, doc)

	src := &runSource{opts: opts.RootOptions, f: f, hasher: hasher, stored: opts.Stored}
	defer src.close()

	seed, clock, err := replayParams(opts, doc)
	if err != nil {
		return commandError(f, ErrCodeReplay, "invalid replay parameters", err)
	}

	source, err := src.load(ctx, sourceRef)
	if err != nil {
		return err
	}

	engine := replay.New(
		replay.WithLogger(opts.newLogger(cmd.ErrOrStderr())),
		replay.WithHasher(hasher),
	)

	var out run.Run
	var rerun run.Run
	if rerunRef == "" {
		out, err = engine.Stub(ctx, source, seed, clock)
	} else {
		rerun, err = src.load(ctx, rerunRef)
		if err != nil {
			return err
		}
		out, err = engine.Hybrid(ctx, source, rerun, selector(opts, doc), seed, clock)
	}
	if err != nil {
		return commandError(f, ErrCodeReplay, "replay failed", err)
	}

	result := ReplayResult{
		RunID:       out.ID,
		SourceRunID: source.ID,
		RerunRunID:  rerun.ID,
		Steps:       len(out.Steps),
		Out:         opts.Out,
	}

	if opts.Store {
		if err := storeReplay(ctx, src, source.ID, rerun.ID, out); err != nil {
			return err
		}
		result.Stored = true
	}

	if opts.Out != "" {
		if err := runfile.Write(opts.Out, out); err != nil {
			return commandError(f, ErrCodeWriteFailed, fmt.Sprintf("failed to write %s", opts.Out), err)
		}
	}

	if opts.Out == "" && !opts.Store {
		if f.Format == "json" {
			return f.Success(out)
		}
		data, err := runfile.Encode(out, runfile.FormatJSON)
		if err != nil {
			return commandError(f, ErrCodeGeneric, "failed to encode replayed run", err)
		}
		_, err = f.Writer.Write(data)
		return err
	}

	return f.Report(result, false, "", "", func(w io.Writer) {
		fmt.Fprintf(w, "%s replayed %s -> %s (%d steps)\n", f.Marker(true), result.SourceRunID, result.RunID, result.Steps)
		if result.Out != "" {
			fmt.Fprintf(w, "  written to %s\n", result.Out)
		}
		if result.Stored {
			fmt.Fprintln(w, "  saved to store")
		}
	})
}

// replayParams resolves the seed and clock: flags first, then the policy.
func replayParams(opts *ReplayOptions, doc *policy.Document) (int64, string, error) {
	var (
		seedValue any
		clock     = opts.FixedClock
	)
	if doc != nil && doc.Replay != nil {
		seedValue = doc.Replay.Seed
		if clock == "" {
			clock = doc.Replay.FixedClock
		}
	}
	var (
		seed int64
		err  error
	)
	if opts.Seed != "" {
		seed, err = replay.ParseSeedFlag(opts.Seed)
	} else {
		seed, err = replay.ParseSeed(seedValue)
	}
	if err != nil {
		return 0, "", err
	}
	if _, err := replay.ParseFixedClock(clock); err != nil {
		return 0, "", err
	}
	return seed, clock, nil
}

// selector builds the hybrid policy. Explicit flags replace the policy
// file's selector.
func selector(opts *ReplayOptions, doc *policy.Document) replay.Policy {
	var p replay.Policy
	if doc != nil && doc.Replay != nil {
		p = doc.Replay.HybridPolicy()
	}
	if len(opts.SelectTypes) > 0 || len(opts.SelectIDs) > 0 {
		p.StepTypes = nil
		for _, t := range opts.SelectTypes {
			p.StepTypes = append(p.StepTypes, run.StepType(t))
		}
		p.StepIDs = append([]string(nil), opts.SelectIDs...)
	}
	if opts.AllowLengthMismatch {
		p.AllowLengthMismatch = true
	}
	return p
}

func storeReplay(ctx context.Context, src *runSource, sourceID, rerunID string, out run.Run) error {
	st, err := src.store()
	if err != nil {
		return err
	}
	if _, err := st.WriteRun(ctx, out); err != nil {
		return commandError(src.f, ErrCodeStore, "failed to store replayed run", err)
	}
	summary := map[string]any{
		"replay_run_id": out.ID,
		"source_run_id": sourceID,
		"steps":         len(out.Steps),
	}
	if rerunID != "" {
		summary["rerun_run_id"] = rerunID
	}
	_, err = recordResult(ctx, src, store.ReportReplay, sourceID, out.ID, true, summary)
	return err
}
