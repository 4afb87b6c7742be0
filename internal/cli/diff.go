package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/store"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Policy                string
	StopAtFirstDivergence bool
	MaxChangesPerStep     int
	Stored                bool
	Record                bool
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <left> <right>",
		Short: "Diff two runs step by step",
		Long: `Compare two runs position by position and report, for each step,
whether it is identical, changed or missing on one side.

Steps are compared by content hash; changed steps list their differences
as JSON pointer paths. Volatile metadata never causes a divergence.

Exit codes:
  0 - Runs are identical
  1 - Runs diverge
  2 - Command error (unreadable run, bad policy, etc.)

Examples:
  runproof diff baseline.json candidate.json
  runproof diff --stop-at-first-divergence baseline.json candidate.json
  runproof diff --stored --record run-a run-b
  runproof diff --format json baseline.json candidate.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", "", "CUE policy file")
	cmd.Flags().BoolVar(&opts.StopAtFirstDivergence, "stop-at-first-divergence", false, "stop scanning after the first non-identical step")
	cmd.Flags().IntVar(&opts.MaxChangesPerStep, "max-changes", 0, "maximum changes reported per step (default from policy or config)")
	cmd.Flags().BoolVar(&opts.Stored, "stored", false, "treat arguments as run ids in the store")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "append the result to the store's report log")

	return cmd
}

func runDiff(opts *DiffOptions, leftRef, rightRef string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	doc, err := loadPolicy(f, opts.Policy)
	if err != nil {
		return err
	}
	hasher := hasherFor(opts.RootOptions, doc)

	src := &runSource{opts: opts.RootOptions, f: f, hasher: hasher, stored: opts.Stored}
	defer src.close()

	left, err := src.load(ctx, leftRef)
	if err != nil {
		return err
	}
	right, err := src.load(ctx, rightRef)
	if err != nil {
		return err
	}

	res, err := diff.Runs(left, right, diff.Options{
		StopAtFirstDivergence: opts.StopAtFirstDivergence || doc.AssertOptions().StopAtFirstDivergence,
		MaxChangesPerStep:     changeBound(opts.MaxChangesPerStep, doc, opts.RootOptions),
		Hasher:                &hasher,
	})
	if err != nil {
		return commandError(f, ErrCodeOptions, "invalid diff options", err)
	}
	f.VerboseLog("diffed %s (%d steps) against %s (%d steps)",
		left.ID, res.LeftStepCount, right.ID, res.RightStepCount)

	if opts.Record {
		rep, err := recordResult(ctx, src, store.ReportDiff, left.ID, right.ID, res.Identical, res)
		if err != nil {
			return err
		}
		f.VerboseLog("recorded report %s", rep.ID)
	}

	message := "runs diverge"
	if fd := res.FirstDivergence; fd != nil {
		message = fmt.Sprintf("runs diverge at step %d", fd.Index)
	}
	if err := f.Report(res, !res.Identical, ErrCodeDiverged, message, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s", f.Marker(res.Identical), res.Summary())
	}); err != nil {
		return err
	}

	if !res.Identical {
		return NewExitError(ExitFailure, message)
	}
	return nil
}

// recordResult stores body as a report.
func recordResult(ctx context.Context, src *runSource, kind store.ReportKind, left, right string, passed bool, body any) (store.Report, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return store.Report{}, commandError(src.f, ErrCodeGeneric, "failed to encode report", err)
	}
	return src.recordReport(ctx, store.Report{
		Kind:       kind,
		LeftRunID:  left,
		RightRunID: right,
		Passed:     passed,
		Body:       data,
	})
}
