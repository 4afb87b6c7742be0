package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runproof/internal/assertion"
	"github.com/roach88/runproof/internal/store"
)

// AssertOptions holds flags for the assert command.
type AssertOptions struct {
	*RootOptions
	Policy            string
	Strict            bool
	MaxChangesPerStep int
	Stored            bool
	Record            bool
}

// NewAssertCommand creates the assert command.
func NewAssertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AssertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "assert <baseline> <candidate>",
		Short: "Assert a candidate run is equivalent to a baseline",
		Long: `Assert that a candidate run behaves like a baseline.

Non-strict mode passes when every step's content hash matches. Strict mode
also requires equal environment fingerprints, runtime versions and step
metadata, volatile fields included.

Exit codes:
  0 - Assertion passed
  1 - Assertion failed
  2 - Command error (unreadable run, bad policy, etc.)

Examples:
  runproof assert baseline.json candidate.json
  runproof assert --strict baseline.json candidate.json
  runproof assert --policy policy.cue --stored --record run-a run-b`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssert(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", "", "CUE policy file")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "also compare environment, runtime versions and step metadata")
	cmd.Flags().IntVar(&opts.MaxChangesPerStep, "max-changes", 0, "maximum changes reported per step (default from policy or config)")
	cmd.Flags().BoolVar(&opts.Stored, "stored", false, "treat arguments as run ids in the store")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "append the result to the store's report log")

	return cmd
}

func runAssert(opts *AssertOptions, baselineRef, candidateRef string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	doc, err := loadPolicy(f, opts.Policy)
	if err != nil {
		return err
	}
	hasher := hasherFor(opts.RootOptions, doc)

	src := &runSource{opts: opts.RootOptions, f: f, hasher: hasher, stored: opts.Stored}
	defer src.close()

	baseline, err := src.load(ctx, baselineRef)
	if err != nil {
		return err
	}
	candidate, err := src.load(ctx, candidateRef)
	if err != nil {
		return err
	}

	res, err := assertion.Runs(baseline, candidate, assertion.Options{
		Strict:            opts.Strict || doc.AssertOptions().Strict,
		MaxChangesPerStep: changeBound(opts.MaxChangesPerStep, doc, opts.RootOptions),
		Hasher:            &hasher,
	})
	if err != nil {
		return commandError(f, ErrCodeOptions, "invalid assertion options", err)
	}

	if opts.Record {
		rep, err := recordResult(ctx, src, store.ReportAssert, baseline.ID, candidate.ID, res.Passed, res)
		if err != nil {
			return err
		}
		f.VerboseLog("recorded report %s", rep.ID)
	}

	message := fmt.Sprintf("assertion failed: %s does not match %s", candidate.ID, baseline.ID)
	if err := f.Report(res, !res.Passed, ErrCodeAssertion, message, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s", f.Marker(res.Passed), res.Summary())
	}); err != nil {
		return err
	}

	if !res.Passed {
		return NewExitError(ExitFailure, message)
	}
	return nil
}
