package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runproof/internal/runfile"
	"github.com/roach88/runproof/internal/store"
)

// RunsOptions holds flags for the runs subcommands.
type RunsOptions struct {
	*RootOptions
	Out string
}

// ImportResult is one imported run file.
type ImportResult struct {
	Path     string `json:"path"`
	RunID    string `json:"run_id"`
	Inserted bool   `json:"inserted"`
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage the SQLite run store",
		Long: `Import, list and inspect runs in the SQLite run store.

The store path comes from --db or the config file's database key.`,
	}

	cmd.AddCommand(newRunsImportCommand(rootOpts))
	cmd.AddCommand(newRunsListCommand(rootOpts))
	cmd.AddCommand(newRunsShowCommand(rootOpts))
	cmd.AddCommand(newRunsReportsCommand(rootOpts))
	cmd.AddCommand(newRunsFindCommand(rootOpts))

	return cmd
}

func newRunsImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}
	return &cobra.Command{
		Use:   "import <run-file>...",
		Short: "Import run files into the store",
		Long: `Import run files into the store. Importing a run whose id is already
stored is a no-op when the content matches and an error when it differs.

Examples:
  runproof runs import baseline.json candidate.yaml
  runproof runs import --db ./runs.db captures/*.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsImport(opts, args, cmd)
		},
	}
}

func runRunsImport(opts *RunsOptions, paths []string, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f, hasherFor(opts.RootOptions, nil))
	if err != nil {
		return err
	}
	defer st.Close()

	results := make([]ImportResult, 0, len(paths))
	for _, path := range paths {
		r, err := runfile.Read(path)
		if err != nil {
			return commandError(f, ErrCodeReadFailed, fmt.Sprintf("failed to load run %s", path), err)
		}
		inserted, err := st.WriteRun(ctx, r)
		if err != nil {
			return commandError(f, ErrCodeStore, fmt.Sprintf("failed to import %s", path), err)
		}
		f.VerboseLog("imported %s as %s (inserted=%t)", path, r.ID, inserted)
		results = append(results, ImportResult{Path: path, RunID: r.ID, Inserted: inserted})
	}

	return f.Report(map[string]any{"imported": results}, false, "", "", func(w io.Writer) {
		for _, r := range results {
			state := "imported"
			if !r.Inserted {
				state = "already stored"
			}
			fmt.Fprintf(w, "%s %s: %s (%s)\n", f.Marker(true), r.Path, r.RunID, state)
		}
	})
}

func newRunsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored runs in insertion order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(opts, cmd)
		},
	}
}

func runRunsList(opts *RunsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f, hasherFor(opts.RootOptions, nil))
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to list runs", err)
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}

	return f.Report(map[string]any{"runs": runs}, false, "", "", func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs stored.")
			return
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%-38s %-30s %4d steps  %s\n", r.ID, r.Timestamp, r.StepCount, r.Source)
		}
	})
}

func newRunsShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run",
		Long: `Print a stored run as JSON, or export it to a file with --out.

Examples:
  runproof runs show run-a
  runproof runs show --out run-a.yaml run-a`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the run to a file (.json or .yaml)")
	return cmd
}

func runRunsShow(opts *RunsOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f, hasherFor(opts.RootOptions, nil))
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := st.ReadRun(context.Background(), id)
	if errors.Is(err, store.ErrNotFound) {
		return commandError(f, ErrCodeNotFound, fmt.Sprintf("run %s not found", id), err)
	}
	if err != nil {
		return commandError(f, ErrCodeStore, fmt.Sprintf("failed to read run %s", id), err)
	}

	if opts.Out != "" {
		if err := runfile.Write(opts.Out, r); err != nil {
			return commandError(f, ErrCodeWriteFailed, fmt.Sprintf("failed to write %s", opts.Out), err)
		}
		return f.Report(map[string]any{"run_id": r.ID, "out": opts.Out}, false, "", "", func(w io.Writer) {
			fmt.Fprintf(w, "%s wrote %s to %s\n", f.Marker(true), r.ID, opts.Out)
		})
	}

	if f.Format == "json" {
		return f.Success(r)
	}
	data, err := runfile.Encode(r, runfile.FormatJSON)
	if err != nil {
		return commandError(f, ErrCodeGeneric, "failed to encode run", err)
	}
	_, err = f.Writer.Write(data)
	return err
}

func newRunsReportsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}
	return &cobra.Command{
		Use:           "reports [run-id]",
		Short:         "List recorded diff, assert and replay reports",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return runRunsReports(opts, id, cmd)
		},
	}
}

func runRunsReports(opts *RunsOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f, hasherFor(opts.RootOptions, nil))
	if err != nil {
		return err
	}
	defer st.Close()

	reports, err := st.ListReports(context.Background(), id)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to list reports", err)
	}
	if reports == nil {
		reports = []store.Report{}
	}

	return f.Report(map[string]any{"reports": reports}, false, "", "", func(w io.Writer) {
		if len(reports) == 0 {
			fmt.Fprintln(w, "No reports recorded.")
			return
		}
		for _, r := range reports {
			fmt.Fprintf(w, "%s %-6s %s %s -> %s\n", f.Marker(r.Passed), r.Kind, r.CreatedAt, r.LeftRunID, r.RightRunID)
		}
	})
}

func newRunsFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}
	return &cobra.Command{
		Use:           "find <step-hash>",
		Short:         "List stored runs containing a step with the given content hash",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsFind(opts, args[0], cmd)
		},
	}
}

func runRunsFind(opts *RunsOptions, hash string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, f, hasherFor(opts.RootOptions, nil))
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := st.FindRunsByStepHash(context.Background(), hash)
	if err != nil {
		return commandError(f, ErrCodeStore, "failed to search runs", err)
	}
	if ids == nil {
		ids = []string{}
	}

	return f.Report(map[string]any{"hash": hash, "runs": ids}, false, "", "", func(w io.Writer) {
		if len(ids) == 0 {
			fmt.Fprintln(w, "No stored run contains that step.")
			return
		}
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
	})
}
