package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/runfile"
)

// CanonicalizeOptions holds flags for the canonicalize command.
type CanonicalizeOptions struct {
	*RootOptions
	StripVolatile bool
}

// CanonicalizeResult is the JSON payload of the canonicalize command.
type CanonicalizeResult struct {
	Canonical json.RawMessage `json:"canonical"`
	Hash      string          `json:"hash"`
}

// NewCanonicalizeCommand creates the canonicalize command.
func NewCanonicalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CanonicalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "canonicalize <file>",
		Short: "Print the canonical JSON form of a document",
		Long: `Canonicalize a JSON or YAML document and print it with sorted keys,
ASCII escaping and no whitespace.

Paths and timestamps are normalized by key name, floats are rounded to 12
significant digits and unordered arrays are sorted. Use "-" to read JSON
from stdin.

Examples:
  runproof canonicalize payload.json
  runproof canonicalize --strip-volatile run.yaml
  cat payload.json | runproof canonicalize -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanonicalize(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.StripVolatile, "strip-volatile", false, "drop volatile fields (timing, request ids) at every depth")

	return cmd
}

func runCanonicalize(opts *CanonicalizeOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	v, err := runfile.ReadValue(path)
	if err != nil {
		return commandError(f, ErrCodeReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}

	copts := opts.settings().CanonicalOptions()
	copts.StripVolatile = opts.StripVolatile

	out, err := canon.CanonicalJSON(v, copts)
	if err != nil {
		return commandError(f, ErrCodeReadFailed, "failed to canonicalize", err)
	}
	f.VerboseLog("canonicalized %s (%d bytes)", path, len(out))

	result := CanonicalizeResult{Canonical: out, Hash: canon.Digest(out)}
	return f.Report(result, false, "", "", func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", out)
	})
}
