package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/runfile"
)

// HashOptions holds flags for the hash command.
type HashOptions struct {
	*RootOptions
	Policy string
	Verify bool
	Write  bool
}

// StepHashResult is one step's computed hash.
type StepHashResult struct {
	Index  int          `json:"index"`
	ID     string       `json:"id"`
	Type   run.StepType `json:"type"`
	Hash   string       `json:"hash"`
	Stored string       `json:"stored,omitempty"`
	Match  bool         `json:"match"`
}

// HashResult is the JSON payload of the hash command.
type HashResult struct {
	RunID       string           `json:"run_id"`
	Fingerprint string           `json:"fingerprint"`
	Steps       []StepHashResult `json:"steps"`
	Mismatches  int              `json:"mismatches"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hash <run-file>",
		Short: "Compute step content hashes and the run fingerprint",
		Long: `Compute the content hash of every step and the run fingerprint.

Volatile metadata (durations, request ids, timestamps) does not affect the
hash. With --verify, stored step hashes are checked against the content.

Exit codes:
  0 - Hashes computed (and verified, with --verify)
  1 - A stored hash does not match its step (--verify)
  2 - Command error (unreadable run, bad policy, etc.)

Examples:
  runproof hash run.json
  runproof hash --verify run.json
  runproof hash --write run.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", "", "CUE policy file with extra canonical fields")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "fail if a stored step hash does not match")
	cmd.Flags().BoolVar(&opts.Write, "write", false, "write the computed hashes back into the run file")

	return cmd
}

func runHash(opts *HashOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	doc, err := loadPolicy(f, opts.Policy)
	if err != nil {
		return err
	}
	hasher := hasherFor(opts.RootOptions, doc)

	r, err := runfile.Read(path)
	if err != nil {
		return commandError(f, ErrCodeReadFailed, fmt.Sprintf("failed to load run %s", path), err)
	}

	hashes, err := r.StepHashes(hasher)
	if err != nil {
		return commandError(f, ErrCodeReadFailed, "failed to hash steps", err)
	}
	fingerprint, err := r.Fingerprint(hasher)
	if err != nil {
		return commandError(f, ErrCodeReadFailed, "failed to fingerprint run", err)
	}

	result := HashResult{
		RunID:       r.ID,
		Fingerprint: fingerprint,
		Steps:       make([]StepHashResult, len(r.Steps)),
	}
	for i, s := range r.Steps {
		sr := StepHashResult{
			Index:  i + 1,
			ID:     s.ID,
			Type:   s.Type,
			Hash:   hashes[i],
			Stored: s.Hash,
			Match:  s.Hash == "" || s.Hash == hashes[i],
		}
		if !sr.Match {
			result.Mismatches++
		}
		result.Steps[i] = sr
	}

	if opts.Write {
		hashed, err := r.WithHashedStepsWith(hasher)
		if err != nil {
			return commandError(f, ErrCodeReadFailed, "failed to hash steps", err)
		}
		if err := runfile.Write(path, hashed); err != nil {
			return commandError(f, ErrCodeWriteFailed, fmt.Sprintf("failed to write %s", path), err)
		}
		f.VerboseLog("wrote %d step hashes to %s", len(hashed.Steps), path)
	}

	failed := opts.Verify && result.Mismatches > 0
	message := fmt.Sprintf("%d stored step hash(es) do not match", result.Mismatches)
	err = f.Report(result, failed, ErrCodeHash, message, func(w io.Writer) {
		fmt.Fprintf(w, "run %s\n", result.RunID)
		for _, s := range result.Steps {
			prefix := "  "
			if opts.Verify {
				prefix = f.Marker(s.Match) + " "
			}
			fmt.Fprintf(w, "%s%3d %-14s %-14s %s\n", prefix, s.Index, s.ID, s.Type, s.Hash)
		}
		fmt.Fprintf(w, "fingerprint %s\n", result.Fingerprint)
	})
	if err != nil {
		return err
	}
	if failed {
		return NewExitError(ExitFailure, message)
	}
	return nil
}
