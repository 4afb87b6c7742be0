package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/policy"
	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/runfile"
	"github.com/roach88/runproof/internal/store"
)

// commandError reports a command failure in the configured format and
// returns it with ExitCommandError. Text output is left to main, which
// prints the returned error.
func commandError(f *OutputFormatter, code, message string, err error) error {
	if f.Format == "json" {
		_ = f.Error(code, message, errorDetails(err))
	}
	return WrapExitError(ExitCommandError, message, err)
}

func errorDetails(err error) interface{} {
	if err == nil {
		return nil
	}
	var ce *replay.ConfigurationError
	if errors.As(err, &ce) {
		d := map[string]interface{}{"code": string(ce.Code), "message": ce.Message}
		if ce.StepIndex > 0 {
			d["step_index"] = ce.StepIndex
		}
		return d
	}
	var ve *run.ValidationError
	if errors.As(err, &ve) {
		return map[string]interface{}{"code": string(ve.Code), "field": ve.Field, "message": ve.Message}
	}
	var pe *policy.CompileError
	if errors.As(err, &pe) {
		return map[string]interface{}{"field": pe.Field, "message": pe.Message}
	}
	return err.Error()
}

// loadPolicy compiles the policy file at path. An empty path returns nil,
// which every policy accessor treats as "all defaults".
func loadPolicy(f *OutputFormatter, path string) (*policy.Document, error) {
	if path == "" {
		return nil, nil
	}
	doc, err := policy.Load(path)
	if err != nil {
		return nil, commandError(f, ErrCodePolicy, fmt.Sprintf("failed to load policy %s", path), err)
	}
	return doc, nil
}

// hasherFor merges the config's extra field names with the policy's.
func hasherFor(opts *RootOptions, doc *policy.Document) canon.Hasher {
	cfg := opts.settings()
	base := canon.HashOptions().WithExtraFields(cfg.Canonical.VolatileFields, cfg.Canonical.UnorderedFields)
	if doc != nil && doc.Canonical != nil {
		base = doc.Canonical.Options(base)
	}
	return canon.NewHasher(base)
}

// openStore opens the run store, creating its directory when needed.
func openStore(opts *RootOptions, f *OutputFormatter, hasher canon.Hasher) (*store.Store, error) {
	path := opts.database()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, commandError(f, ErrCodeStore, "failed to create database directory", err)
		}
	}
	st, err := store.Open(path, store.WithHasher(hasher))
	if err != nil {
		return nil, commandError(f, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

// runSource resolves run arguments either as files or as stored run ids.
type runSource struct {
	opts   *RootOptions
	f      *OutputFormatter
	hasher canon.Hasher
	stored bool
	st     *store.Store
}

func (s *runSource) load(ctx context.Context, ref string) (run.Run, error) {
	if !s.stored {
		r, err := runfile.Read(ref)
		if err != nil {
			return run.Run{}, commandError(s.f, ErrCodeReadFailed, fmt.Sprintf("failed to load run %s", ref), err)
		}
		return r, nil
	}

	st, err := s.store()
	if err != nil {
		return run.Run{}, err
	}
	r, err := st.ReadRun(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return run.Run{}, commandError(s.f, ErrCodeNotFound, fmt.Sprintf("run %s not found", ref), err)
	}
	if err != nil {
		return run.Run{}, commandError(s.f, ErrCodeStore, fmt.Sprintf("failed to read run %s", ref), err)
	}
	return r, nil
}

// store opens the run store on first use.
func (s *runSource) store() (*store.Store, error) {
	if s.st != nil {
		return s.st, nil
	}
	st, err := openStore(s.opts, s.f, s.hasher)
	if err != nil {
		return nil, err
	}
	s.st = st
	return st, nil
}

func (s *runSource) close() {
	if s.st != nil {
		s.st.Close()
	}
}

// recordReport logs a diff or assertion outcome in the store.
func (s *runSource) recordReport(ctx context.Context, rep store.Report) (store.Report, error) {
	st, err := s.store()
	if err != nil {
		return store.Report{}, err
	}
	saved, err := st.WriteReport(ctx, rep)
	if err != nil {
		return store.Report{}, commandError(s.f, ErrCodeStore, "failed to record report", err)
	}
	return saved, nil
}

// changeBound returns the per-step change bound: flag, then policy, then
// config.
func changeBound(flag int, doc *policy.Document, opts *RootOptions) int {
	if flag > 0 {
		return flag
	}
	if doc != nil && doc.Assert != nil && doc.Assert.MaxChangesPerStep > 0 {
		return doc.Assert.MaxChangesPerStep
	}
	return opts.settings().MaxChangesPerStep
}
