package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/runproof/internal/run"
)

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Source      string `json:"source,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Agent       string `json:"agent,omitempty"`
	Fingerprint string `json:"fingerprint"`
	StepCount   int    `json:"step_count"`
}

// WriteRun stores a run and its steps in one transaction.
//
// Steps without a hash are hashed before storage; stored hashes that do
// not match the step content are rejected. Writing a run whose id already
// exists is a no-op when the fingerprints match (inserted=false) and
// ErrFingerprintConflict otherwise.
func (s *Store) WriteRun(ctx context.Context, r run.Run) (inserted bool, err error) {
	if err := r.Validate(); err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	if err := r.VerifyHashesWith(s.hasher); err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	fingerprint, err := r.Fingerprint(s.hasher)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}

	envJSON, err := marshalObject(r.EnvironmentFingerprint)
	if err != nil {
		return false, fmt.Errorf("write run: environment: %w", err)
	}
	runtimeJSON, err := marshalObject(r.RuntimeVersions)
	if err != nil {
		return false, fmt.Errorf("write run: runtime versions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, timestamp, source, provider, agent, environment_fingerprint, runtime_versions, fingerprint, step_count)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.Timestamp,
		r.Source,
		r.Provider,
		r.Agent,
		envJSON,
		runtimeJSON,
		fingerprint,
		len(r.Steps),
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var existing string
		if err := tx.QueryRowContext(ctx, `SELECT fingerprint FROM runs WHERE id = ?`, r.ID).Scan(&existing); err != nil {
			return false, fmt.Errorf("write run: select existing: %w", err)
		}
		if existing != fingerprint {
			return false, fmt.Errorf("write run %s: %w", r.ID, ErrFingerprintConflict)
		}
		return false, nil
	}

	for i, step := range r.Steps {
		if err := insertStep(ctx, tx, r.ID, i, step, s); err != nil {
			return false, fmt.Errorf("write run %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

func insertStep(ctx context.Context, tx *sql.Tx, runID string, position int, step run.Step, s *Store) error {
	hash := step.Hash
	if hash == "" {
		computed, err := step.ComputeHashWith(s.hasher)
		if err != nil {
			return err
		}
		hash = computed
	}
	inputJSON, err := marshalValue(step.Input)
	if err != nil {
		return fmt.Errorf("step %s input: %w", step.ID, err)
	}
	outputJSON, err := marshalValue(step.Output)
	if err != nil {
		return fmt.Errorf("step %s output: %w", step.ID, err)
	}
	metaJSON, err := marshalObject(step.Metadata)
	if err != nil {
		return fmt.Errorf("step %s metadata: %w", step.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO steps
		(run_id, position, id, type, input, output, metadata, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		position,
		step.ID,
		string(step.Type),
		inputJSON,
		outputJSON,
		metaJSON,
		hash,
	)
	if err != nil {
		return fmt.Errorf("insert step %s: %w", step.ID, err)
	}
	return nil
}

// ReadRun loads a run and its steps. Returns ErrNotFound if the run does
// not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (run.Run, error) {
	var (
		r                    run.Run
		envJSON, runtimeJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, source, provider, agent, environment_fingerprint, runtime_versions
		FROM runs
		WHERE id = ?
	`, id).Scan(&r.ID, &r.Timestamp, &r.Source, &r.Provider, &r.Agent, &envJSON, &runtimeJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return run.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return run.Run{}, fmt.Errorf("read run: %w", err)
	}

	if r.EnvironmentFingerprint, err = unmarshalObject(envJSON); err != nil {
		return run.Run{}, fmt.Errorf("read run %s: environment: %w", id, err)
	}
	if r.RuntimeVersions, err = unmarshalObject(runtimeJSON); err != nil {
		return run.Run{}, fmt.Errorf("read run %s: runtime versions: %w", id, err)
	}

	r.Steps, err = s.readSteps(ctx, id)
	if err != nil {
		return run.Run{}, err
	}
	return r, nil
}

func (s *Store) readSteps(ctx context.Context, runID string) ([]run.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, input, output, metadata, hash
		FROM steps
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []run.Step{}
	for rows.Next() {
		var (
			step                          run.Step
			stepType                      string
			inputJSON, outputJSON, metaJS string
		)
		if err := rows.Scan(&step.ID, &stepType, &inputJSON, &outputJSON, &metaJS, &step.Hash); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if step.Type, err = run.ParseStepType(stepType); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.ID, err)
		}
		if step.Input, err = unmarshalValue(inputJSON); err != nil {
			return nil, fmt.Errorf("step %s input: %w", step.ID, err)
		}
		if step.Output, err = unmarshalValue(outputJSON); err != nil {
			return nil, fmt.Errorf("step %s output: %w", step.ID, err)
		}
		if step.Metadata, err = unmarshalObject(metaJS); err != nil {
			return nil, fmt.Errorf("step %s metadata: %w", step.ID, err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// ListRuns returns every stored run in insertion order.
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, source, provider, agent, fingerprint, step_count
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.Timestamp, &rs.Source, &rs.Provider, &rs.Agent, &rs.Fingerprint, &rs.StepCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRunsByStepHash returns the ids of runs containing a step with the
// given content hash, in insertion order.
func (s *Store) FindRunsByStepHash(ctx context.Context, hash string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT r.id, r.seq
		FROM steps st
		JOIN runs r ON st.run_id = r.id
		WHERE st.hash = ?
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("query step hash: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var (
			id  string
			seq int64
		)
		if err := rows.Scan(&id, &seq); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run ids: %w", err)
	}
	return ids, nil
}
