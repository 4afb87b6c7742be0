package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/runfile"
)

// DefaultFixtureDir holds golden reports relative to the test's package.
const DefaultFixtureDir = "testdata/golden"

// Snapshot is the golden form of a scenario result: the mode's report plus
// any operation error.
type Snapshot struct {
	Scenario string `json:"scenario"`
	Mode     Mode   `json:"mode"`
	Pass     bool   `json:"pass"`
	Report   any    `json:"report,omitempty"`
	Error    *SnapshotError `json:"error,omitempty"`
}

// SnapshotError records an operation failure in a snapshot.
type SnapshotError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewSnapshot builds the snapshot of a scenario result.
func NewSnapshot(name string, result *Result) Snapshot {
	s := Snapshot{Scenario: name, Mode: result.Mode, Pass: result.Pass}
	o := result.Outcome
	switch {
	case o.Diff != nil:
		s.Report = o.Diff
	case o.Assert != nil:
		s.Report = o.Assert
	case o.Replay != nil:
		s.Report = o.Replay
	}
	if o.Err != nil {
		s.Error = &SnapshotError{Message: o.Err.Error()}
		var ce *replay.ConfigurationError
		if errors.As(o.Err, &ce) {
			s.Error.Code = string(ce.Code)
		}
	}
	return s
}

// Bytes renders the snapshot as indented JSON with sorted keys, so golden
// files are byte-stable across runs.
func (s Snapshot) Bytes() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.Scenario, err)
	}
	v, err := canon.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.Scenario, err)
	}
	return runfile.EncodeValue(v, runfile.FormatJSON)
}

// RunWithGolden executes a scenario and compares its snapshot against
// {fixtureDir}/{scenario.Name}.golden. An empty fixtureDir means
// DefaultFixtureDir.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, fixtureDir string) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, fixtureDir); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result, fixtureDir string) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Bytes()
	if err != nil {
		return err
	}
	if fixtureDir == "" {
		fixtureDir = DefaultFixtureDir
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
