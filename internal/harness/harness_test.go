package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/replay"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_AllScenariosPass(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_DiffOutcome(t *testing.T) {
	result, err := Run(loadTestScenario(t, "tool_divergence"))
	require.NoError(t, err)

	d := result.Outcome.Diff
	require.NotNil(t, d)
	assert.Nil(t, result.Outcome.Assert)
	assert.Nil(t, result.Outcome.Replay)
	assert.Equal(t, "run-baseline", d.LeftRunID)
	assert.Equal(t, "run-candidate-tool", d.RightRunID)
	require.NotNil(t, d.FirstDivergence)
	assert.Equal(t, diff.StatusChanged, d.FirstDivergence.Status)
}

func TestRun_ReplayOutcomeIsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "hybrid_tool_response")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	require.NotNil(t, first.Outcome.Replay)
	require.NotNil(t, second.Outcome.Replay)
	assert.Equal(t, first.Outcome.Replay.ID, second.Outcome.Replay.ID)
	assert.True(t, strings.HasPrefix(first.Outcome.Replay.ID, "replay-"))
	for i := range first.Outcome.Replay.Steps {
		assert.Equal(t, first.Outcome.Replay.Steps[i].Hash, second.Outcome.Replay.Steps[i].Hash)
	}
}

func TestRun_PolicySuppliesReplayParameters(t *testing.T) {
	result, err := Run(loadTestScenario(t, "hybrid_policy"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	r := result.Outcome.Replay
	require.NotNil(t, r)
	assert.Equal(t, "2026-01-02T01:04:05.000000Z", r.Timestamp)
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	s := loadTestScenario(t, "tool_divergence")
	s.Assertions = []Assertion{
		{Type: AssertIdentical, Equals: true},
		{Type: AssertFirstDivergence, Index: 2},
		{Type: AssertChangedPaths, Index: 3, Paths: []string{"/metadata/tool"}},
		{Type: AssertStepCount, Count: 5},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "identical=true")
	assert.Contains(t, result.Errors[1], "step 3")
	assert.Contains(t, result.Errors[2], "/hash")
	assert.Contains(t, result.Errors[3], "no result for this mode")
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	s := loadTestScenario(t, "hybrid_alignment")
	s.Assertions = []Assertion{{Type: AssertStepCount, Count: 5}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.True(t, replay.HasCode(result.Outcome.Err, replay.ErrCodeAlignmentMismatch))
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_WrongErrorCodeFails(t *testing.T) {
	s := loadTestScenario(t, "hybrid_alignment")
	s.Assertions = []Assertion{{Type: AssertError, Code: "NO_SELECTION"}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ALIGNMENT_MISMATCH")
}

func TestRun_RelaxedAlignmentSucceeds(t *testing.T) {
	s := loadTestScenario(t, "hybrid_alignment")
	s.AllowLengthMismatch = true
	s.Assertions = []Assertion{
		{Type: AssertStepCount, Count: 5},
		{Type: AssertStepMetadata, Index: 4, Field: "replay_strategy", Equals: "rerun"},
	}

	result, err := New().Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MissingRunFileIsLoadError(t *testing.T) {
	s := loadTestScenario(t, "stub_replay")
	s.Baseline = filepath.Join(t.TempDir(), "gone.json")

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load baseline")
}

func TestRun_QuotedSeedIsRejected(t *testing.T) {
	s := loadTestScenario(t, "string_seed")
	assert.Equal(t, "7", s.Seed)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.True(t, replay.HasCode(result.Outcome.Err, replay.ErrCodeInvalidSeed))
}
