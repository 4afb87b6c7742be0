package assertion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/testutil"
)

func durationRuns(t *testing.T) (run.Run, run.Run) {
	t.Helper()
	baseline := testutil.NewRun("baseline",
		testutil.Step(t, "step-0001", run.StepToolRequest, map[string]any{"q": "x"}, nil, map[string]any{"duration_ms": 3}))
	candidate := testutil.NewRun("candidate",
		testutil.Step(t, "step-0001", run.StepToolRequest, map[string]any{"q": "x"}, nil, map[string]any{"duration_ms": 999}))
	return baseline, candidate
}

func TestRuns_DurationDriftScenario(t *testing.T) {
	baseline, candidate := durationRuns(t)

	res, err := Runs(baseline, candidate, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Passed, "non-strict assertion ignores volatile metadata")
	assert.Empty(t, res.StrictFailures)

	opts := DefaultOptions()
	opts.Strict = true
	res, err = Runs(baseline, candidate, opts)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, res.Diff.Identical)

	require.Len(t, res.StrictFailures, 1)
	f := res.StrictFailures[0]
	assert.Equal(t, FailureMetadataDrift, f.Kind)
	assert.Equal(t, 1, f.StepIndex)
	assert.Equal(t, "step-0001", f.StepID)
	assert.Equal(t, "/metadata/duration_ms", f.Path)
	assert.Equal(t, canon.Int(3), f.Left)
	assert.Equal(t, canon.Int(999), f.Right)
}

func TestRuns_StrictPassesOnExactCopy(t *testing.T) {
	r := testutil.SixStepRun(t, "run-a")
	opts := DefaultOptions()
	opts.Strict = true

	res, err := Runs(r, r.Clone(), opts)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Empty(t, res.StrictFailures)
}

func TestRuns_StrictEnvironmentAndRuntime(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.EnvironmentFingerprint["os"] = canon.String("darwin")
	candidate.RuntimeVersions["go"] = canon.String("go1.26")
	delete(candidate.RuntimeVersions, "provider")

	res, err := Runs(baseline, candidate, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Passed)

	opts := DefaultOptions()
	opts.Strict = true
	res, err = Runs(baseline, candidate, opts)
	require.NoError(t, err)
	assert.False(t, res.Passed)

	byPath := map[string]StrictFailure{}
	for _, f := range res.StrictFailures {
		byPath[f.Path] = f
	}
	require.Len(t, byPath, 3)
	assert.Equal(t, FailureEnvironmentMismatch, byPath["/environment_fingerprint/os"].Kind)
	assert.Equal(t, FailureRuntimeMismatch, byPath["/runtime_versions/go"].Kind)
	assert.Equal(t, FailureRuntimeMismatch, byPath["/runtime_versions/provider"].Kind)
	assert.Nil(t, byPath["/runtime_versions/provider"].Right)
	assert.Zero(t, byPath["/environment_fingerprint/os"].StepIndex)
}

func TestRuns_VolatileEnvironmentKeysAreStillCompared(t *testing.T) {
	baseline := testutil.NewRun("a")
	baseline.EnvironmentFingerprint["pid"] = canon.Int(100)
	candidate := baseline.Clone()
	candidate.EnvironmentFingerprint["pid"] = canon.Int(200)

	opts := DefaultOptions()
	opts.Strict = true
	res, err := Runs(baseline, candidate, opts)
	require.NoError(t, err)
	require.Len(t, res.StrictFailures, 1)
	assert.Equal(t, "/environment_fingerprint/pid", res.StrictFailures[0].Path)
}

func TestRuns_FailsOnSemanticChange(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.Steps[4].Output = canon.Object{"content": canon.String("Lyon")}
	candidate = testutil.Rehash(t, candidate)

	for _, strict := range []bool{false, true} {
		opts := DefaultOptions()
		opts.Strict = strict
		res, err := Runs(baseline, candidate, opts)
		require.NoError(t, err)
		assert.False(t, res.Passed)
		require.NotNil(t, res.Diff.FirstDivergence)
		assert.Equal(t, 5, res.Diff.FirstDivergence.Index)
		assert.Empty(t, res.StrictFailures, "changed steps are reported by the diff, not as drift")
	}
}

func TestRuns_StrictBound(t *testing.T) {
	meta := map[string]any{}
	drift := map[string]any{}
	for _, k := range []string{"duration_ms", "latency_ms", "pid", "thread_id"} {
		meta[k] = 1
		drift[k] = 2
	}
	baseline := testutil.NewRun("a", testutil.Step(t, "s1", run.StepToolRequest, nil, nil, meta))
	candidate := testutil.NewRun("b", testutil.Step(t, "s1", run.StepToolRequest, nil, nil, drift))

	opts := Options{Strict: true, MaxChangesPerStep: 2}
	res, err := Runs(baseline, candidate, opts)
	require.NoError(t, err)
	assert.Len(t, res.StrictFailures, 2)
	assert.True(t, res.StrictTruncated)
}

func TestRuns_InvalidOptions(t *testing.T) {
	r := testutil.SixStepRun(t, "run-a")
	_, err := Runs(r, r, Options{MaxChangesPerStep: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, diff.ErrInvalidOptions)
}

func TestResult_SummaryAndJSON(t *testing.T) {
	baseline, candidate := durationRuns(t)
	opts := DefaultOptions()
	opts.Strict = true
	res, err := Runs(baseline, candidate, opts)
	require.NoError(t, err)

	out := res.Summary()
	assert.Contains(t, out, "assert (strict): FAIL")
	assert.Contains(t, out, "metadata_drift step 1 /metadata/duration_ms: 3 -> 999")

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["passed"])
	failures := decoded["strict_failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "metadata_drift", failures[0].(map[string]any)["kind"])
}
