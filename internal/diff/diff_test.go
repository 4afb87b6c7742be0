package diff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/testutil"
)

func mustDiff(t *testing.T, left, right run.Run, opts Options) *Result {
	t.Helper()
	res, err := Runs(left, right, opts)
	require.NoError(t, err)
	return res
}

func totalCount(res *Result) int {
	total := 0
	for _, n := range res.StatusCounts {
		total += n
	}
	return total
}

func changePaths(sd StepDiff) []string {
	paths := make([]string, len(sd.Changes))
	for i, ch := range sd.Changes {
		paths[i] = ch.Path
	}
	return paths
}

func TestRuns_Reflexive(t *testing.T) {
	r := testutil.SixStepRun(t, "run-a")

	res := mustDiff(t, r, r, DefaultOptions())

	assert.True(t, res.Identical)
	assert.Nil(t, res.FirstDivergence)
	assert.Len(t, res.StepDiffs, 6)
	assert.Equal(t, 6, res.StatusCounts[StatusIdentical])
	for _, sd := range res.StepDiffs {
		assert.Empty(t, sd.Changes)
		assert.NotNil(t, sd.Context)
	}
}

func TestRuns_ReflexiveWithoutStoredHashes(t *testing.T) {
	r := testutil.SixStepRun(t, "run-a")
	for i := range r.Steps {
		r.Steps[i].Hash = ""
	}

	res := mustDiff(t, r, r, DefaultOptions())
	assert.True(t, res.Identical)
}

func TestRuns_ToolMetadataScenario(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.ID = "run-b"
	candidate.Steps[2].Metadata["tool"] = canon.String("search-v2")
	candidate = testutil.Rehash(t, candidate)

	res := mustDiff(t, baseline, candidate, DefaultOptions())

	require.NotNil(t, res.FirstDivergence)
	assert.False(t, res.Identical)
	assert.Equal(t, 3, res.FirstDivergence.Index)
	assert.Equal(t, StatusChanged, res.FirstDivergence.Status)
	assert.Equal(t, run.StepToolRequest, res.FirstDivergence.StepType)
	assert.Equal(t, []string{"/hash", "/metadata/tool"}, changePaths(*res.FirstDivergence))

	tool := res.FirstDivergence.Changes[1]
	assert.Equal(t, KindChanged, tool.Kind)
	assert.Equal(t, canon.String("search"), tool.Left)
	assert.Equal(t, canon.String("search-v2"), tool.Right)

	assert.Equal(t, 5, res.StatusCounts[StatusIdentical])
	assert.Equal(t, 1, res.StatusCounts[StatusChanged])
}

func TestRuns_VolatileMetadataIsIdentical(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.Steps[4].Metadata["duration_ms"] = canon.Int(9000)
	candidate = testutil.Rehash(t, candidate)

	res := mustDiff(t, baseline, candidate, DefaultOptions())
	assert.True(t, res.Identical)
}

func TestRuns_CountInvariant(t *testing.T) {
	full := testutil.SixStepRun(t, "full")
	short := full.Clone()
	short.Steps = short.Steps[:4]

	changed := full.Clone()
	changed.Steps[0].Output = canon.Object{"prompt": canon.String("other")}
	changed = testutil.Rehash(t, changed)

	tests := []struct {
		name        string
		left, right run.Run
		expected    map[Status]int
	}{
		{"identical", full, full, map[Status]int{StatusIdentical: 6}},
		{"missing right", full, short, map[Status]int{StatusIdentical: 4, StatusMissingRight: 2}},
		{"missing left", short, full, map[Status]int{StatusIdentical: 4, StatusMissingLeft: 2}},
		{"changed", full, changed, map[Status]int{StatusIdentical: 5, StatusChanged: 1}},
		{"empty left", run.Run{ID: "empty"}, full, map[Status]int{StatusMissingLeft: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustDiff(t, tt.left, tt.right, DefaultOptions())
			assert.Equal(t, max(len(tt.left.Steps), len(tt.right.Steps)), totalCount(res))
			for _, s := range Statuses {
				assert.Equal(t, tt.expected[s], res.StatusCounts[s], "status %s", s)
			}
		})
	}
}

func TestRuns_BothEmpty(t *testing.T) {
	res := mustDiff(t, run.Run{ID: "a"}, run.Run{ID: "b"}, DefaultOptions())
	assert.True(t, res.Identical)
	assert.Empty(t, res.StepDiffs)
	assert.Equal(t, 0, totalCount(res))
}

func TestRuns_StopAtFirstDivergence(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.Steps[2].Metadata["tool"] = canon.String("search-v2")
	candidate.Steps[4].Output = canon.Object{"content": canon.String("Lyon")}
	candidate = testutil.Rehash(t, candidate)

	fullRes := mustDiff(t, baseline, candidate, DefaultOptions())
	opts := DefaultOptions()
	opts.StopAtFirstDivergence = true
	stopped := mustDiff(t, baseline, candidate, opts)

	require.Len(t, stopped.StepDiffs, 3)
	assert.True(t, stopped.StoppedEarly)
	assert.False(t, fullRes.StoppedEarly)
	assert.Equal(t, StatusIdentical, stopped.StepDiffs[0].Status)
	assert.Equal(t, StatusIdentical, stopped.StepDiffs[1].Status)
	assert.Equal(t, StatusChanged, stopped.StepDiffs[2].Status)

	require.NotNil(t, stopped.FirstDivergence)
	assert.Equal(t, *fullRes.FirstDivergence, *stopped.FirstDivergence)
	assert.Equal(t, 2, fullRes.StatusCounts[StatusChanged])
}

func TestRuns_StopAtFirstDivergenceOnLastStep(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.Steps[5].Output = canon.Object{"answer": canon.String("Lyon")}
	candidate = testutil.Rehash(t, candidate)

	opts := DefaultOptions()
	opts.StopAtFirstDivergence = true
	res := mustDiff(t, baseline, candidate, opts)

	assert.Len(t, res.StepDiffs, 6)
	assert.False(t, res.StoppedEarly)
}

func TestRuns_MissingSteps(t *testing.T) {
	full := testutil.SixStepRun(t, "full")
	short := full.Clone()
	short.Steps = short.Steps[:5]

	res := mustDiff(t, full, short, DefaultOptions())
	sd := res.StepDiffs[5]
	assert.Equal(t, StatusMissingRight, sd.Status)
	assert.Equal(t, "step-0006", sd.LeftStepID)
	assert.Empty(t, sd.RightStepID)
	require.Len(t, sd.Changes, 1)
	assert.Equal(t, "", sd.Changes[0].Path)
	assert.Equal(t, KindRemoved, sd.Changes[0].Kind)
	assert.Nil(t, sd.Changes[0].Right)
	assert.True(t, canon.Equal(full.Steps[5].Value(), sd.Changes[0].Left))

	res = mustDiff(t, short, full, DefaultOptions())
	sd = res.StepDiffs[5]
	assert.Equal(t, StatusMissingLeft, sd.Status)
	assert.Equal(t, KindAdded, sd.Changes[0].Kind)
	assert.Nil(t, sd.Changes[0].Left)
	assert.Equal(t, 6, res.FirstDivergence.Index)
}

func TestRuns_TypeChange(t *testing.T) {
	left := testutil.NewRun("l", testutil.Step(t, "s1", run.StepToolRequest, map[string]any{"q": "x"}, nil, nil))
	right := testutil.NewRun("r", testutil.Step(t, "s1", run.StepModelRequest, map[string]any{"q": "x"}, nil, nil))

	res := mustDiff(t, left, right, DefaultOptions())
	sd := res.StepDiffs[0]
	assert.Equal(t, StatusChanged, sd.Status)
	assert.Equal(t, []string{"/type", "/hash"}, changePaths(sd))
	assert.Equal(t, canon.String("tool.request"), sd.Changes[0].Left)
}

func TestRuns_TypeMismatchLeaf(t *testing.T) {
	left := testutil.NewRun("l", testutil.Step(t, "s1", run.StepToolResponse, nil,
		map[string]any{"result": map[string]any{"rows": []any{1, 2}}}, nil))
	right := testutil.NewRun("r", testutil.Step(t, "s1", run.StepToolResponse, nil,
		map[string]any{"result": "error: timeout"}, nil))

	res := mustDiff(t, left, right, DefaultOptions())
	sd := res.StepDiffs[0]
	assert.Equal(t, []string{"/hash", "/output/result"}, changePaths(sd))
	leaf := sd.Changes[1]
	assert.Equal(t, KindTypeMismatch, leaf.Kind)
	assert.Equal(t, canon.KindObject, canon.KindOf(leaf.Left))
	assert.Equal(t, canon.String("error: timeout"), leaf.Right)
}

func TestRuns_MalformedPayloadNeverFails(t *testing.T) {
	left := testutil.NewRun("l", run.Step{ID: "s1", Type: run.StepModelResponse, Input: nil, Output: canon.Array{canon.Int(1)}})
	right := testutil.NewRun("r", run.Step{ID: "s1", Type: "not.a.type", Input: canon.String("x"), Output: nil})

	res, err := Runs(left, right, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusChanged, res.StepDiffs[0].Status)
	assert.Contains(t, changePaths(res.StepDiffs[0]), "/output")
}

func TestRuns_ArrayAndObjectWalk(t *testing.T) {
	left := testutil.NewRun("l", testutil.Step(t, "s1", run.StepModelRequest,
		map[string]any{"messages": []any{"a", "b"}, "a/b": 1, "gone": true}, nil, nil))
	right := testutil.NewRun("r", testutil.Step(t, "s1", run.StepModelRequest,
		map[string]any{"messages": []any{"a", "c", "d"}, "a/b": 2, "new": nil}, nil, nil))

	res := mustDiff(t, left, right, DefaultOptions())
	sd := res.StepDiffs[0]
	assert.Equal(t, []string{
		"/hash",
		"/input/a~1b",
		"/input/gone",
		"/input/messages/1",
		"/input/messages/2",
		"/input/new",
	}, changePaths(sd))

	kinds := map[string]ChangeKind{}
	for _, ch := range sd.Changes {
		kinds[ch.Path] = ch.Kind
	}
	assert.Equal(t, KindRemoved, kinds["/input/gone"])
	assert.Equal(t, KindAdded, kinds["/input/messages/2"])
	assert.Equal(t, KindAdded, kinds["/input/new"])
	assert.Equal(t, KindChanged, kinds["/input/messages/1"])
}

func TestRuns_IntFloatEquality(t *testing.T) {
	left := testutil.NewRun("l", run.Step{ID: "s1", Type: run.StepToolRequest,
		Input: canon.Object{"n": canon.Int(1)}, Output: canon.Null{}, Hash: "sha256:left"})
	right := testutil.NewRun("r", run.Step{ID: "s1", Type: run.StepToolRequest,
		Input: canon.Object{"n": canon.Float(1)}, Output: canon.Null{}, Hash: "sha256:right"})

	res := mustDiff(t, left, right, DefaultOptions())
	assert.Equal(t, []string{"/hash"}, changePaths(res.StepDiffs[0]))
}

func TestRuns_Truncation(t *testing.T) {
	input := map[string]any{}
	changed := map[string]any{}
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		input[k] = 1
		changed[k] = 2
	}
	left := testutil.NewRun("l", testutil.Step(t, "s1", run.StepToolRequest, input, nil, nil))
	right := testutil.NewRun("r", testutil.Step(t, "s1", run.StepToolRequest, changed, nil, nil))

	opts := DefaultOptions()
	opts.MaxChangesPerStep = 3
	res := mustDiff(t, left, right, opts)

	sd := res.StepDiffs[0]
	assert.Len(t, sd.Changes, 3)
	assert.True(t, sd.Truncated)
	assert.Equal(t, []string{"/hash", "/input/a", "/input/b"}, changePaths(sd))

	opts.MaxChangesPerStep = 6
	res = mustDiff(t, left, right, opts)
	assert.Len(t, res.StepDiffs[0].Changes, 6)
	assert.False(t, res.StepDiffs[0].Truncated, "exactly at the limit is not truncated")
}

func TestRuns_InvalidOptions(t *testing.T) {
	r := testutil.SixStepRun(t, "run-a")
	for _, n := range []int{0, -1} {
		_, err := Runs(r, r, Options{MaxChangesPerStep: n})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}
}

func TestRuns_Context(t *testing.T) {
	r := testutil.NewRun("r", testutil.Step(t, "s1", run.StepModelRequest,
		map[string]any{"model": "from-input", "url": "https://api.example.com/v1", "max_tokens": 256},
		map[string]any{"provider": "from-output"},
		map[string]any{"model": "from-metadata", "duration_ms": 5}))

	res := mustDiff(t, r, r, DefaultOptions())
	ctx := res.StepDiffs[0].Context
	assert.Equal(t, canon.String("from-metadata"), ctx["model"])
	assert.Equal(t, canon.String("https://api.example.com/v1"), ctx["url"])
	assert.Equal(t, canon.Int(256), ctx["max_tokens"])
	assert.Equal(t, canon.String("from-output"), ctx["provider"])
	assert.NotContains(t, ctx, "duration_ms")
}

func TestRuns_DoesNotMutateInputs(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.Steps[1].Input = canon.String("x")
	snapshot := baseline.Clone()

	_ = mustDiff(t, baseline, candidate, DefaultOptions())
	assert.Equal(t, snapshot, baseline)
}

func TestResult_JSON(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.Steps[2].Metadata["tool"] = canon.String("search-v2")
	candidate = testutil.Rehash(t, candidate)

	res := mustDiff(t, baseline, candidate, DefaultOptions())
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["identical"])
	fd := decoded["first_divergence"].(map[string]any)
	assert.Equal(t, float64(3), fd["index"])
	counts := decoded["status_counts"].(map[string]any)
	assert.Equal(t, float64(0), counts["missing_left"])
}

func TestResult_Summary(t *testing.T) {
	baseline := testutil.SixStepRun(t, "run-a")
	candidate := baseline.Clone()
	candidate.ID = "run-b"
	candidate.Steps[2].Metadata["tool"] = canon.String("search-v2")
	candidate = testutil.Rehash(t, candidate)

	res := mustDiff(t, baseline, candidate, DefaultOptions())
	out := res.Summary()
	assert.Contains(t, out, "diff run-a -> run-b: diverged")
	assert.Contains(t, out, "identical=5 changed=1")
	assert.Contains(t, out, "first divergence: step 3 (changed) tool.request")
	assert.Contains(t, out, `/metadata/tool changed: "search" -> "search-v2"`)

	same := mustDiff(t, baseline, baseline, DefaultOptions())
	assert.Contains(t, same.Summary(), "identical")
	assert.NotContains(t, same.Summary(), "first divergence")
}

func TestValues(t *testing.T) {
	changes, truncated := Values("/env", canon.Object{"os": canon.String("linux")},
		canon.Object{"os": canon.String("darwin")}, 10)
	assert.False(t, truncated)
	require.Len(t, changes, 1)
	assert.Equal(t, "/env/os", changes[0].Path)

	changes, _ = Values("", nil, canon.Int(1), 10)
	require.Len(t, changes, 1)
	assert.Equal(t, KindAdded, changes[0].Kind)

	changes, _ = Values("", canon.Null{}, canon.Null{}, 10)
	assert.Empty(t, changes)
}
