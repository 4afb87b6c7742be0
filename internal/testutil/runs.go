package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
)

// Obj builds a canon.Object from plain Go data. Fails the test on
// unsupported types.
func Obj(t testing.TB, m map[string]any) canon.Object {
	t.Helper()
	v, err := canon.FromAny(m)
	require.NoError(t, err)
	return v.(canon.Object)
}

// Step builds a hashed step.
func Step(t testing.TB, id string, stepType run.StepType, input, output, metadata map[string]any) run.Step {
	t.Helper()
	var in, out canon.Value
	if input != nil {
		in = Obj(t, input)
	}
	if output != nil {
		out = Obj(t, output)
	}
	var meta canon.Object
	if metadata != nil {
		meta = Obj(t, metadata)
	}
	s, err := run.NewStep(id, string(stepType), in, out, meta)
	require.NoError(t, err)
	s, err = s.WithHash()
	require.NoError(t, err)
	return s
}

// NewRun wraps steps in a run with a fixed timestamp and environment.
func NewRun(id string, steps ...run.Step) run.Run {
	return run.Run{
		ID:        id,
		Timestamp: "2026-01-01T00:00:00Z",
		EnvironmentFingerprint: canon.Object{
			"os":   canon.String("linux"),
			"arch": canon.String("amd64"),
		},
		RuntimeVersions: canon.Object{
			"go":       canon.String("go1.25"),
			"provider": canon.String("openai-1.40.0"),
		},
		Source:   "capture",
		Provider: "openai",
		Agent:    "planner",
		Steps:    steps,
	}
}

// SixStepRun is a representative agent run: render, model call, one
// search tool round trip, a final model call and the final output. Step 3
// is the tool.request carrying metadata tool "search".
func SixStepRun(t testing.TB, id string) run.Run {
	t.Helper()
	return NewRun(id,
		Step(t, "step-0001", run.StepPromptRender,
			map[string]any{"template": "answer {question}", "question": "capital of France"},
			map[string]any{"prompt": "answer capital of France"},
			map[string]any{"duration_ms": 1}),
		Step(t, "step-0002", run.StepModelRequest,
			map[string]any{"messages": []any{map[string]any{"role": "user", "content": "answer capital of France"}}},
			nil,
			map[string]any{"model": "gpt-4o", "temperature": 0, "duration_ms": 2}),
		Step(t, "step-0003", run.StepToolRequest,
			map[string]any{"query": "capital of France"},
			nil,
			map[string]any{"tool": "search", "duration_ms": 3}),
		Step(t, "step-0004", run.StepToolResponse,
			nil,
			map[string]any{"results": []any{"Paris is the capital of France"}},
			map[string]any{"tool": "search", "duration_ms": 40}),
		Step(t, "step-0005", run.StepModelResponse,
			nil,
			map[string]any{"content": "Paris", "finish_reason": "stop"},
			map[string]any{"model": "gpt-4o", "duration_ms": 350}),
		Step(t, "step-0006", run.StepOutputFinal,
			nil,
			map[string]any{"answer": "Paris"},
			nil),
	)
}

// Rehash recomputes every step hash of r, failing the test on error.
func Rehash(t testing.TB, r run.Run) run.Run {
	t.Helper()
	out, err := r.WithHashedSteps()
	require.NoError(t, err)
	return out
}
