package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScenariosDir = "../harness/testdata/scenarios"

func TestTestCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	env := newCLIEnv(t, "")
	_, err := env.run("test", filepath.Join(env.dir, "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	env := newCLIEnv(t, "")
	out, err := env.run("test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandAllPass(t *testing.T) {
	env := newCLIEnv(t, "")
	out, err := env.run("test", testScenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ tool_divergence")
	assert.Contains(t, out, "Test Summary: 10 passed, 0 failed, 10 total")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	env := newCLIEnv(t, "")
	out, err := env.run("--format", "json", "test", "--filter", "hybrid_*", testScenariosDir)
	require.NoError(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(4), data["total"])
	assert.Equal(t, float64(4), data["passed"])
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	env := newCLIEnv(t, "")
	goldenDir := filepath.Join(env.dir, "golden")

	_, err := env.run("test", "--update", "--golden-dir", goldenDir, testScenariosDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(goldenDir)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
	assert.FileExists(t, filepath.Join(goldenDir, "stub_replay.golden"))

	out, err := env.run("test", "--golden-dir", goldenDir, testScenariosDir)
	require.NoError(t, err, out)

	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "stub_replay.golden"), []byte("{}\n"), 0644))
	out, err = env.run("test", "--golden-dir", goldenDir, testScenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ stub_replay")
	assert.Contains(t, out, "does not match golden file")
	assert.Contains(t, out, "9 passed, 1 failed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	env := newCLIEnv(t, "")
	dir := t.TempDir()
	baseline, err := filepath.Abs(runPath("baseline.json"))
	require.NoError(t, err)
	candidate, err := filepath.Abs(runPath("candidate_tool.json"))
	require.NoError(t, err)

	writeFile(t, dir, "wrong.yaml", `name: wrong
description: Claims two diverging runs are identical
mode: diff
baseline: `+baseline+`
candidate: `+candidate+`
assertions:
  - type: identical
    equals: true
`)

	out, err := env.run("--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, float64(1), data["failed"])
}
