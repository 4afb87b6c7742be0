package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBytesAreStable(t *testing.T) {
	for _, name := range []string{"tool_divergence", "volatile_strict", "stub_replay", "hybrid_no_selection"} {
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)

			a, err := Run(s)
			require.NoError(t, err)
			b, err := Run(s)
			require.NoError(t, err)

			first, err := NewSnapshot(s.Name, a).Bytes()
			require.NoError(t, err)
			second, err := NewSnapshot(s.Name, b).Bytes()
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))
		})
	}
}

func TestSnapshotContent(t *testing.T) {
	result, err := Run(loadTestScenario(t, "tool_divergence"))
	require.NoError(t, err)

	data, err := NewSnapshot("tool_divergence", result).Bytes()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "tool_divergence", doc["scenario"])
	assert.Equal(t, "diff", doc["mode"])
	assert.Equal(t, true, doc["pass"])
	assert.NotContains(t, doc, "error")

	report := doc["report"].(map[string]any)
	assert.Equal(t, false, report["identical"])
	fd := report["first_divergence"].(map[string]any)
	assert.Equal(t, float64(3), fd["index"])
}

func TestSnapshotRecordsErrorCode(t *testing.T) {
	result, err := Run(loadTestScenario(t, "hybrid_no_selection"))
	require.NoError(t, err)

	snap := NewSnapshot("hybrid_no_selection", result)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "NO_SELECTION", snap.Error.Code)
	assert.Nil(t, snap.Report)
}

func TestRunWithGolden(t *testing.T) {
	fixtures := t.TempDir()

	for _, name := range []string{"tool_divergence", "volatile_noise", "hybrid_tool_response"} {
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)

			// Record the golden file, then check a fresh run against it.
			seed, err := Run(s)
			require.NoError(t, err)
			data, err := NewSnapshot(s.Name, seed).Bytes()
			require.NoError(t, err)
			g := goldie.New(t, goldie.WithFixtureDir(fixtures), goldie.WithNameSuffix(".golden"))
			require.NoError(t, g.Update(t, s.Name, data))

			result, err := RunWithGolden(t, s, fixtures)
			require.NoError(t, err)
			assert.True(t, result.Pass)
		})
	}
}
