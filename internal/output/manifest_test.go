package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuitingzhao/companion/internal/onboarding"
	"github.com/cuitingzhao/companion/internal/runner"
)

func sampleResults() []runner.Result {
	goal := int64(1)
	return []runner.Result{
		{
			Name: "piano", UserID: 1, Status: runner.StatusSuccess, Duration: 1500 * time.Millisecond,
			Stage: "done", GoalID: &goal,
			Plan: &onboarding.Plan{GoalID: 1, Body: json.RawMessage(`{"title":"plan"}`)},
			Messages: []onboarding.Message{{Sender: onboarding.SenderUser, Text: "learn piano"}},
		},
		{
			Name: "跑步", UserID: 2, Status: runner.StatusFailed, Duration: time.Second,
			Stage: "clarifying", Error: "Message failed to send. Please try again.", Dropped: 1,
		},
	}
}

func TestBuildManifest(t *testing.T) {
	started := time.Now().Add(-2 * time.Second)
	m := BuildManifest([]string{"a.yaml"}, started, sampleResults(), ManifestConfig{BaseURL: "http://x/api", Timeout: 60, MaxParallel: 2})

	assert.Equal(t, 1, m.Version)
	assert.Equal(t, []string{"a.yaml"}, m.Scripts)
	require.Len(t, m.Results, 2)
	assert.Equal(t, "success", m.Results[0].Status)
	assert.Equal(t, "1.5s", m.Results[0].Duration)
	assert.Equal(t, "01-piano.md", m.Results[0].TranscriptFile)
	assert.Equal(t, "01-piano.plan.json", m.Results[0].PlanFile)
	assert.Equal(t, "02-session.md", m.Results[1].TranscriptFile)
	assert.Empty(t, m.Results[1].PlanFile)
	assert.Equal(t, 1, m.Results[1].Dropped)
}

func TestManifestRoundTripAndResults(t *testing.T) {
	dir := t.TempDir()
	results := sampleResults()
	m := BuildManifest([]string{"a.yaml"}, time.Now(), results, ManifestConfig{})

	require.NoError(t, WriteManifest(dir, m))
	require.NoError(t, WriteResults(dir, results))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, got.Results, 2)
	for _, r := range got.Results {
		_, err := os.Stat(filepath.Join(dir, r.TranscriptFile))
		assert.NoError(t, err, r.TranscriptFile)
		if r.PlanFile != "" {
			_, err := os.Stat(filepath.Join(dir, r.PlanFile))
			assert.NoError(t, err, r.PlanFile)
		}
	}
}

func TestReadManifest_Errors(t *testing.T) {
	t.Run("missing replay.json", func(t *testing.T) {
		_, err := ReadManifest(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "replay.json"), []byte("not json"), 0o600))
		_, err := ReadManifest(dir)
		assert.ErrorContains(t, err, "parsing replay.json")
	})
}

func TestBuildSummary(t *testing.T) {
	m := BuildManifest([]string{"a.yaml", "b.yaml"}, time.Now(), sampleResults(), ManifestConfig{BaseURL: "http://x/api"})
	out := BuildSummary(m)

	assert.Contains(t, out, "# Replay Summary")
	assert.Contains(t, out, "**Scripts:** a.yaml, b.yaml")
	assert.Contains(t, out, "**Sessions:** 2 total, 1 completed, 1 failed\n")
	assert.Contains(t, out, "### ✓ piano")
	assert.Contains(t, out, "### ✗ 跑步")
	assert.Contains(t, out, "- Goal: 1\n")
	assert.Contains(t, out, "- Dropped inputs: 1\n")
	assert.Contains(t, out, "- Error: Message failed to send.")
	assert.Contains(t, out, "- Plan: 01-piano.plan.json\n")

	dir := t.TempDir()
	require.NoError(t, WriteSummary(dir, out))
	data, err := os.ReadFile(filepath.Join(dir, "summary.md"))
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}
