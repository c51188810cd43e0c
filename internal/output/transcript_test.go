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
)

func sampleExport(withPlan bool) SessionExport {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	goal := int64(4)
	s := SessionExport{
		Name:      "piano",
		SessionID: "abc",
		UserID:    7,
		Stage:     "done",
		GoalID:    &goal,
		Messages: []onboarding.Message{
			{Sender: onboarding.SenderUser, Text: "learn piano", CreatedAt: at},
			{Sender: onboarding.SenderAssistant, Text: "How much time per week?\n", CreatedAt: at.Add(time.Second)},
		},
	}
	if withPlan {
		s.Plan = &onboarding.Plan{GoalID: goal, Body: json.RawMessage(`{"title":"Weekly practice plan"}`)}
	}
	return s
}

func TestRenderTranscript(t *testing.T) {
	out := RenderTranscript(sampleExport(false))

	assert.Contains(t, out, "# piano\n")
	assert.Contains(t, out, "- Session: abc\n")
	assert.Contains(t, out, "- Goal: 4\n")
	assert.Contains(t, out, "## user · 09:30:00\n\nlearn piano\n")
	assert.Contains(t, out, "## assistant · 09:30:01\n\nHow much time per week?\n")
}

func TestPlanJSON(t *testing.T) {
	out := PlanJSON(onboarding.Plan{Body: json.RawMessage(`{"a":1}`)})
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(out))

	raw := PlanJSON(onboarding.Plan{Body: json.RawMessage(`not json`)})
	assert.Equal(t, "not json\n", string(raw))
}

func TestWriteSession(t *testing.T) {
	dir := t.TempDir()

	transcript, plan, err := WriteSession(dir, "01-piano", sampleExport(true))
	require.NoError(t, err)
	assert.Equal(t, "01-piano.md", transcript)
	assert.Equal(t, "01-piano.plan.json", plan)

	data, err := os.ReadFile(filepath.Join(dir, plan))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Weekly practice plan"}`, string(data))

	_, plan, err = WriteSession(dir, "02-none", sampleExport(false))
	require.NoError(t, err)
	assert.Empty(t, plan)
	_, err = os.Stat(filepath.Join(dir, "02-none.plan.json"))
	assert.True(t, os.IsNotExist(err))
}
