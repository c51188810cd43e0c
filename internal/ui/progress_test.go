package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, []string{"piano", "marathon"})
	p.Start()
	p.MarkRunning("piano")
	p.MarkDone("piano", "success", "done", 8)
	p.MarkDone("marathon", "timeout", "clarifying", 2)
	p.MarkRunning("unknown")
	p.Stop()
	p.Stop()

	out := buf.String()
	assert.Contains(t, out, "Replaying 2 session(s)...")
	assert.Contains(t, out, "started: piano")
	assert.Contains(t, out, "success: piano (stage done, 8 messages)")
	assert.Contains(t, out, "timeout: marathon (stage clarifying, 2 messages)")
	assert.NotContains(t, out, "\033[")
}

func TestRenderLine(t *testing.T) {
	tests := []struct {
		status SessionStatus
		want   string
	}{
		{SessionStatus{Status: "pending"}, "waiting"},
		{SessionStatus{Status: "success", Turns: 3}, "done     3 messages"},
		{SessionStatus{Status: "failed", Stage: "settingGoal"}, "failed   at settingGoal"},
		{SessionStatus{Status: "timeout", Stage: "clarifying"}, "timeout  at clarifying"},
		{SessionStatus{Status: "incomplete"}, "incomplete"},
	}
	for _, tt := range tests {
		s := tt.status
		assert.Contains(t, renderLine("s", &s, "◐"), tt.want)
	}
}
