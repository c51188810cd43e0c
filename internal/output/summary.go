package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BuildSummary renders a markdown overview of a replay batch.
func BuildSummary(m *Manifest) string {
	var b strings.Builder

	b.WriteString("# Replay Summary\n\n")
	fmt.Fprintf(&b, "**Scripts:** %s\n", strings.Join(m.Scripts, ", "))
	fmt.Fprintf(&b, "**Backend:** %s\n", m.Config.BaseURL)
	fmt.Fprintf(&b, "**Duration:** %s\n", m.Duration)

	counts := map[string]int{}
	for _, r := range m.Results {
		counts[r.Status]++
	}
	fmt.Fprintf(&b, "**Sessions:** %d total, %d completed", len(m.Results), counts["success"])
	for _, status := range []string{"incomplete", "failed", "timeout", "cancelled"} {
		if counts[status] > 0 {
			fmt.Fprintf(&b, ", %d %s", counts[status], status)
		}
	}
	b.WriteString("\n\n## Sessions\n")

	for _, r := range m.Results {
		fmt.Fprintf(&b, "\n### %s %s\n", statusIcon(r.Status), r.Name)
		fmt.Fprintf(&b, "- Status: %s\n", r.Status)
		fmt.Fprintf(&b, "- Duration: %s\n", r.Duration)
		fmt.Fprintf(&b, "- Stage: %s\n", r.Stage)
		if r.GoalID != nil {
			fmt.Fprintf(&b, "- Goal: %d\n", *r.GoalID)
		}
		if r.Dropped > 0 {
			fmt.Fprintf(&b, "- Dropped inputs: %d\n", r.Dropped)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "- Error: %s\n", r.Error)
		}
		fmt.Fprintf(&b, "- Transcript: %s\n", r.TranscriptFile)
		if r.PlanFile != "" {
			fmt.Fprintf(&b, "- Plan: %s\n", r.PlanFile)
		}
	}
	return b.String()
}

func WriteSummary(dir, content string) error {
	return AtomicWrite(filepath.Join(dir, "summary.md"), []byte(content), 0o600)
}

func statusIcon(status string) string {
	switch status {
	case "success":
		return "✓"
	case "timeout":
		return "⏱"
	case "incomplete":
		return "…"
	default:
		return "✗"
	}
}
