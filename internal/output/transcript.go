package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

// SessionExport is everything written for one finished conversation.
type SessionExport struct {
	Name      string
	SessionID string
	UserID    int64
	Stage     string
	GoalID    *int64
	Messages  []onboarding.Message
	Plan      *onboarding.Plan
}

func RenderTranscript(s SessionExport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", s.Name)
	if s.SessionID != "" {
		fmt.Fprintf(&b, "- Session: %s\n", s.SessionID)
	}
	fmt.Fprintf(&b, "- User: %d\n", s.UserID)
	fmt.Fprintf(&b, "- Stage: %s\n", s.Stage)
	if s.GoalID != nil {
		fmt.Fprintf(&b, "- Goal: %d\n", *s.GoalID)
	}

	for _, m := range s.Messages {
		fmt.Fprintf(&b, "\n## %s · %s\n\n", m.Sender, m.CreatedAt.Format("15:04:05"))
		b.WriteString(strings.TrimSpace(m.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// PlanJSON pretty-prints a plan, falling back to the raw body when it cannot
// be indented.
func PlanJSON(p onboarding.Plan) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, p.Body, "", "  "); err != nil {
		buf.Reset()
		buf.Write(p.Body)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// WriteSession writes base.md and, when a plan exists, base.plan.json into
// dir. It returns the file names written.
func WriteSession(dir, base string, s SessionExport) (transcript, plan string, err error) {
	transcript = base + ".md"
	if err := AtomicWrite(filepath.Join(dir, transcript), []byte(RenderTranscript(s)), 0o600); err != nil {
		return "", "", fmt.Errorf("writing transcript: %w", err)
	}
	if s.Plan == nil {
		return transcript, "", nil
	}
	plan = base + ".plan.json"
	if err := AtomicWrite(filepath.Join(dir, plan), PlanJSON(*s.Plan), 0o600); err != nil {
		return transcript, "", fmt.Errorf("writing plan: %w", err)
	}
	return transcript, plan, nil
}
