package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

func (m Model) View() string {
	if m.phase != PhaseChat {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		"",
		m.viewport.View(),
		m.statusView(),
		m.input.View(),
		"  "+m.help.ShortHelpView(Keys.ShortHelp()),
	)
}

func (m Model) headerView() string {
	stage := m.snap.Stage
	return fmt.Sprintf("  %s  %s", StyleTitle.Render(stage.Title()), m.bar.ViewAs(stage.Progress()))
}

// statusView is the single line between the log and the input.
func (m Model) statusView() string {
	if m.snap.ErrorText != "" {
		return StyleErrorBanner.Render(m.snap.ErrorText)
	}
	var line string
	switch m.snap.Status {
	case onboarding.StatusSending:
		line = m.spinner.View() + " " + StyleMuted.Render("Thinking…")
	case onboarding.StatusAutoContinuing:
		line = m.spinner.View() + " " + StyleMuted.Render("Confirming your plan…")
	case onboarding.StatusFetchingPlan:
		if m.snap.Plan != nil {
			line = IconSuccess + " " + StyleSuccess.Render("Your plan is ready")
		} else {
			line = m.spinner.View() + " " + StyleMuted.Render("Preparing your plan…")
		}
	}
	if m.snap.InputMode == onboarding.InputVoice {
		line = strings.TrimSpace(line + " " + Badge("voice"))
	}
	return "  " + line
}

func (m Model) renderMessages() string {
	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Sender {
		case onboarding.SenderUser:
			b.WriteString("  " + StyleUserLabel.Render("You") + "\n")
			b.WriteString(StyleUserText.Width(max(10, m.width-4)).Render(msg.Text))
			b.WriteString("\n")
		default:
			b.WriteString("  " + StyleAssistantLabel.Render("Companion") + "\n")
			b.WriteString(m.renderReply(msg))
		}
	}
	return b.String()
}

func (m Model) renderReply(msg onboarding.Message) string {
	if m.renderer == nil {
		return StyleUserText.Width(max(10, m.width-4)).Render(msg.Text) + "\n"
	}
	if out, ok := m.cache[msg.ID]; ok {
		return out
	}
	out, err := m.renderer.Render(msg.Text)
	if err != nil {
		out = "  " + msg.Text + "\n"
	}
	m.cache[msg.ID] = out
	return out
}
