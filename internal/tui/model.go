// Package tui is the terminal chat host for the onboarding conversation. It
// renders controller snapshots and forwards keystrokes; all conversation
// state lives in the controller.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

// Session is the controller surface the chat host drives.
type Session interface {
	Start()
	Submit(content string) bool
	ToggleInputMode() onboarding.InputMode
	Snapshot() onboarding.Snapshot
	Subscribe(fn func(onboarding.Snapshot)) (cancel func())
	Close()
}

type Options struct {
	Markdown bool // render assistant replies with glamour
}

const (
	defaultWidth  = 80
	defaultHeight = 24
	chromeHeight  = 6 // header, blank, status, input, help, blank
)

// Model is the top-level BubbleTea model for `companion chat`.
type Model struct {
	phase   Phase
	session Session
	feed    *feed
	unsub   func()
	opts    Options

	snap     onboarding.Snapshot
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	bar      progress.Model
	help     help.Model
	renderer *glamour.TermRenderer
	cache    map[string]string // assistant message id -> rendered markdown

	width  int
	height int
}

// NewModel subscribes to session; Init starts it.
func NewModel(session Session, opts Options) Model {
	in := textinput.New()
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StylePrimary

	m := Model{
		phase:   PhaseChat,
		session: session,
		feed:    newFeed(),
		opts:    opts,
		input:   in,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:    help.New(),
		cache:   make(map[string]string),
	}
	m.unsub = session.Subscribe(m.feed.push)
	m.snap = session.Snapshot()
	m.resize(defaultWidth, defaultHeight)
	m.applySnapshot()
	return m
}

func (m Model) Phase() Phase                  { return m.phase }
func (m Model) Snapshot() onboarding.Snapshot { return m.snap }

func (m Model) Init() tea.Cmd {
	start := func() tea.Msg {
		m.session.Start()
		return nil
	}
	return tea.Batch(start, textinput.Blink, m.spinner.Tick, m.feed.next())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.phase != PhaseChat {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, Keys.Quit):
			return m.finish(PhaseClosed)
		case key.Matches(msg, Keys.Send):
			// A busy controller drops the submission; the draft stays.
			if m.session.Submit(m.input.Value()) {
				m.input.Reset()
			}
			return m, nil
		case key.Matches(msg, Keys.ToggleMode):
			m.session.ToggleInputMode()
			return m, nil
		case key.Matches(msg, Keys.PageUp, Keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case SnapshotMsg:
		if msg.Snapshot.Seq >= m.snap.Seq {
			m.snap = msg.Snapshot
			m.applySnapshot()
		}
		if m.snap.IsCompleted() {
			return m.finish(PhaseFinished)
		}
		return m, m.feed.next()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// finish leaves the chat. Closing early tears the session down; a finished
// session is left for the caller to read the plan from.
func (m Model) finish(phase Phase) (tea.Model, tea.Cmd) {
	m.phase = phase
	m.unsub()
	m.feed.close()
	if phase == PhaseClosed {
		m.session.Close()
	}
	return m, tea.Quit
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	vpHeight := max(3, height-chromeHeight)
	if m.viewport.Width == 0 {
		m.viewport = viewport.New(width, vpHeight)
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = max(10, width-4)
	m.bar.Width = min(40, max(10, width/3))
	m.help.Width = width

	if m.opts.Markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(20, width-6)),
		)
		if err == nil {
			m.renderer = r
			clear(m.cache)
		}
	}
}

func (m *Model) applySnapshot() {
	if m.snap.InputMode == onboarding.InputVoice {
		m.input.Prompt = "🎙 "
		m.input.Placeholder = "Say it in your own words…"
	} else {
		m.input.Prompt = "› "
		m.input.Placeholder = "Type a message…"
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}
