package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

type turn struct {
	resp onboarding.MessageResponse
	err  error
}

type scriptedBackend struct {
	mu    sync.Mutex
	turns []turn
	gate  chan struct{}
}

func (b *scriptedBackend) SendMessage(ctx context.Context, _ onboarding.MessageRequest) (onboarding.MessageResponse, error) {
	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return onboarding.MessageResponse{}, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.turns) == 0 {
		return onboarding.MessageResponse{}, errors.New("no scripted turn")
	}
	t := b.turns[0]
	b.turns = b.turns[1:]
	return t.resp, t.err
}

func (b *scriptedBackend) FetchPlan(_ context.Context, goalID int64) (onboarding.Plan, error) {
	return onboarding.Plan{GoalID: goalID, Body: json.RawMessage(`{"title":"plan"}`)}, nil
}

func newChat(t *testing.T, b *scriptedBackend, candidate string) (Model, *onboarding.Controller) {
	t.Helper()
	ctrl := onboarding.New(b, onboarding.Options{UserID: 1, CandidateDescription: candidate})
	t.Cleanup(func() {
		ctrl.Close()
		ctrl.Wait()
	})
	return NewModel(ctrl, Options{}), ctrl
}

// pump delivers the newest pending snapshot to the model.
func pump(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	msg := m.feed.next()()
	require.IsType(t, SnapshotMsg{}, msg)
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func reply(stage, text string) turn {
	return turn{resp: onboarding.MessageResponse{Stage: stage, Reply: text}}
}

func TestGreetingOnStart(t *testing.T) {
	m, ctrl := newChat(t, &scriptedBackend{}, "")

	ctrl.Start()
	m, _ = pump(t, m)

	view := m.View()
	assert.Contains(t, view, onboarding.DefaultGreeting)
	assert.Contains(t, view, "Tell me about your goal")
	assert.Equal(t, PhaseChat, m.Phase())
}

func TestCandidateIsFirstTurn(t *testing.T) {
	b := &scriptedBackend{turns: []turn{reply(onboarding.TagGoalSettingExpert, "How many hours a week?")}}
	m, ctrl := newChat(t, b, "learn piano")

	ctrl.Start()
	ctrl.Wait()
	m, _ = pump(t, m)

	view := m.View()
	assert.Contains(t, view, "learn piano")
	assert.Contains(t, view, "How many hours a week?")
	assert.Contains(t, view, "Setting your goal")
	assert.NotContains(t, view, onboarding.DefaultGreeting)
}

func TestEnterSubmitsAndClearsDraft(t *testing.T) {
	b := &scriptedBackend{turns: []turn{reply(onboarding.TagOperator, "Tell me more")}}
	m, ctrl := newChat(t, b, "")
	ctrl.Start()

	m = typeText(m, "run a marathon")
	m, _ = press(m, tea.KeyEnter)
	assert.Empty(t, m.input.Value())

	ctrl.Wait()
	m, _ = pump(t, m)
	assert.Contains(t, m.View(), "run a marathon")
	assert.Contains(t, m.View(), "Tell me more")
}

func TestBusySubmitKeepsDraft(t *testing.T) {
	gate := make(chan struct{})
	b := &scriptedBackend{gate: gate, turns: []turn{reply(onboarding.TagOperator, "ok")}}
	m, ctrl := newChat(t, b, "")
	ctrl.Start()

	m = typeText(m, "first")
	m, _ = press(m, tea.KeyEnter)
	m, _ = pump(t, m)
	assert.Contains(t, m.View(), "Thinking…")

	m = typeText(m, "second")
	m, _ = press(m, tea.KeyEnter)
	assert.Equal(t, "second", m.input.Value())

	close(gate)
	ctrl.Wait()
	m, _ = pump(t, m)
	assert.NotContains(t, m.View(), "Thinking…")
	for _, msg := range m.Snapshot().Messages {
		assert.NotEqual(t, "second", msg.Text)
	}
}

func TestSendFailureBanner(t *testing.T) {
	b := &scriptedBackend{turns: []turn{{err: errors.New("boom")}}}
	m, ctrl := newChat(t, b, "")
	ctrl.Start()

	m = typeText(m, "hello")
	m, _ = press(m, tea.KeyEnter)
	ctrl.Wait()
	m, _ = pump(t, m)

	assert.Contains(t, m.View(), onboarding.DefaultSendFailureText)
	assert.NotContains(t, m.View(), "boom")
}

func TestToggleInputMode(t *testing.T) {
	m, ctrl := newChat(t, &scriptedBackend{}, "")
	ctrl.Start()

	m, _ = press(m, tea.KeyCtrlT)
	m, _ = pump(t, m)
	assert.Equal(t, onboarding.InputVoice, m.Snapshot().InputMode)
	assert.Contains(t, m.View(), "(voice)")
	assert.Equal(t, "🎙 ", m.input.Prompt)

	m, _ = press(m, tea.KeyCtrlT)
	m, _ = pump(t, m)
	assert.Equal(t, onboarding.InputText, m.Snapshot().InputMode)
	assert.NotContains(t, m.View(), "(voice)")
}

func TestQuitClosesSession(t *testing.T) {
	m, ctrl := newChat(t, &scriptedBackend{}, "")
	ctrl.Start()

	m, cmd := press(m, tea.KeyEsc)
	assert.Equal(t, PhaseClosed, m.Phase())
	require.NotNil(t, cmd)
	assert.False(t, ctrl.Submit("anything"))
	assert.Nil(t, m.feed.next()())
	assert.Empty(t, m.View())
}

func TestCompletionFinishesChat(t *testing.T) {
	goal := int64(9)
	b := &scriptedBackend{turns: []turn{
		{resp: onboarding.MessageResponse{Stage: onboarding.TagDone, Reply: "All set", GoalID: &goal, GoalCompleted: true}},
	}}
	m, ctrl := newChat(t, b, "learn piano")

	ctrl.Start()
	ctrl.Wait()
	m, cmd := pump(t, m)

	assert.Equal(t, PhaseFinished, m.Phase())
	require.NotNil(t, cmd)
	require.NotNil(t, m.Snapshot().Plan)
	assert.Equal(t, goal, m.Snapshot().Plan.GoalID)

	// A finished chat ignores further input.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, PhaseFinished, next.(Model).Phase())
}

func TestWindowResize(t *testing.T) {
	m, ctrl := newChat(t, &scriptedBackend{}, "")
	ctrl.Start()
	m, _ = pump(t, m)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	assert.Equal(t, 120, m.viewport.Width)
	assert.Equal(t, 40-chromeHeight, m.viewport.Height)
	assert.Contains(t, m.View(), onboarding.DefaultGreeting)
}

func TestFeedKeepsNewest(t *testing.T) {
	f := newFeed()
	f.push(onboarding.Snapshot{Seq: 1})
	f.push(onboarding.Snapshot{Seq: 3})
	f.push(onboarding.Snapshot{Seq: 2})

	msg := f.next()()
	assert.Equal(t, uint64(3), msg.(SnapshotMsg).Snapshot.Seq)

	f.close()
	f.close()
	assert.Nil(t, f.next()())
}

func TestTableRender(t *testing.T) {
	out := Table{
		Headers: []string{"SESSION", "STATUS"},
		Rows:    [][]string{{"piano", "success"}, {"marathon-long-name", "timeout"}},
	}.Render()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "piano")
	assert.Equal(t, strings.Index(lines[1], "success"), strings.Index(lines[2], "timeout"))
	assert.Empty(t, Table{}.Render())
}
