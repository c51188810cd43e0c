package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

// Phase is where the chat host is in its lifecycle.
type Phase int

const (
	PhaseChat     Phase = iota // conversation running
	PhaseFinished              // plan delivered, host dismissed
	PhaseClosed                // user closed the wizard early
)

// SnapshotMsg carries the newest controller state into Update.
type SnapshotMsg struct {
	Snapshot onboarding.Snapshot
}

// feed hands controller snapshots to the program. Only the newest one is
// kept: push never blocks, so it is safe to call from a controller
// subscription while Update is itself calling into the controller.
type feed struct {
	mu     sync.Mutex
	latest onboarding.Snapshot
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newFeed() *feed {
	return &feed{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (f *feed) push(s onboarding.Snapshot) {
	f.mu.Lock()
	if s.Seq > f.latest.Seq {
		f.latest = s
	}
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *feed) close() {
	f.once.Do(func() { close(f.done) })
}

// next waits for the feed to change and delivers the newest snapshot.
func (f *feed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.done:
			return nil
		default:
		}
		select {
		case <-f.notify:
		case <-f.done:
			return nil
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		return SnapshotMsg{Snapshot: f.latest}
	}
}
