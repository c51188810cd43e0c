// Package ui prints replay progress to a terminal or a plain log stream.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var spinnerFrames = []string{"◐", "◓", "◑", "◒"}

type SessionStatus struct {
	Status  string // pending, running, success, failed, timeout, cancelled, incomplete
	Started time.Time
	Stage   string
	Turns   int
}

type Progress struct {
	w        io.Writer
	names    []string
	states   map[string]*SessionStatus
	mu       sync.Mutex
	isTTY    bool
	done     chan struct{}
	stopOnce sync.Once
	drawn    bool
}

// NewProgress tracks the named sessions. Animation is used only when w is a
// terminal.
func NewProgress(w io.Writer, names []string) *Progress {
	states := make(map[string]*SessionStatus, len(names))
	for _, n := range names {
		states[n] = &SessionStatus{Status: "pending"}
	}
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Progress{
		w:      w,
		names:  names,
		states: states,
		isTTY:  isTTY,
		done:   make(chan struct{}),
	}
}

func (p *Progress) Start() {
	if !p.isTTY {
		fmt.Fprintf(p.w, "Replaying %d session(s)...\n", len(p.names))
		return
	}
	fmt.Fprintln(p.w)
	go p.animate()
}

func (p *Progress) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	if p.isTTY {
		p.mu.Lock()
		p.redraw("")
		p.mu.Unlock()
	}
}

func (p *Progress) MarkRunning(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.states[name]; ok {
		s.Status = "running"
		s.Started = time.Now()
	}
	if !p.isTTY {
		fmt.Fprintf(p.w, "  started: %s\n", name)
	}
}

func (p *Progress) MarkDone(name, status, stage string, turns int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.states[name]; ok {
		s.Status = status
		s.Stage = stage
		s.Turns = turns
	}
	if !p.isTTY {
		fmt.Fprintf(p.w, "  %s: %s (stage %s, %d messages)\n", status, name, stage, turns)
	}
}

func (p *Progress) animate() {
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	frame := 0
	for {
		select {
		case <-p.done:
			return
		case <-tick.C:
			p.mu.Lock()
			p.redraw(spinnerFrames[frame%len(spinnerFrames)])
			frame++
			p.mu.Unlock()
		}
	}
}

// redraw replaces the previously drawn block. An empty spinner draws the
// final state.
func (p *Progress) redraw(spinner string) {
	if p.drawn {
		for range p.names {
			fmt.Fprint(p.w, "\033[A\033[2K")
		}
	}
	p.drawn = true
	for _, n := range p.names {
		fmt.Fprintln(p.w, renderLine(n, p.states[n], spinner))
	}
}

func renderLine(name string, s *SessionStatus, spinner string) string {
	switch s.Status {
	case "pending":
		return fmt.Sprintf(" · %-24s waiting", name)
	case "running":
		if spinner == "" {
			spinner = "-"
		}
		elapsed := time.Since(s.Started).Round(time.Second)
		return fmt.Sprintf(" %s %-24s running  %s", spinner, name, elapsed)
	case "success":
		return fmt.Sprintf(" + %-24s done     %d messages", name, s.Turns)
	case "failed":
		return fmt.Sprintf(" x %-24s failed   at %s", name, s.Stage)
	case "timeout":
		return fmt.Sprintf(" ! %-24s timeout  at %s", name, s.Stage)
	default:
		return fmt.Sprintf(" - %-24s %s", name, s.Status)
	}
}
