// Package onboarding drives the goal-onboarding conversation: it turns user
// input and the onboarding service's stage responses into a sequence of
// state snapshots for a rendering layer to display.
package onboarding

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultDismissDelay    = 1500 * time.Millisecond
	DefaultContinueToken   = "继续"
	DefaultGreeting        = "Hi! I'm your companion. What goal would you like to work on?"
	DefaultSendFailureText = "Message failed to send. Please try again."
	DefaultPlanFailureText = "Couldn't load your plan. Please try again."
)

// Status is the controller's single admission state. It replaces a set of
// independent busy flags so contradictory combinations cannot exist.
type Status int

const (
	StatusIdle           Status = iota // accepting input
	StatusSending                      // user turn in flight
	StatusAutoContinuing               // automatic confirmation of the split in flight
	StatusFetchingPlan                 // plan fetch or post-success delay
	StatusCompleted                    // plan delivered, OnComplete fired
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSending:
		return "sending"
	case StatusAutoContinuing:
		return "autoContinuing"
	case StatusFetchingPlan:
		return "fetchingPlan"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Options configures a Controller. Empty strings fall back to the Default*
// constants; a zero DismissDelay signals completion immediately.
type Options struct {
	UserID               int64
	CandidateDescription string
	Source               string // pass-through context, only logged
	OnComplete           func()
	DismissDelay         time.Duration
	ContinueToken        string
	Greeting             string
	SendFailureText      string
	PlanFailureText      string
	Logger               *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.DismissDelay < 0 {
		o.DismissDelay = 0
	}
	if o.ContinueToken == "" {
		o.ContinueToken = DefaultContinueToken
	}
	if o.Greeting == "" {
		o.Greeting = DefaultGreeting
	}
	if o.SendFailureText == "" {
		o.SendFailureText = DefaultSendFailureText
	}
	if o.PlanFailureText == "" {
		o.PlanFailureText = DefaultPlanFailureText
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Snapshot is an immutable view of the conversation state. Seq increases
// with every change.
type Snapshot struct {
	Seq                    uint64
	SessionID              string
	Messages               []Message
	Stage                  Stage
	Status                 Status
	GoalID                 *int64
	ErrorText              string
	InputMode              InputMode
	AutoConfirmedSplitting bool
	Plan                   *Plan
}

func (s Snapshot) IsSending() bool {
	return s.Status == StatusSending || s.Status == StatusAutoContinuing
}

func (s Snapshot) IsAutoContinuing() bool { return s.Status == StatusAutoContinuing }
func (s Snapshot) IsFetchingPlan() bool   { return s.Status == StatusFetchingPlan }
func (s Snapshot) IsCompleted() bool      { return s.Status == StatusCompleted }

// Busy reports whether a new submission would be dropped.
func (s Snapshot) Busy() bool { return s.Status != StatusIdle }

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Controller owns the onboarding conversation. All methods are safe for
// concurrent use; network calls run on a worker goroutine and re-enter the
// controller's lock to apply their results.
type Controller struct {
	backend   Backend
	opts      Options
	log       *zap.Logger
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	started       bool
	closed        bool
	seq           uint64
	messages      []Message
	stage         Stage
	status        Status
	goalID        *int64
	errorText     string
	inputMode     InputMode
	autoConfirmed bool
	plan          *Plan

	subMu     sync.Mutex
	subs      []subscriber
	nextSub   int
	published uint64
}

func New(backend Backend, opts Options) *Controller {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	sessionID := uuid.NewString()
	return &Controller{
		backend:   backend,
		opts:      opts,
		sessionID: sessionID,
		log: opts.Logger.With(
			zap.String("session", sessionID),
			zap.Int64("user_id", opts.UserID),
			zap.String("source", opts.Source),
		),
		ctx:       ctx,
		cancel:    cancel,
		stage:     StageClarifying,
		inputMode: InputText,
	}
}

// Start is called when the wizard is first displayed. A candidate
// description is submitted as the opening user turn; otherwise the greeting
// is shown and the controller waits for input.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true

	candidate := strings.TrimSpace(c.opts.CandidateDescription)
	if candidate == "" {
		c.appendLocked(SenderAssistant, c.opts.Greeting)
		snap := c.commitLocked()
		c.mu.Unlock()
		c.publish(snap)
		return
	}

	c.appendLocked(SenderUser, candidate)
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)

	c.Submit(candidate)
}

// Submit sends a user turn. It returns false when the input was empty or
// the controller was busy; busy submissions are dropped, not queued.
func (c *Controller) Submit(content string) bool {
	text := strings.TrimSpace(content)
	if text == "" {
		return false
	}

	c.mu.Lock()
	if c.closed || c.status != StatusIdle {
		status := c.status
		c.mu.Unlock()
		c.log.Debug("submit dropped", zap.Stringer("status", status))
		return false
	}
	if last, ok := c.lastLocked(); !ok || last.Sender != SenderUser || last.Text != text {
		c.appendLocked(SenderUser, text)
	}
	c.status = StatusSending
	c.errorText = ""
	snap := c.commitLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	c.publish(snap)
	go c.converse(text)
	return true
}

// ToggleInputMode flips the pending draft between text and voice input.
func (c *Controller) ToggleInputMode() InputMode {
	c.mu.Lock()
	c.inputMode = c.inputMode.Toggle()
	mode := c.inputMode
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)
	return mode
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Plan returns the fetched plan, or nil before a successful fetch.
func (c *Controller) Plan() *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		return nil
	}
	p := *c.plan
	return &p
}

// Subscribe registers fn to receive every new snapshot, in Seq order.
// fn runs on the goroutine that changed the state and must not block or
// call back into the controller.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Close tears the session down. In-flight requests and the dismiss delay are
// cancelled and any result that still arrives is discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	c.subMu.Lock()
	c.subs = nil
	c.subMu.Unlock()
	c.log.Debug("session closed")
}

// Wait blocks until the current worker, if any, has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

type nextStep int

const (
	stepNone nextStep = iota
	stepAutoContinue
	stepFetchPlan
)

// converse runs one accepted submission to the end: the user turn, at most
// one auto-continuation and the plan fetch, strictly in sequence.
func (c *Controller) converse(text string) {
	defer c.wg.Done()

	msg, auto := text, false
	for {
		c.log.Debug("sending turn", zap.Bool("auto", auto))
		resp, err := c.backend.SendMessage(c.ctx, MessageRequest{UserID: c.opts.UserID, Message: msg})
		step, goalID := c.applyResponse(resp, err, auto)
		switch step {
		case stepAutoContinue:
			msg, auto = c.opts.ContinueToken, true
			continue
		case stepFetchPlan:
			c.fetchPlan(goalID)
		}
		return
	}
}

func (c *Controller) applyResponse(resp MessageResponse, err error, auto bool) (nextStep, int64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return stepNone, 0
	}

	if err != nil {
		c.log.Warn("onboarding message failed", zap.Bool("auto", auto), zap.Error(err))
		c.errorText = c.opts.SendFailureText
		c.status = StatusIdle
		snap := c.commitLocked()
		c.mu.Unlock()
		c.publish(snap)
		return stepNone, 0
	}

	prev := c.stage
	if stage, ok := ParseStageTag(resp.Stage); ok {
		if stage != c.stage {
			c.log.Info("stage changed", zap.Stringer("from", c.stage), zap.Stringer("to", stage))
		}
		c.stage = stage
	} else {
		c.log.Debug("ignoring unknown stage tag", zap.String("tag", resp.Stage))
	}
	if resp.GoalID != nil {
		id := *resp.GoalID
		c.goalID = &id
	}
	if reply := strings.TrimSpace(resp.Reply); reply != "" {
		c.appendLocked(SenderAssistant, reply)
	}

	step, goalID := stepNone, int64(0)
	switch {
	case resp.GoalCompleted:
		id := c.goalID
		if id == nil {
			id = resp.GoalID
		}
		if id == nil {
			c.log.Warn("goal completed without a goal id")
			c.errorText = c.opts.PlanFailureText
			c.status = StatusIdle
			break
		}
		// Status stays busy until fetchPlan takes over.
		step, goalID = stepFetchPlan, *id
	// Auto-continue only on entering splittingGoal, never on a repeat.
	case c.stage == StageSplittingGoal && prev != StageSplittingGoal && !c.autoConfirmed:
		c.autoConfirmed = true
		c.status = StatusAutoContinuing
		c.errorText = ""
		step = stepAutoContinue
	default:
		c.status = StatusIdle
	}

	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)
	return step, goalID
}

// fetchPlan loads the plan for goalID and, after the dismiss delay, signals
// completion. A call while a fetch is already running is dropped.
func (c *Controller) fetchPlan(goalID int64) {
	c.mu.Lock()
	if c.closed || c.status == StatusFetchingPlan || c.status == StatusCompleted {
		c.mu.Unlock()
		c.log.Debug("plan fetch dropped", zap.Int64("goal_id", goalID))
		return
	}
	c.status = StatusFetchingPlan
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)

	plan, err := c.backend.FetchPlan(c.ctx, goalID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.log.Warn("plan fetch failed", zap.Int64("goal_id", goalID), zap.Error(err))
		c.errorText = c.opts.PlanFailureText
		c.status = StatusIdle
		snap = c.commitLocked()
		c.mu.Unlock()
		c.publish(snap)
		return
	}
	if plan.GoalID == 0 {
		plan.GoalID = goalID
	}
	c.plan = &plan
	snap = c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)

	if !c.sleep(c.opts.DismissDelay) {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = StatusCompleted
	snap = c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)

	c.log.Info("onboarding completed", zap.Int64("goal_id", goalID))
	if c.opts.OnComplete != nil {
		c.opts.OnComplete()
	}
}

func (c *Controller) sleep(d time.Duration) bool {
	if d <= 0 {
		return c.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Controller) appendLocked(sender Sender, text string) {
	c.messages = append(c.messages, newMessage(sender, text))
}

func (c *Controller) lastLocked() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

func (c *Controller) commitLocked() Snapshot {
	c.seq++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Seq:                    c.seq,
		SessionID:              c.sessionID,
		Messages:               append([]Message(nil), c.messages...),
		Stage:                  c.stage,
		Status:                 c.status,
		ErrorText:              c.errorText,
		InputMode:              c.inputMode,
		AutoConfirmedSplitting: c.autoConfirmed,
	}
	if c.goalID != nil {
		id := *c.goalID
		s.GoalID = &id
	}
	if c.plan != nil {
		p := *c.plan
		s.Plan = &p
	}
	return s
}

func (c *Controller) publish(s Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if s.Seq <= c.published {
		return
	}
	c.published = s.Seq
	for _, sub := range c.subs {
		sub.fn(s)
	}
}
