// Package stub serves a scripted goal-onboarding service for local
// development and tests.
package stub

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

// Turn is one scripted answer. A non-zero Status makes the turn fail with
// that HTTP status instead of answering.
type Turn struct {
	Stage         string `yaml:"stage"`
	Reply         string `yaml:"reply"`
	GoalID        *int64 `yaml:"goalId,omitempty"`
	GoalCompleted bool   `yaml:"goalCompleted,omitempty"`
	Status        int    `yaml:"status,omitempty"`
}

func (t Turn) response() onboarding.MessageResponse {
	return onboarding.MessageResponse{
		Stage:         t.Stage,
		Reply:         t.Reply,
		GoalID:        t.GoalID,
		GoalCompleted: t.GoalCompleted,
	}
}

// Script is the conversation every user walks through, plus the plans the
// service hands out per goal id.
type Script struct {
	Turns []Turn           `yaml:"turns"`
	Plans map[int64]any    `yaml:"plans"`
	Users map[int64][]Turn `yaml:"users,omitempty"` // per-user override of Turns
	Loop  bool             `yaml:"loop,omitempty"`  // repeat the last turn once exhausted
}

func (s *Script) turnsFor(userID int64) []Turn {
	if t, ok := s.Users[userID]; ok {
		return t
	}
	return s.Turns
}

func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if len(s.Turns) == 0 && len(s.Users) == 0 {
		return nil, fmt.Errorf("script has no turns")
	}
	if err := checkTurns("turn", s.Turns); err != nil {
		return nil, err
	}
	for userID, turns := range s.Users {
		if err := checkTurns(fmt.Sprintf("user %d turn", userID), turns); err != nil {
			return nil, err
		}
	}
	if s.Plans == nil {
		s.Plans = make(map[int64]any)
	}
	return &s, nil
}

func checkTurns(label string, turns []Turn) error {
	for i, t := range turns {
		if t.Status == 0 && t.Stage == "" {
			return fmt.Errorf("%s %d: stage is required", label, i+1)
		}
	}
	return nil
}

func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DefaultScript walks the full wizard: clarification, goal setting, the
// split (auto-confirmed by the client) and completion with a plan.
func DefaultScript() *Script {
	goalID := int64(1)
	return &Script{
		Turns: []Turn{
			{Stage: onboarding.TagOperator, Reply: "Nice! How much time can you give it each week?"},
			{Stage: onboarding.TagGoalSettingExpert, Reply: "Here's the goal I wrote down for you. Does it look right?", GoalID: &goalID},
			{Stage: onboarding.TagGoalSplitting, Reply: "I've split it into weekly milestones."},
			{Stage: onboarding.TagDone, Reply: "Your plan is ready!", GoalID: &goalID, GoalCompleted: true},
		},
		Plans: map[int64]any{
			goalID: map[string]any{
				"goalId": goalID,
				"title":  "Weekly practice plan",
				"milestones": []any{
					map[string]any{"week": 1, "task": "Set up a routine"},
					map[string]any{"week": 2, "task": "Track daily progress"},
				},
			},
		},
	}
}
