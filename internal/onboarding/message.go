package onboarding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry in the append-only conversation log.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

func newMessage(sender Sender, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		CreatedAt: time.Now(),
	}
}

// MessageRequest is one conversational turn sent to the onboarding service.
type MessageRequest struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

// MessageResponse is the service's answer to a turn.
type MessageResponse struct {
	Stage         string `json:"stage"`
	Reply         string `json:"reply"`
	GoalID        *int64 `json:"goalId,omitempty"`
	GoalCompleted bool   `json:"goalCompleted"`
}

// Plan is the generated plan for a goal. Its body is opaque to the controller.
type Plan struct {
	GoalID int64           `json:"goalId"`
	Body   json.RawMessage `json:"body"`
}

// Backend is the onboarding service the controller talks to.
type Backend interface {
	SendMessage(ctx context.Context, req MessageRequest) (MessageResponse, error)
	FetchPlan(ctx context.Context, goalID int64) (Plan, error)
}

type InputMode string

const (
	InputText  InputMode = "text"
	InputVoice InputMode = "voice"
)

// Toggle flips between text and voice input.
func (m InputMode) Toggle() InputMode {
	if m == InputVoice {
		return InputText
	}
	return InputVoice
}
