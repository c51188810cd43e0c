package runner

import (
	"time"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

type Status string

const (
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
	StatusCancelled  Status = "cancelled"
	StatusIncomplete Status = "incomplete" // inputs ran out before the plan arrived
)

type Result struct {
	Name      string               `json:"name"`
	SessionID string               `json:"sessionId,omitempty"`
	UserID    int64                `json:"userId"`
	Status    Status               `json:"status"`
	Duration  time.Duration        `json:"duration"`
	Stage     string               `json:"stage"`
	GoalID    *int64               `json:"goalId,omitempty"`
	Error     string               `json:"error,omitempty"`
	Dropped   int                  `json:"dropped,omitempty"` // inputs refused by a busy controller
	Messages  []onboarding.Message `json:"-"`
	Plan      *onboarding.Plan     `json:"-"`
}
