package nudge

import (
	"time"
)

// Type classifies a nudge.
type Type string

const (
	TypeEncouragement Type = "encouragement"
	TypeWarning       Type = "warning"
	TypeBreak         Type = "break"
	TypeFocusBoost    Type = "focus-boost"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Action is the user's response when retiring a nudge.
type Action string

const (
	ActionAccepted  Action = "accepted"
	ActionDismissed Action = "dismissed"
)

// ParseAction maps user input to an Action. Anything other than "accepted"
// is treated as a plain dismissal.
func ParseAction(s string) Action {
	if Action(s) == ActionAccepted {
		return ActionAccepted
	}
	return ActionDismissed
}

// Nudge is a rule-triggered notification shown to the user.
type Nudge struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Priority       Priority  `json:"priority"`
	ActionRequired bool      `json:"action_required"`
	CreatedAt      time.Time `json:"timestamp_created"`
	IsActive       bool      `json:"is_active"`

	// Set once the nudge is retired into history.
	Action    Action    `json:"action,omitempty"`
	RetiredAt time.Time `json:"retired_at,omitzero"`
}

func (n Nudge) sameKind(o Nudge) bool {
	return n.Type == o.Type && n.Title == o.Title
}
