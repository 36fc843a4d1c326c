package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionRecord is a finished (stopped) or interrupted (paused) focus session.
type SessionRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	StartedAt      time.Time      `gorm:"not null;index" json:"started_at"`
	EndedAt        time.Time      `gorm:"not null;index" json:"ended_at"`
	ElapsedSeconds int64          `gorm:"not null;default:0" json:"elapsed_seconds"`
	EndState       string         `gorm:"not null" json:"end_state"` // "stopped" or "paused"
	SwitchCount    int            `gorm:"not null;default:0" json:"switch_count"`
	CurrentApp     string         `json:"current_app"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// NudgeRecord is a nudge retired by the user.
type NudgeRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	NudgeID        string         `gorm:"not null;uniqueIndex" json:"nudge_id"`
	Type           string         `gorm:"not null;index" json:"type"`
	Title          string         `gorm:"not null" json:"title"`
	Priority       string         `gorm:"not null" json:"priority"`
	ActionRequired bool           `gorm:"not null;default:false" json:"action_required"`
	Action         string         `gorm:"not null" json:"action"` // "accepted" or "dismissed"
	NudgeCreatedAt time.Time      `gorm:"not null" json:"nudge_created_at"`
	RetiredAt      time.Time      `gorm:"not null;index" json:"retired_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// UsageEvent is an append-only log entry describing something that happened
// in the app (session started, nudge emitted, app switch reported, ...).
type UsageEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"ts"`
	Kind      string    `gorm:"not null;index" json:"kind"`
	AppName   string    `gorm:"index" json:"app_name,omitempty"`
	Payload   string    `json:"payload,omitempty"` // JSON object
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	EventSessionStarted = "session_started"
	EventSessionPaused  = "session_paused"
	EventSessionStopped = "session_stopped"
	EventNudgeEmitted   = "nudge_emitted"
	EventNudgeEvicted   = "nudge_evicted"
	EventNudgeRetired   = "nudge_retired"
	EventAppSwitch      = "app_switch"
)
