package models

import "time"

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

// NudgeSummary aggregates retired nudges of one type.
type NudgeSummary struct {
	Type      string `json:"type"`
	Total     int64  `json:"total"`
	Accepted  int64  `json:"accepted"`
	Dismissed int64  `json:"dismissed"`
}

// AppSwitchSummary counts how often an app was switched to.
type AppSwitchSummary struct {
	AppName    string  `json:"app_name"`
	Switches   int64   `json:"switches"`
	Percentage float64 `json:"percentage,omitempty"`
}

type Report struct {
	Period          ReportPeriod       `json:"period"`
	SessionCount    int64              `json:"session_count"`
	TotalSeconds    int64              `json:"total_seconds"`
	TotalMinutes    float64            `json:"total_minutes"`
	TotalHours      float64            `json:"total_hours"`
	LongestSeconds  int64              `json:"longest_seconds"`
	AverageSeconds  float64            `json:"average_seconds"`
	Nudges          []NudgeSummary     `json:"nudges"`
	NudgesAccepted  int64              `json:"nudges_accepted"`
	NudgesDismissed int64              `json:"nudges_dismissed"`
	Apps            []AppSwitchSummary `json:"apps"`
	TotalSwitches   int64              `json:"total_switches"`
	SwitchesPerHour float64            `json:"switches_per_hour"`
	FocusScore      int                `json:"focus_score"`
	GeneratedAt     time.Time          `json:"generated_at"`
}
