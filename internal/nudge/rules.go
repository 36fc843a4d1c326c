package nudge

// Input is the state a rule is evaluated against.
type Input struct {
	DurationSeconds int64
	SwitchCount     int
}

// Rule emits a nudge template when its condition holds.
type Rule struct {
	Name      string
	Condition func(Input) bool
	Template  Nudge
}

const (
	HighSwitchThreshold   = 8
	SustainedFocusSeconds = 1500
	LowSwitchThreshold    = 3
	LongSessionSeconds    = 2700
)

// DefaultRules is the fixed rule table, in evaluation order.
var DefaultRules = []Rule{
	{
		Name: "high-switch-rate",
		Condition: func(in Input) bool {
			return in.SwitchCount > HighSwitchThreshold
		},
		Template: Nudge{
			Type:           TypeWarning,
			Title:          "High Switch Rate Detected",
			Message:        "You've switched apps 8 times in the last 10 minutes. Consider taking a short break or refocusing.",
			Priority:       PriorityMedium,
			ActionRequired: true,
		},
	},
	{
		Name: "sustained-focus",
		Condition: func(in Input) bool {
			return in.DurationSeconds > SustainedFocusSeconds && in.SwitchCount < LowSwitchThreshold
		},
		Template: Nudge{
			Type:     TypeEncouragement,
			Title:    "Great Focus!",
			Message:  "You've been focused for 25 minutes with minimal distractions. Keep it up!",
			Priority: PriorityLow,
		},
	},
	{
		Name: "long-session",
		Condition: func(in Input) bool {
			return in.DurationSeconds > LongSessionSeconds
		},
		Template: Nudge{
			Type:           TypeBreak,
			Title:          "Time for a Break",
			Message:        "You've been working for 45 minutes. Consider taking a 5-10 minute break.",
			Priority:       PriorityHigh,
			ActionRequired: true,
		},
	},
}
