package signals

import (
	"strings"
	"sync"
	"time"
)

// DefaultWindow is the trailing window app switches are counted over.
const DefaultWindow = 10 * time.Minute

// Signals is the interruption state handed to the nudge evaluation.
type Signals struct {
	SwitchCount int       `json:"switch_count"`
	CurrentApp  string    `json:"current_app"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Board collects foreground-app reports from an external meter and derives
// the switch count over a trailing window. Safe for concurrent use.
type Board struct {
	mu       sync.Mutex
	window   time.Duration
	switches []time.Time
	current  string
	updated  time.Time
	override *int
}

func NewBoard(window time.Duration) *Board {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Board{window: window}
}

// ReportSwitch records that app became the foreground application. Reports
// for the app that is already current are ignored. Returns whether a switch
// was counted.
func (b *Board) ReportSwitch(now time.Time, app string) bool {
	app = strings.TrimSpace(app)
	if app == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.updated = now
	if strings.EqualFold(app, b.current) {
		return false
	}
	first := b.current == ""
	b.current = app
	// the first report only establishes the current app
	if first {
		return false
	}
	b.switches = append(b.switches, now)
	b.override = nil
	b.prune(now)
	return true
}

// Set overrides the measured switch count, for meters that count switches
// themselves. The override holds until the next reported switch.
func (b *Board) Set(now time.Time, switchCount int, app string) {
	if switchCount < 0 {
		switchCount = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	count := switchCount
	b.override = &count
	if app = strings.TrimSpace(app); app != "" {
		b.current = app
	}
	b.updated = now
}

// Signals returns the switch count within the window ending at now and the
// current foreground app.
func (b *Board) Signals(now time.Time) Signals {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(now)
	count := len(b.switches)
	if b.override != nil {
		count = *b.override
	}
	return Signals{
		SwitchCount: count,
		CurrentApp:  b.current,
		UpdatedAt:   b.updated,
	}
}

func (b *Board) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.switches) && !b.switches[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.switches = append([]time.Time(nil), b.switches[i:]...)
	}
}
