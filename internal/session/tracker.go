package session

import (
	"time"
)

// State is the lifecycle state of a focus session.
type State string

const (
	StateIdle    State = "idle"
	StateActive  State = "active"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// Snapshot is a read-only copy of the session for presentation.
type Snapshot struct {
	State          State     `json:"state"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// IsActive reports whether the snapshot was taken while the session was running.
func (s Snapshot) IsActive() bool {
	return s.State == StateActive
}

// Tracker owns the lifecycle of a single focus session. It is not safe for
// concurrent use; callers serialize access (see focus.Service).
type Tracker struct {
	state     State
	startedAt time.Time
	elapsed   int64
}

// NewTracker returns a tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{state: StateIdle}
}

// Start begins a new session at now. A paused session is not resumed: the
// new session counts from zero. Returns false if a session is already active.
func (t *Tracker) Start(now time.Time) bool {
	if t.state == StateActive {
		return false
	}
	t.state = StateActive
	t.startedAt = now
	t.elapsed = 0
	return true
}

// Pause freezes elapsed time. Returns false unless the session was active.
func (t *Tracker) Pause() bool {
	if t.state != StateActive {
		return false
	}
	t.state = StatePaused
	return true
}

// Stop resets the tracker to idle from any state.
func (t *Tracker) Stop() {
	t.state = StateIdle
	t.startedAt = time.Time{}
	t.elapsed = 0
}

// Tick recomputes elapsed seconds from the wall clock while active. Elapsed
// time is never accumulated per tick, so missed or late ticks cause no drift.
func (t *Tracker) Tick(now time.Time) {
	if t.state != StateActive {
		return
	}
	secs := int64(now.Sub(t.startedAt) / time.Second)
	// a clock stepping backwards must not shrink the counter
	if secs > t.elapsed {
		t.elapsed = secs
	}
}

func (t *Tracker) State() State {
	return t.state
}

func (t *Tracker) IsActive() bool {
	return t.state == StateActive
}

// ElapsedSeconds returns the last computed elapsed time.
func (t *Tracker) ElapsedSeconds() int64 {
	return t.elapsed
}

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		State:          t.state,
		StartedAt:      t.startedAt,
		ElapsedSeconds: t.elapsed,
	}
}
