package nudge

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxActive  = 3
	MaxHistory = 10
)

// Result describes what one evaluation pass changed.
type Result struct {
	Emitted []Nudge
	// Evicted holds active nudges dropped for capacity. They are not moved
	// into history.
	Evicted []Nudge
}

// Engine evaluates the rule table and owns the active set and the history.
// It performs no I/O and is not safe for concurrent use.
type Engine struct {
	rules   []Rule
	active  []Nudge
	history []Nudge
	newID   func() string
}

type Option func(*Engine)

// WithRules replaces the rule table.
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithIDFunc replaces the id generator.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules: DefaultRules,
		newID: newTimeOrderedID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newTimeOrderedID returns a UUIDv7, which sorts by creation time.
func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Evaluate runs every rule against the given duration and switch count.
// All matching rules fire in table order.
func (e *Engine) Evaluate(now time.Time, durationSeconds int64, switchCount int) Result {
	in := Input{DurationSeconds: durationSeconds, SwitchCount: switchCount}

	var res Result
	for _, rule := range e.rules {
		if !rule.Condition(in) {
			continue
		}
		n := rule.Template
		n.ID = e.newID()
		n.CreatedAt = now
		n.IsActive = true

		inserted, evicted := e.insert(n)
		if inserted {
			res.Emitted = append(res.Emitted, n)
		}
		res.Evicted = append(res.Evicted, evicted...)
	}
	return res
}

func (e *Engine) insert(n Nudge) (bool, []Nudge) {
	for _, existing := range e.active {
		if existing.sameKind(n) {
			return false, nil
		}
	}

	e.active = append(e.active, n)

	var evicted []Nudge
	for len(e.active) > MaxActive {
		evicted = append(evicted, e.active[0])
		e.active = e.active[1:]
	}
	return true, evicted
}

// Dismiss retires the active nudge with the given id into history. Unknown
// ids, including ones already dismissed or evicted, are a no-op.
func (e *Engine) Dismiss(id string, action Action, now time.Time) (Nudge, bool) {
	idx := -1
	for i, n := range e.active {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Nudge{}, false
	}

	n := e.active[idx]
	e.active = append(e.active[:idx:idx], e.active[idx+1:]...)

	n.IsActive = false
	n.Action = action
	n.RetiredAt = now

	e.history = append(e.history, n)
	if over := len(e.history) - MaxHistory; over > 0 {
		e.history = append([]Nudge(nil), e.history[over:]...)
	}
	return n, true
}

// Active returns a copy of the active set, oldest first.
func (e *Engine) Active() []Nudge {
	return append([]Nudge(nil), e.active...)
}

// History returns a copy of the history, most recently retired last.
func (e *Engine) History() []Nudge {
	return append([]Nudge(nil), e.history...)
}

// Recent returns up to n history entries, most recent first.
func (e *Engine) Recent(n int) []Nudge {
	if n > len(e.history) {
		n = len(e.history)
	}
	out := make([]Nudge, 0, n)
	for i := len(e.history) - 1; i >= len(e.history)-n; i-- {
		out = append(out, e.history[i])
	}
	return out
}
