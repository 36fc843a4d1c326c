package focus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"focusnudge/internal/clock"
	"focusnudge/internal/config"
	"focusnudge/internal/models"
	"focusnudge/internal/nudge"
	"focusnudge/internal/session"
	"focusnudge/internal/signals"
	"focusnudge/pkg/utils"
)

var ErrNotRunning = errors.New("focus service is not running")

// RecentHistory is how many retired nudges a snapshot lists newest first.
const RecentHistory = 5

// SignalSource supplies the externally measured interruption signals.
type SignalSource interface {
	Signals(now time.Time) signals.Signals
}

// Recorder receives records to persist. Implementations must not block.
type Recorder interface {
	Session(snap session.Snapshot, endedAt time.Time, endState session.State, sig signals.Signals)
	Nudge(n nudge.Nudge)
	Event(at time.Time, kind, app string, payload any)
}

// Snapshot is the read-only state handed to the presentation layer.
type Snapshot struct {
	Session         session.Snapshot `json:"session"`
	Signals         signals.Signals  `json:"signals"`
	Active          []nudge.Nudge    `json:"active_nudges"`
	History         []nudge.Nudge    `json:"history"`
	Recent          []nudge.Nudge    `json:"recent"`
	LastEvaluatedAt time.Time        `json:"last_evaluated_at,omitzero"`
}

type command struct {
	fn   func()
	done chan struct{}
}

// Service owns the session tracker and the nudge engine. Timer callbacks and
// user commands all run on the goroutine executing Run, one at a time.
type Service struct {
	config  *config.Config
	clock   clock.Clock
	source  SignalSource
	rec     Recorder
	tracker *session.Tracker
	engine  *nudge.Engine

	commands chan command
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	lastEval time.Time

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

func NewService(cfg *config.Config, clk clock.Clock, source SignalSource, rec Recorder, engine *nudge.Engine) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if source == nil {
		source = signals.NewBoard(cfg.Signals.SwitchWindow)
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if engine == nil {
		engine = nudge.NewEngine()
	}
	return &Service{
		config:   cfg,
		clock:    clk,
		source:   source,
		rec:      rec,
		tracker:  session.NewTracker(),
		engine:   engine,
		commands: make(chan command),
		stopChan: make(chan struct{}),
		subs:     make(map[chan Snapshot]struct{}),
	}
}

// Run drives the tick and evaluation timers and executes commands until ctx
// is cancelled or Stop is called.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("focus service is already running")
	}
	defer s.running.Store(false)
	defer s.Stop()

	log.Printf("Starting focus service (tick %v, evaluation %v)",
		s.config.Session.TickInterval, s.config.Nudge.EvaluationInterval)

	tick := time.NewTicker(s.config.Session.TickInterval)
	defer tick.Stop()
	eval := time.NewTicker(s.config.Nudge.EvaluationInterval)
	defer eval.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Focus service stopped by context")
			return ctx.Err()

		case <-s.stopChan:
			log.Println("Focus service stopped")
			return nil

		case <-tick.C:
			s.tick()

		case <-eval.C:
			s.evaluate()

		case cmd := <-s.commands:
			cmd.fn()
			close(cmd.done)
		}
	}
}

// Stop ends Run. Pending and later commands fail with ErrNotRunning.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Service) IsRunning() bool {
	return s.running.Load()
}

func (s *Service) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case s.commands <- cmd:
	case <-s.stopChan:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	// once accepted the command always runs to completion
	<-cmd.done
	return nil
}

func (s *Service) tick() {
	if !s.tracker.IsActive() {
		return
	}
	s.tracker.Tick(s.clock.Now())
	s.publish()
}

// evaluate is a no-op unless the session is active, so stopping a session
// needs no timer cancellation.
func (s *Service) evaluate() {
	if !s.tracker.IsActive() {
		return
	}

	now := s.clock.Now()
	sig := s.source.Signals(now)
	res := s.engine.Evaluate(now, s.tracker.ElapsedSeconds(), sig.SwitchCount)
	s.lastEval = now

	for _, n := range res.Emitted {
		log.Printf("Nudge emitted: %s %q (priority: %s)", n.Type, n.Title, n.Priority)
		s.rec.Event(now, models.EventNudgeEmitted, sig.CurrentApp, n)
	}
	for _, n := range res.Evicted {
		log.Printf("Nudge evicted for capacity: %s %q", n.Type, n.Title)
		s.rec.Event(now, models.EventNudgeEvicted, sig.CurrentApp, n)
	}
	s.publish()
}

// StartSession begins a new focus session. Returns false if one is already
// active.
func (s *Service) StartSession(ctx context.Context) (bool, error) {
	var started bool
	err := s.do(ctx, func() {
		now := s.clock.Now()
		started = s.tracker.Start(now)
		if !started {
			return
		}
		log.Println("Focus session started")
		s.rec.Event(now, models.EventSessionStarted, s.source.Signals(now).CurrentApp, nil)
		s.publish()
	})
	return started, err
}

// PauseSession freezes the active session. A paused session ends here as far
// as history is concerned: starting again counts from zero.
func (s *Service) PauseSession(ctx context.Context) (bool, error) {
	var paused bool
	err := s.do(ctx, func() {
		now := s.clock.Now()
		s.tracker.Tick(now)
		paused = s.tracker.Pause()
		if !paused {
			return
		}
		snap := s.tracker.Snapshot()
		sig := s.source.Signals(now)
		log.Printf("Focus session paused after %s", utils.FormatRoundedUnit(snap.ElapsedSeconds))
		s.rec.Session(snap, now, session.StatePaused, sig)
		s.rec.Event(now, models.EventSessionPaused, sig.CurrentApp, snap)
		s.publish()
	})
	return paused, err
}

// StopSession resets the tracker from any state. Active nudges are left in
// place.
func (s *Service) StopSession(ctx context.Context) error {
	return s.do(ctx, func() {
		now := s.clock.Now()
		wasActive := s.tracker.IsActive()
		if wasActive {
			s.tracker.Tick(now)
			snap := s.tracker.Snapshot()
			sig := s.source.Signals(now)
			log.Printf("Focus session stopped after %s", utils.FormatRoundedUnit(snap.ElapsedSeconds))
			s.rec.Session(snap, now, session.StateStopped, sig)
			s.rec.Event(now, models.EventSessionStopped, sig.CurrentApp, snap)
		}
		s.tracker.Stop()
		s.publish()
	})
}

// Dismiss retires an active nudge. Unknown ids report false without error.
func (s *Service) Dismiss(ctx context.Context, id string, action nudge.Action) (bool, error) {
	var found bool
	err := s.do(ctx, func() {
		now := s.clock.Now()
		var n nudge.Nudge
		n, found = s.engine.Dismiss(id, action, now)
		if !found {
			return
		}
		log.Printf("Nudge %s %q %s", n.Type, n.Title, action)
		s.rec.Nudge(n)
		s.rec.Event(now, models.EventNudgeRetired, "", n)
		s.publish()
	})
	return found, err
}

// Tick runs one tick callback immediately.
func (s *Service) Tick(ctx context.Context) error {
	return s.do(ctx, s.tick)
}

// Evaluate runs one evaluation pass immediately.
func (s *Service) Evaluate(ctx context.Context) error {
	return s.do(ctx, s.evaluate)
}

// Snapshot returns a consistent copy of session, signals and nudges.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() {
		snap = s.snapshot()
	})
	return snap, err
}

func (s *Service) snapshot() Snapshot {
	return Snapshot{
		Session:         s.tracker.Snapshot(),
		Signals:         s.source.Signals(s.clock.Now()),
		Active:          s.engine.Active(),
		History:         s.engine.History(),
		Recent:          s.engine.Recent(RecentHistory),
		LastEvaluatedAt: s.lastEval,
	}
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Slow subscribers only see the latest snapshot. Call cancel to unsubscribe.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Service) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshot()
	for ch := range s.subs {
		// drop a stale unread snapshot so the send never blocks
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) Session(session.Snapshot, time.Time, session.State, signals.Signals) {}
func (nopRecorder) Nudge(nudge.Nudge) {}
func (nopRecorder) Event(time.Time, string, string, any) {}
