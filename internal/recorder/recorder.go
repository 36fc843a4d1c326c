package recorder

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"focusnudge/internal/models"
	"focusnudge/internal/nudge"
	"focusnudge/internal/session"
	"focusnudge/internal/signals"
)

// Store is the subset of database.Repository the recorder writes to.
type Store interface {
	CreateSession(*models.SessionRecord) error
	CreateNudge(*models.NudgeRecord) error
	CreateUsageEvent(*models.UsageEvent) error
	CreateErrorLog(*models.ErrorLog) error
}

const DefaultBuffer = 256

// Recorder persists records on a background goroutine. Enqueue never blocks:
// when the buffer is full the record is dropped and logged.
type Recorder struct {
	store   Store
	queue   chan any
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func New(store Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		store: store,
		queue: make(chan any, buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		if err := r.write(rec); err != nil {
			r.storeError(err)
		}
	}
}

func (r *Recorder) write(rec any) error {
	switch v := rec.(type) {
	case *models.SessionRecord:
		return r.store.CreateSession(v)
	case *models.NudgeRecord:
		return r.store.CreateNudge(v)
	case *models.UsageEvent:
		return r.store.CreateUsageEvent(v)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
}

func (r *Recorder) storeError(err error) {
	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		Source:    "recorder",
		ErrorMsg:  err.Error(),
	}

	if dbErr := r.store.CreateErrorLog(errorLog); dbErr != nil {
		log.Printf("Failed to store error in database: %v (original error: %v)", dbErr, err)
	} else {
		log.Printf("Error logged to database: %v", err)
	}
}

func (r *Recorder) enqueue(rec any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		log.Printf("Recorder queue full, dropped %T", rec)
	}
}

// Session records a session that ended in endState.
func (r *Recorder) Session(snap session.Snapshot, endedAt time.Time, endState session.State, sig signals.Signals) {
	r.enqueue(&models.SessionRecord{
		StartedAt:      snap.StartedAt,
		EndedAt:        endedAt,
		ElapsedSeconds: snap.ElapsedSeconds,
		EndState:       string(endState),
		SwitchCount:    sig.SwitchCount,
		CurrentApp:     sig.CurrentApp,
	})
}

// Nudge records a retired nudge.
func (r *Recorder) Nudge(n nudge.Nudge) {
	r.enqueue(&models.NudgeRecord{
		NudgeID:        n.ID,
		Type:           string(n.Type),
		Title:          n.Title,
		Priority:       string(n.Priority),
		ActionRequired: n.ActionRequired,
		Action:         string(n.Action),
		NudgeCreatedAt: n.CreatedAt,
		RetiredAt:      n.RetiredAt,
	})
}

// Event records a usage event with an optional JSON payload.
func (r *Recorder) Event(at time.Time, kind, app string, payload any) {
	ev := &models.UsageEvent{Timestamp: at, Kind: kind, AppName: app}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Failed to encode %s payload: %v", kind, err)
		} else {
			ev.Payload = string(data)
		}
	}
	r.enqueue(ev)
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting records and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	<-r.done
}
