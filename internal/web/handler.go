package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"focusnudge/internal/clock"
	"focusnudge/internal/config"
	"focusnudge/internal/database"
	"focusnudge/internal/focus"
	"focusnudge/internal/models"
	"focusnudge/internal/nudge"
	"focusnudge/internal/reporter"
	"focusnudge/internal/signals"
	"focusnudge/internal/sysinfo"
	"focusnudge/pkg/utils"
)

type Handler struct {
	config   *config.Config
	focus    *focus.Service
	board    *signals.Board
	repo     *database.Repository
	reporter *reporter.Reporter
	rec      focus.Recorder
	clock    clock.Clock

	closeOnce sync.Once
	done      chan struct{}
}

// NewHandler wires the HTTP surface. repo may be nil, in which case the report
// and event endpoints answer 503.
func NewHandler(cfg *config.Config, svc *focus.Service, board *signals.Board, repo *database.Repository, rec focus.Recorder) *Handler {
	h := &Handler{
		config: cfg,
		focus:  svc,
		board:  board,
		repo:   repo,
		rec:    rec,
		clock:  clock.System{},
		done:   make(chan struct{}),
	}
	if repo != nil {
		h.reporter = reporter.New(cfg, repo)
	}
	return h
}

// Close ends open event streams. Server.Shutdown does not cancel in-flight
// requests, so streams must be told to return.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/session", h.handleSession)
	mux.HandleFunc("POST /api/session/start", h.handleSessionStart)
	mux.HandleFunc("POST /api/session/pause", h.handleSessionPause)
	mux.HandleFunc("POST /api/session/stop", h.handleSessionStop)

	mux.HandleFunc("GET /api/nudges", h.handleNudges)
	mux.HandleFunc("POST /api/nudges/{id}/dismiss", h.handleDismiss)

	mux.HandleFunc("GET /api/signals", h.handleSignals)
	mux.HandleFunc("POST /api/signals/switch", h.handleReportSwitch)
	mux.HandleFunc("PUT /api/signals", h.handleSetSignals)

	mux.HandleFunc("GET /api/report", h.handleReport)
	mux.HandleFunc("GET /api/events", h.handleEvents)
	mux.HandleFunc("GET /api/system", h.handleSystem)
	mux.HandleFunc("GET /api/stream", h.handleStream)

	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("GET /{$}", h.handleIndex)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.focus.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		h.respondSessionHTML(w, snap)
		return
	}

	respondJSON(w, snap.Session)
}

func (h *Handler) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	h.sessionCommand(w, r, h.focus.StartSession)
}

func (h *Handler) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	h.sessionCommand(w, r, h.focus.PauseSession)
}

func (h *Handler) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	h.sessionCommand(w, r, func(ctx context.Context) (bool, error) {
		return true, h.focus.StopSession(ctx)
	})
}

// sessionCommand applies a transition and answers with whether it took effect
// plus the resulting session. Invalid transitions are not errors.
func (h *Handler) sessionCommand(w http.ResponseWriter, r *http.Request, cmd func(context.Context) (bool, error)) {
	changed, err := cmd(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	snap, err := h.focus.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, map[string]interface{}{
		"changed": changed,
		"session": snap.Session,
	})
}

func (h *Handler) handleNudges(w http.ResponseWriter, r *http.Request) {
	snap, err := h.focus.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		h.respondNudgesHTML(w, snap.Active, snap.Recent)
		return
	}

	response := map[string]interface{}{
		"active":  nonNil(snap.Active),
		"history": nonNil(snap.History),
		"recent":  snap.Recent,
	}

	// retired nudges from earlier runs outlive the in-memory history
	if h.repo != nil {
		retired, err := h.repo.GetRecentNudges(nudge.MaxHistory)
		if err != nil {
			log.Printf("Failed to fetch retired nudges: %v", err)
		} else {
			response["retired"] = retired
		}
	}

	respondJSON(w, response)
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := nudge.ParseAction(r.URL.Query().Get("action"))

	found, err := h.focus.Dismiss(r.Context(), id, action)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, map[string]interface{}{
		"id":        id,
		"action":    action,
		"dismissed": found,
	})
}

func (h *Handler) handleSignals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.board.Signals(h.clock.Now()))
}

type switchRequest struct {
	App string `json:"app"`
}

func (h *Handler) handleReportSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	app := strings.TrimSpace(req.App)
	if app == "" {
		http.Error(w, "app is required", http.StatusBadRequest)
		return
	}

	now := h.clock.Now()
	switched := h.board.ReportSwitch(now, app)
	if switched && h.rec != nil {
		h.rec.Event(now, models.EventAppSwitch, app, nil)
	}

	respondJSON(w, map[string]interface{}{
		"switched": switched,
		"signals":  h.board.Signals(now),
	})
}

type setSignalsRequest struct {
	SwitchCount *int   `json:"switch_count"`
	CurrentApp  string `json:"current_app"`
}

func (h *Handler) handleSetSignals(w http.ResponseWriter, r *http.Request) {
	var req setSignalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.SwitchCount == nil {
		http.Error(w, "switch_count is required", http.StatusBadRequest)
		return
	}

	now := h.clock.Now()
	h.board.Set(now, *req.SwitchCount, req.CurrentApp)
	respondJSON(w, h.board.Signals(now))
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		http.Error(w, "Reports are unavailable without a database", http.StatusServiceUnavailable)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}
	if _, err := h.reporter.GetPeriod(periodType); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.reporter.GenerateReport(periodType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, report)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "Events are unavailable without a database", http.StatusServiceUnavailable)
		return
	}

	limit := 100 // default
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	events, err := h.repo.GetEventsSince(h.clock.Now().Add(-24*time.Hour), 0)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch events: %v", err), http.StatusInternalServerError)
		return
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}

	respondJSON(w, events)
}

func (h *Handler) handleSystem(w http.ResponseWriter, r *http.Request) {
	info, err := sysinfo.Collect(r.Context())
	if err != nil {
		// partial host data is still useful
		log.Printf("System info: %v", err)
	}
	respondJSON(w, info)
}

// handleStream pushes a snapshot as a server-sent event after every state
// change, starting with the current one.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// the server write timeout does not apply to a long-lived stream
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Printf("Stream: failed to clear write deadline: %v", err)
	}

	updates, cancel := h.focus.Subscribe()
	defer cancel()

	snap, err := h.focus.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		data, err := json.Marshal(snap)
		if err != nil {
			log.Printf("Stream: error encoding snapshot: %v", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case snap = <-updates:
		}
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !h.focus.IsRunning() {
		status = "degraded"
	}
	respondJSON(w, map[string]string{
		"status": status,
		"time":   h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) respondSessionHTML(w http.ResponseWriter, snap focus.Snapshot) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<div class="timer %s">%s</div><div class="state">%s</div>`,
		snap.Session.State, utils.FormatClock(snap.Session.ElapsedSeconds), snap.Session.State)
	fmt.Fprintf(w, `<div class="signals">%d switches, on %s</div>`,
		snap.Signals.SwitchCount, escape(snap.Signals.CurrentApp))
}

func (h *Handler) respondNudgesHTML(w http.ResponseWriter, active, recent []nudge.Nudge) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var b strings.Builder
	if len(active) == 0 {
		b.WriteString(`<div class="loading">No active nudges</div>`)
	}
	for _, n := range active {
		fmt.Fprintf(&b, `
		<div class="nudge %s priority-%s">
			<span class="nudge-title">%s</span>
			<p>%s</p>`, n.Type, n.Priority, escape(n.Title), escape(n.Message))
		if n.ActionRequired {
			fmt.Fprintf(&b, `
			<button hx-post="/api/nudges/%s/dismiss?action=accepted" hx-swap="none">Accept</button>`, n.ID)
		}
		fmt.Fprintf(&b, `
			<button hx-post="/api/nudges/%s/dismiss?action=dismissed" hx-swap="none">Dismiss</button>
		</div>`, n.ID)
	}

	if len(recent) > 0 {
		b.WriteString(`<div class="history"><h3>Recent</h3>`)
		for _, n := range recent {
			fmt.Fprintf(&b, `<div class="history-item">%s <span class="app-time">%s</span></div>`,
				escape(n.Title), n.Action)
		}
		b.WriteString(`</div>`)
	}

	w.Write([]byte(b.String()))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

// respondServiceError maps coordinator errors to status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, focus.ErrNotRunning):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Request cancelled", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func nonNil(ns []nudge.Nudge) []nudge.Nudge {
	if ns == nil {
		return []nudge.Nudge{}
	}
	return ns
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

func escape(s string) string {
	return htmlEscaper.Replace(s)
}
