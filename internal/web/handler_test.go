package web

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"focusnudge/internal/clock"
	"focusnudge/internal/config"
	"focusnudge/internal/database"
	"focusnudge/internal/focus"
	"focusnudge/internal/models"
	"focusnudge/internal/nudge"
	"focusnudge/internal/session"
	"focusnudge/internal/signals"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
	apps   []string
}

func (l *eventLog) Session(session.Snapshot, time.Time, session.State, signals.Signals) {}
func (l *eventLog) Nudge(nudge.Nudge) {}
func (l *eventLog) Event(_ time.Time, kind, app string, _ any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, kind)
	l.apps = append(l.apps, app)
}

type testEnv struct {
	cfg   *config.Config
	srv   *httptest.Server
	svc   *focus.Service
	board *signals.Board
	repo  *database.Repository
	log   *eventLog
}

func newTestEnv(t *testing.T, withRepo bool) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Session.TickInterval = time.Hour
	cfg.Nudge.EvaluationInterval = time.Hour
	cfg.Report.TimeZone = "UTC"

	var repo *database.Repository
	if withRepo {
		db, err := database.Connect(filepath.Join(t.TempDir(), "web.db"))
		if err != nil {
			t.Fatalf("Connect() error: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := db.Initialize(); err != nil {
			t.Fatalf("Initialize() error: %v", err)
		}
		repo = database.NewRepository(db)
	}

	board := signals.NewBoard(cfg.Signals.SwitchWindow)
	events := &eventLog{}
	svc := focus.NewService(cfg, nil, board, events, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	h := NewHandler(cfg, svc, board, repo, events)
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &testEnv{cfg: cfg, srv: srv, svc: svc, board: board, repo: repo, log: events}
}

func (e *testEnv) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type commandResponse struct {
	Changed bool             `json:"changed"`
	Session session.Snapshot `json:"session"`
}

func TestSessionCommands(t *testing.T) {
	env := newTestEnv(t, false)

	var snap session.Snapshot
	if code := env.do(t, http.MethodGet, "/api/session", "", &snap); code != http.StatusOK {
		t.Fatalf("GET /api/session = %d", code)
	}
	if snap.State != session.StateIdle {
		t.Errorf("initial state = %s", snap.State)
	}

	steps := []struct {
		path        string
		wantChanged bool
		wantState   session.State
	}{
		{"/api/session/start", true, session.StateActive},
		{"/api/session/start", false, session.StateActive},
		{"/api/session/pause", true, session.StatePaused},
		{"/api/session/pause", false, session.StatePaused},
		{"/api/session/start", true, session.StateActive},
		{"/api/session/stop", true, session.StateIdle},
	}
	for _, step := range steps {
		var resp commandResponse
		if code := env.do(t, http.MethodPost, step.path, "", &resp); code != http.StatusOK {
			t.Fatalf("POST %s = %d", step.path, code)
		}
		if resp.Changed != step.wantChanged || resp.Session.State != step.wantState {
			t.Errorf("POST %s = changed %v state %s, want %v %s",
				step.path, resp.Changed, resp.Session.State, step.wantChanged, step.wantState)
		}
	}

	if code := env.do(t, http.MethodGet, "/api/session/start", "", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/session/start = %d, want 405", code)
	}
}

func TestNudgesAndDismiss(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	env.board.Set(time.Now(), 12, "slack")
	env.svc.StartSession(ctx)
	env.svc.Evaluate(ctx)

	var nudges struct {
		Active  []nudge.Nudge         `json:"active"`
		History []nudge.Nudge         `json:"history"`
		Recent  []nudge.Nudge         `json:"recent"`
		Retired []*models.NudgeRecord `json:"retired"`
	}
	env.do(t, http.MethodGet, "/api/nudges", "", &nudges)
	if len(nudges.Active) != 1 || nudges.Active[0].Type != nudge.TypeWarning {
		t.Fatalf("active = %+v", nudges.Active)
	}
	if nudges.Retired != nil {
		t.Errorf("retired without database = %+v", nudges.Retired)
	}
	if nudges.History == nil || len(nudges.History) != 0 {
		t.Errorf("history = %v, want empty array", nudges.History)
	}

	id := nudges.Active[0].ID
	var resp struct {
		Dismissed bool   `json:"dismissed"`
		Action    string `json:"action"`
	}
	env.do(t, http.MethodPost, "/api/nudges/"+id+"/dismiss?action=accepted", "", &resp)
	if !resp.Dismissed || resp.Action != "accepted" {
		t.Errorf("dismiss = %+v", resp)
	}

	// unknown or repeated ids are a no-op
	env.do(t, http.MethodPost, "/api/nudges/"+id+"/dismiss", "", &resp)
	if resp.Dismissed {
		t.Error("second dismiss reported true")
	}

	env.do(t, http.MethodGet, "/api/nudges", "", &nudges)
	if len(nudges.Active) != 0 || len(nudges.Recent) != 1 || nudges.Recent[0].ID != id {
		t.Errorf("after dismiss active=%d recent=%+v", len(nudges.Active), nudges.Recent)
	}
}

func TestNudgesIncludeRetired(t *testing.T) {
	env := newTestEnv(t, true)
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"older", "newer"} {
		if err := env.repo.CreateNudge(&models.NudgeRecord{
			NudgeID:        id,
			Type:           "break",
			Title:          "Time for a break",
			Priority:       "high",
			Action:         "dismissed",
			NudgeCreatedAt: at,
			RetiredAt:      at.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("CreateNudge() error: %v", err)
		}
	}

	var nudges struct {
		Active  []nudge.Nudge         `json:"active"`
		Retired []*models.NudgeRecord `json:"retired"`
	}
	if code := env.do(t, http.MethodGet, "/api/nudges", "", &nudges); code != http.StatusOK {
		t.Fatalf("GET /api/nudges = %d", code)
	}
	if len(nudges.Active) != 0 {
		t.Errorf("active = %+v", nudges.Active)
	}
	if len(nudges.Retired) != 2 || nudges.Retired[0].NudgeID != "newer" {
		t.Errorf("retired = %+v", nudges.Retired)
	}
}

func TestSignals(t *testing.T) {
	env := newTestEnv(t, false)

	var resp struct {
		Switched bool            `json:"switched"`
		Signals  signals.Signals `json:"signals"`
	}
	for _, app := range []string{"code", "slack", "Slack", "code"} {
		env.do(t, http.MethodPost, "/api/signals/switch", `{"app":"`+app+`"}`, &resp)
	}
	if resp.Signals.SwitchCount != 2 || resp.Signals.CurrentApp != "code" {
		t.Errorf("signals = %+v", resp.Signals)
	}

	env.log.mu.Lock()
	switches := len(env.log.events)
	env.log.mu.Unlock()
	if switches != 2 {
		t.Errorf("app switch events = %d, want 2", switches)
	}

	if code := env.do(t, http.MethodPost, "/api/signals/switch", `{"app":" "}`, nil); code != http.StatusBadRequest {
		t.Errorf("empty app = %d, want 400", code)
	}
	if code := env.do(t, http.MethodPost, "/api/signals/switch", `not json`, nil); code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", code)
	}

	var sig signals.Signals
	if code := env.do(t, http.MethodPut, "/api/signals", `{"switch_count":7,"current_app":"mail"}`, &sig); code != http.StatusOK {
		t.Fatalf("PUT /api/signals = %d", code)
	}
	if sig.SwitchCount != 7 || sig.CurrentApp != "mail" {
		t.Errorf("override = %+v", sig)
	}
	if code := env.do(t, http.MethodPut, "/api/signals", `{"current_app":"mail"}`, nil); code != http.StatusBadRequest {
		t.Errorf("missing switch_count = %d, want 400", code)
	}

	env.do(t, http.MethodGet, "/api/signals", "", &sig)
	if sig.SwitchCount != 7 {
		t.Errorf("GET /api/signals = %+v", sig)
	}
}

func TestReport(t *testing.T) {
	env := newTestEnv(t, true)

	var report models.Report
	if code := env.do(t, http.MethodGet, "/api/report?period=week", "", &report); code != http.StatusOK {
		t.Fatalf("GET /api/report = %d", code)
	}
	if report.Period.Type != "week" || report.SessionCount != 0 {
		t.Errorf("report = %+v", report)
	}

	if code := env.do(t, http.MethodGet, "/api/report?period=decade", "", nil); code != http.StatusBadRequest {
		t.Errorf("invalid period = %d, want 400", code)
	}

	var events []models.UsageEvent
	if code := env.do(t, http.MethodGet, "/api/events?limit=5", "", &events); code != http.StatusOK {
		t.Errorf("GET /api/events = %d", code)
	}
}

func TestReportWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, false)
	if code := env.do(t, http.MethodGet, "/api/report", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/report = %d, want 503", code)
	}
}

func TestSystemAndHealth(t *testing.T) {
	env := newTestEnv(t, false)

	var info map[string]interface{}
	if code := env.do(t, http.MethodGet, "/api/system", "", &info); code != http.StatusOK {
		t.Fatalf("GET /api/system = %d", code)
	}
	for _, key := range []string{"platform", "arch", "cpus"} {
		if _, ok := info[key]; !ok {
			t.Errorf("system info missing %q: %v", key, info)
		}
	}

	var health map[string]string
	env.do(t, http.MethodGet, "/health", "", &health)
	if health["status"] != "healthy" {
		t.Errorf("health = %v", health)
	}
}

func TestHealthUsesHandlerClock(t *testing.T) {
	env := newTestEnv(t, false)
	fixed := time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

	h := NewHandler(env.cfg, env.svc, env.board, nil, env.log)
	h.clock = clock.Func(func() time.Time { return fixed })
	mux := http.NewServeMux()
	h.SetupRoutes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var health map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["time"] != "2026-10-19T14:30:00Z" {
		t.Errorf("health time = %q, want %q", health["time"], "2026-10-19T14:30:00Z")
	}
}

func TestServiceStopped(t *testing.T) {
	env := newTestEnv(t, false)
	env.svc.Stop()
	for env.svc.IsRunning() {
		time.Sleep(time.Millisecond)
	}

	if code := env.do(t, http.MethodPost, "/api/session/start", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("start on stopped service = %d, want 503", code)
	}
}

func TestStream(t *testing.T) {
	env := newTestEnv(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() focus.Snapshot {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("reading stream: %v", err)
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var snap focus.Snapshot
				if err := json.Unmarshal([]byte(data), &snap); err != nil {
					t.Fatalf("decode snapshot: %v", err)
				}
				return snap
			}
		}
	}

	if snap := next(); snap.Session.State != session.StateIdle {
		t.Errorf("first snapshot state = %s", snap.Session.State)
	}

	env.svc.StartSession(context.Background())
	if snap := next(); snap.Session.State != session.StateActive {
		t.Errorf("pushed snapshot state = %s", snap.Session.State)
	}
}

func TestShutdownEndsOpenStream(t *testing.T) {
	env := newTestEnv(t, false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(env.cfg, env.svc, env.board, nil, env.log)
	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() with open stream: %v (after %v)", err, time.Since(start))
	}
	if err := <-served; err != nil {
		t.Errorf("Serve() error: %v", err)
	}

	// the stream ends instead of hanging
	if _, err := io.Copy(io.Discard, reader); err != nil {
		t.Logf("draining stream: %v", err)
	}
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Get(env.srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("GET / = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(env.srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", resp.StatusCode)
	}
}
