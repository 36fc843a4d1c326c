package reporter

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"focusnudge/internal/config"
	"focusnudge/internal/database"
	"focusnudge/internal/models"
)

func newTestReporter(t *testing.T, now time.Time) (*Reporter, *database.Repository) {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	cfg := config.Default()
	cfg.Report.TimeZone = "UTC"
	repo := database.NewRepository(db)
	r := New(cfg, repo)
	r.now = func() time.Time { return now }
	return r, repo
}

func TestGetPeriod(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 10, 21, 15, 30, 0, 0, time.UTC)
	r, _ := newTestReporter(t, now)

	tests := []struct {
		period    string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{"day", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC), false},
		{"today", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC), false},
		{"week", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC), false},
		{"month", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), false},
		{"year", time.Time{}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			p, err := r.GetPeriod(tt.period)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetPeriod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !p.Start.Equal(tt.wantStart) || !p.End.Equal(tt.wantEnd) {
				t.Errorf("GetPeriod() = [%v, %v), want [%v, %v)", p.Start, p.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestGetPeriodWeekOnSunday(t *testing.T) {
	now := time.Date(2026, 10, 25, 23, 0, 0, 0, time.UTC)
	r, _ := newTestReporter(t, now)

	p, err := r.GetPeriod("week")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC); !p.Start.Equal(want) {
		t.Errorf("week start = %v, want %v", p.Start, want)
	}
}

func TestGenerateReport(t *testing.T) {
	now := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)
	r, repo := newTestReporter(t, now)
	morning := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i, secs := range []int64{3600, 1800} {
		start := morning.Add(time.Duration(i) * 2 * time.Hour)
		repo.CreateSession(&models.SessionRecord{
			StartedAt:      start,
			EndedAt:        start.Add(time.Duration(secs) * time.Second),
			ElapsedSeconds: secs,
			EndState:       "stopped",
		})
	}
	for i, action := range []string{"accepted", "dismissed", "accepted", "accepted"} {
		typ := "break"
		if i == 1 {
			typ = "warning"
		}
		repo.CreateNudge(&models.NudgeRecord{
			NudgeID:        "n" + string(rune('a'+i)),
			Type:           typ,
			Title:          "t",
			Priority:       "high",
			Action:         action,
			NudgeCreatedAt: morning,
			RetiredAt:      morning.Add(time.Duration(i) * time.Minute),
		})
	}
	for _, app := range []string{"Slack", "code", "slack", "slack", "code", "browser"} {
		repo.CreateUsageEvent(&models.UsageEvent{Timestamp: morning, Kind: models.EventAppSwitch, AppName: app})
	}

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}

	if report.SessionCount != 2 || report.TotalSeconds != 5400 || report.LongestSeconds != 3600 {
		t.Errorf("session totals = %d/%d/%d", report.SessionCount, report.TotalSeconds, report.LongestSeconds)
	}
	if report.TotalHours != 1.5 || report.TotalMinutes != 90 || report.AverageSeconds != 2700 {
		t.Errorf("durations = %vh %vm avg %v", report.TotalHours, report.TotalMinutes, report.AverageSeconds)
	}
	if report.NudgesAccepted != 3 || report.NudgesDismissed != 1 {
		t.Errorf("nudges accepted=%d dismissed=%d", report.NudgesAccepted, report.NudgesDismissed)
	}
	if len(report.Nudges) != 2 || report.Nudges[0].Type != "break" || report.Nudges[0].Total != 3 {
		t.Errorf("nudge summary = %+v", report.Nudges)
	}
	if report.TotalSwitches != 6 || len(report.Apps) != 3 {
		t.Fatalf("apps = %+v", report.Apps)
	}
	if report.Apps[0].AppName != "slack" || report.Apps[0].Switches != 3 || report.Apps[0].Percentage != 50 {
		t.Errorf("top app = %+v", report.Apps[0])
	}
	if report.SwitchesPerHour != 4 {
		t.Errorf("SwitchesPerHour = %v, want 4", report.SwitchesPerHour)
	}
	// no switch penalty at 4/h, a quarter of nudges dismissed costs 5
	if report.FocusScore != 95 {
		t.Errorf("FocusScore = %d, want 95", report.FocusScore)
	}

	text := r.FormatReportText(report)
	for _, want := range []string{"Focus Report - day", "across 2 sessions", "Longest Session: 1:00:00", "Focus Score: 95%", "slack"} {
		if !strings.Contains(text, want) {
			t.Errorf("text report missing %q:\n%s", want, text)
		}
	}

	js, err := r.FormatReportJSON(report)
	if err != nil {
		t.Fatalf("FormatReportJSON() error: %v", err)
	}
	if !strings.Contains(js, `"focus_score": 95`) {
		t.Errorf("json report = %s", js)
	}
}

func TestGenerateReportEmpty(t *testing.T) {
	r, _ := newTestReporter(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	report, err := r.GenerateReport("week")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}
	if report.SessionCount != 0 || report.FocusScore != 0 || report.AverageSeconds != 0 {
		t.Errorf("empty report = %+v", report)
	}
	if text := r.FormatReportText(report); !strings.Contains(text, "No focus sessions") {
		t.Errorf("text = %s", text)
	}
}

func TestFocusScore(t *testing.T) {
	tests := []struct {
		name   string
		report models.Report
		want   int
	}{
		{"no time", models.Report{}, 0},
		{"perfect", models.Report{TotalSeconds: 3600, SwitchesPerHour: 2}, 100},
		{"busy", models.Report{TotalSeconds: 3600, SwitchesPerHour: 10}, 70},
		{"switch penalty capped", models.Report{TotalSeconds: 3600, SwitchesPerHour: 100}, 40},
		{"all dismissed", models.Report{TotalSeconds: 3600, NudgesDismissed: 4}, 80},
		{"floor", models.Report{TotalSeconds: 3600, SwitchesPerHour: 100, NudgesDismissed: 1}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FocusScore(&tt.report); got != tt.want {
				t.Errorf("FocusScore() = %d, want %d", got, tt.want)
			}
		})
	}
}
