package reporter

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"focusnudge/internal/config"
	"focusnudge/internal/database"
	"focusnudge/internal/models"
	"focusnudge/pkg/utils"
)

// Reporter handles report generation
type Reporter struct {
	config *config.Config
	repo   *database.Repository
	now    func() time.Time
}

// New creates a new reporter
func New(cfg *config.Config, repo *database.Repository) *Reporter {
	return &Reporter{
		config: cfg,
		repo:   repo,
		now:    time.Now,
	}
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(periodType string) (*models.Report, error) {
	period, err := r.GetPeriod(periodType)
	if err != nil {
		return nil, err
	}

	totals, err := r.repo.GetSessionTotalsBetween(period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get session totals: %w", err)
	}

	nudges, err := r.repo.GetNudgeSummaryBetween(period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get nudge summary: %w", err)
	}

	apps, err := r.repo.GetAppSwitchSummaryBetween(period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get app switch summary: %w", err)
	}

	report := &models.Report{
		Period:         *period,
		SessionCount:   totals.SessionCount,
		TotalSeconds:   totals.TotalSeconds,
		TotalMinutes:   float64(totals.TotalSeconds) / 60.0,
		TotalHours:     float64(totals.TotalSeconds) / 3600.0,
		LongestSeconds: totals.LongestSeconds,
		Nudges:         nudges,
		Apps:           apps,
		GeneratedAt:    r.now(),
	}
	if totals.SessionCount > 0 {
		report.AverageSeconds = float64(totals.TotalSeconds) / float64(totals.SessionCount)
	}

	for _, n := range nudges {
		report.NudgesAccepted += n.Accepted
		report.NudgesDismissed += n.Dismissed
	}

	for _, a := range apps {
		report.TotalSwitches += a.Switches
	}
	if report.TotalSwitches > 0 {
		for i := range report.Apps {
			report.Apps[i].Percentage = (float64(report.Apps[i].Switches) / float64(report.TotalSwitches)) * 100.0
		}
	}
	if report.TotalHours > 0 {
		report.SwitchesPerHour = float64(report.TotalSwitches) / report.TotalHours
	}

	report.FocusScore = FocusScore(report)
	return report, nil
}

// FocusScore rates a period from 0 to 100. Switching more than four times
// per focused hour costs 5 points per extra switch (at most 60), and ignored
// nudges cost up to 20 points in proportion to the dismissal ratio. A period
// without focused time scores 0.
func FocusScore(report *models.Report) int {
	if report.TotalSeconds <= 0 {
		return 0
	}

	score := 100.0
	if extra := report.SwitchesPerHour - 4; extra > 0 {
		score -= math.Min(extra*5, 60)
	}
	if retired := report.NudgesAccepted + report.NudgesDismissed; retired > 0 {
		score -= 20 * float64(report.NudgesDismissed) / float64(retired)
	}
	return int(math.Round(math.Max(score, 0)))
}

// GetPeriod calculates the time range for the report
func (r *Reporter) GetPeriod(periodType string) (*models.ReportPeriod, error) {
	loc, err := r.config.Location()
	if err != nil {
		return nil, err
	}
	now := r.now().In(loc)
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Focus Report - %s\n", report.Period.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))

	if report.SessionCount == 0 {
		b.WriteString("\nNo focus sessions recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Focused Time: %.2fh (%.0fm) across %d sessions\n",
		report.TotalHours, report.TotalMinutes, report.SessionCount)
	fmt.Fprintf(&b, "Longest Session: %s   Average: %s\n",
		utils.FormatClock(report.LongestSeconds),
		utils.FormatClock(int64(report.AverageSeconds)))
	fmt.Fprintf(&b, "Focus Score: %d%%\n", report.FocusScore)

	if len(report.Nudges) > 0 {
		fmt.Fprintf(&b, "\n%-20s %10s %10s %10s\n", "Nudge", "Total", "Accepted", "Dismissed")
		b.WriteString(strings.Repeat("-", 53) + "\n")
		for _, n := range report.Nudges {
			fmt.Fprintf(&b, "%-20s %10d %10d %10d\n", n.Type, n.Total, n.Accepted, n.Dismissed)
		}
	}

	if len(report.Apps) > 0 {
		fmt.Fprintf(&b, "\nApp Switches: %d (%.1f per focused hour)\n", report.TotalSwitches, report.SwitchesPerHour)
		fmt.Fprintf(&b, "%-30s %10s %10s\n", "Application", "Switches", "Percent")
		b.WriteString(strings.Repeat("-", 52) + "\n")
		for _, app := range report.Apps {
			fmt.Fprintf(&b, "%-30s %10d %9.1f%%\n", truncate(app.AppName, 30), app.Switches, app.Percentage)
		}
	}

	return b.String()
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
