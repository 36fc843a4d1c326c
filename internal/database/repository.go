package database

import (
	"strings"
	"time"

	"focusnudge/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all database operations for sessions, nudges and usage events
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SessionTotals is the SQL aggregate over session records in a period.
type SessionTotals struct {
	SessionCount   int64
	TotalSeconds   int64
	LongestSeconds int64
}

// CreateSession inserts a finished session
func (r *Repository) CreateSession(rec *models.SessionRecord) error {
	result := r.db.Create(rec)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert session record")
	}
	return nil
}

// CreateNudge inserts a retired nudge
func (r *Repository) CreateNudge(rec *models.NudgeRecord) error {
	result := r.db.Create(rec)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to insert nudge %s", rec.NudgeID)
	}
	return nil
}

// CreateUsageEvent appends a usage event
func (r *Repository) CreateUsageEvent(event *models.UsageEvent) error {
	event.AppName = strings.ToLower(strings.TrimSpace(event.AppName))
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert usage event")
	}
	return nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// GetLatestSession retrieves the most recently ended session, or nil when
// there is none
func (r *Repository) GetLatestSession() (*models.SessionRecord, error) {
	var rec models.SessionRecord
	result := r.db.Order("ended_at DESC").First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest session")
	}
	return &rec, nil
}

// GetSessionTotalsBetween aggregates session durations in [start, end) with SQL
func (r *Repository) GetSessionTotalsBetween(start, end time.Time) (*SessionTotals, error) {
	var totals SessionTotals
	result := r.db.Model(&models.SessionRecord{}).
		Select("COUNT(*) as session_count, COALESCE(SUM(elapsed_seconds), 0) as total_seconds, COALESCE(MAX(elapsed_seconds), 0) as longest_seconds").
		Where("started_at >= ? AND started_at < ?", start, end).
		Scan(&totals)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query session totals")
	}
	return &totals, nil
}

// GetNudgeSummaryBetween groups retired nudges by type
func (r *Repository) GetNudgeSummaryBetween(start, end time.Time) ([]models.NudgeSummary, error) {
	var summaries []models.NudgeSummary
	result := r.db.Model(&models.NudgeRecord{}).
		Select("type, COUNT(*) as total, "+
			"SUM(CASE WHEN action = 'accepted' THEN 1 ELSE 0 END) as accepted, "+
			"SUM(CASE WHEN action = 'accepted' THEN 0 ELSE 1 END) as dismissed").
		Where("retired_at >= ? AND retired_at < ?", start, end).
		Group("type").
		Order("total DESC, type ASC").
		Scan(&summaries)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query nudge summary")
	}
	return summaries, nil
}

// GetRecentNudges returns the last limit retired nudges, most recent first
func (r *Repository) GetRecentNudges(limit int) ([]*models.NudgeRecord, error) {
	var recs []*models.NudgeRecord
	result := r.db.Order("retired_at DESC").Limit(limit).Find(&recs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query recent nudges")
	}
	return recs, nil
}

// GetAppSwitchSummaryBetween counts app switch events per target app
func (r *Repository) GetAppSwitchSummaryBetween(start, end time.Time) ([]models.AppSwitchSummary, error) {
	var summaries []models.AppSwitchSummary
	result := r.db.Model(&models.UsageEvent{}).
		Select("app_name, COUNT(*) as switches").
		Where("kind = ? AND timestamp >= ? AND timestamp < ?", models.EventAppSwitch, start, end).
		Group("app_name").
		Order("switches DESC, app_name ASC").
		Scan(&summaries)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query app switch summary")
	}
	return summaries, nil
}

// GetEventsSince retrieves usage events since a given time, oldest first
func (r *Repository) GetEventsSince(since time.Time, limit int) ([]*models.UsageEvent, error) {
	var events []*models.UsageEvent
	query := r.db.Where("timestamp >= ?", since).Order("timestamp ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&events); result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query usage events")
	}
	return events, nil
}

// DeleteEventsBefore removes usage events older than before
func (r *Repository) DeleteEventsBefore(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.UsageEvent{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old events")
	}
	return result.RowsAffected, nil
}

// Clear removes all tracking data from the database
func (r *Repository) Clear() error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"session_records", "nudge_records", "usage_events", "error_logs"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return errors.Wrapf(err, "failed to clear %s", table)
			}
		}
		return nil
	})
}
