// Package journal keeps an audit trail of report conversation outcomes.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zulandar/shiftlog/internal/models"
	"github.com/zulandar/shiftlog/internal/report"
	"gorm.io/gorm"
)

// DefaultLimit is the number of entries Recent returns when limit <= 0.
const DefaultLimit = 20

// Journal records outcomes to the report_logs table. It implements
// report.OutcomeSink.
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Journal on an already migrated database.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: db is required")
	}
	return &Journal{db: db, now: time.Now}, nil
}

// RecordOutcome stores one outcome.
func (j *Journal) RecordOutcome(ctx context.Context, o report.Outcome) error {
	entry := models.ReportLog{
		ReportID:  o.ReportID,
		Platform:  o.Owner.Platform,
		ChannelID: o.Owner.ChannelID,
		UserID:    o.Owner.UserID,
		UserName:  o.Owner.UserName,
		Status:    string(o.Status),
		Step:      o.Step.String(),
		CreatedAt: j.now(),
	}
	if len(o.Row) > 0 {
		b, err := json.Marshal(o.Row)
		if err != nil {
			return fmt.Errorf("journal: marshal row for %s: %w", o.ReportID, err)
		}
		entry.RowData = string(b)
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}
	if err := j.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("journal: record %s: %w", o.ReportID, err)
	}
	return nil
}

// Recent returns the newest entries first.
func (j *Journal) Recent(limit int) ([]models.ReportLog, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var logs []models.ReportLog
	if err := j.db.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return logs, nil
}

// StatusCount is the number of outcomes with one status.
type StatusCount struct {
	Status string
	Count  int64
}

// CountsSince returns how many outcomes of each status were recorded at or
// after since, ordered by status.
func (j *Journal) CountsSince(since time.Time) ([]StatusCount, error) {
	var counts []StatusCount
	err := j.db.Model(&models.ReportLog{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("status").
		Order("status ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("journal: counts: %w", err)
	}
	return counts, nil
}

// Row decodes the stored spreadsheet row of an entry, or nil when none was
// recorded.
func Row(l models.ReportLog) ([]string, error) {
	if l.RowData == "" {
		return nil, nil
	}
	var row []string
	if err := json.Unmarshal([]byte(l.RowData), &row); err != nil {
		return nil, fmt.Errorf("journal: decode row for %s: %w", l.ReportID, err)
	}
	return row, nil
}
