// Package models defines the GORM tables used by shiftlog.
package models

import "time"

// ReportLog is one terminal conversation outcome in the audit journal.
// RowData holds the JSON-encoded spreadsheet row for submitted and failed
// reports and is empty for discarded drafts.
type ReportLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ReportID  string    `gorm:"size:36;not null;index"`
	Platform  string    `gorm:"size:16;not null"`
	ChannelID string    `gorm:"size:64"`
	UserID    string    `gorm:"size:64;not null;index"`
	UserName  string    `gorm:"size:128"`
	Status    string    `gorm:"size:16;not null;index"`
	Step      string    `gorm:"size:32"`
	RowData   string    `gorm:"type:text"`
	Error     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}
