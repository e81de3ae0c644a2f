package models

import (
	"time"

	"gorm.io/datatypes"
)

// SweepReport records the outcome of one expiration sweep: how many
// auctions settled sold/unsold, how many were skipped because a concurrent
// sweep got there first, and how many errored. Details holds the
// per-auction breakdown as JSON.
type SweepReport struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement"`
	Sold       int            `gorm:"not null;default:0"`
	Unsold     int            `gorm:"not null;default:0"`
	Skipped    int            `gorm:"not null;default:0"`
	Errored    int            `gorm:"not null;default:0"`
	Details    datatypes.JSON `gorm:"type:jsonb"`
	StartedAt  time.Time      `gorm:"type:timestamptz;not null"`
	FinishedAt time.Time      `gorm:"type:timestamptz;not null;index"`
}

func (SweepReport) TableName() string {
	return "sweep_reports"
}
