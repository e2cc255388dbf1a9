package models

import (
	"time"

	"gorm.io/datatypes"
)

// SweepRun records the outcome of one expiry sweep.
type SweepRun struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	StartedAt  time.Time         `gorm:"index" json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Expired    int               `gorm:"not null;default:0" json:"expired"`
	Processed  int               `gorm:"not null;default:0" json:"processed"`
	Floated    int64             `gorm:"not null;default:0" json:"floated"`
	Failed     int               `gorm:"not null;default:0" json:"failed"`
	Details    datatypes.JSONMap `gorm:"type:json" json:"details"`
}
