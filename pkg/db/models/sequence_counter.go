package models

import "time"

// SequenceCounter holds the last issued value for one document number prefix.
// The row is locked FOR UPDATE while a number is being issued.
type SequenceCounter struct {
	Prefix    string    `gorm:"column:prefix;primaryKey"`
	LastValue int64     `gorm:"column:last_value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
