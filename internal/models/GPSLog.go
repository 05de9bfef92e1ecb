package models

import (
	"time"
)

// GPSLog is an immutable position sample. Rows older than the retention
// horizon are purged, so it carries no soft-delete column.
type GPSLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BusID     uint      `json:"bus_id" gorm:"not null;index:idx_gps_bus_time,priority:1"`
	ShiftID   *uint     `json:"shift_id,omitempty" gorm:"index"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`    // km/h
	Heading   float64   `json:"heading"`  // degrees
	Accuracy  float64   `json:"accuracy"` // meters
	Timestamp time.Time `json:"timestamp" gorm:"not null;index;index:idx_gps_bus_time,priority:2"`
}
