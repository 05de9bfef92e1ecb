package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	ShiftScheduled = "scheduled"
	ShiftActive    = "active"
	ShiftCompleted = "completed"
	ShiftCancelled = "cancelled"
)

const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftEvening   = "evening"
)

// Shift is one run of a bus with a driver over a route on a date.
// StartTime and EndTime are zero-padded "HH:MM" wall clock values.
type Shift struct {
	gorm.Model
	ShiftCode string    `json:"shift_code" gorm:"size:40;uniqueIndex;not null"`
	BusID     uint      `json:"bus_id" gorm:"not null;index"`
	DriverID  uint      `json:"driver_id" gorm:"not null;index"`
	RouteID   uint      `json:"route_id" gorm:"not null;index"`
	ShiftDate time.Time `json:"shift_date" gorm:"type:date;not null;index"`
	StartTime string    `json:"start_time" gorm:"size:5;not null"`
	EndTime   string    `json:"end_time" gorm:"size:5;not null"`
	ShiftType string    `json:"shift_type" gorm:"size:16;not null"`
	Status    string    `json:"status" gorm:"size:16;default:scheduled;index"`

	ActualStartTime *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`

	Bus    Bus    `gorm:"foreignKey:BusID" json:"bus,omitempty"`
	Driver Driver `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
	Route  Route  `gorm:"foreignKey:RouteID" json:"route,omitempty"`
}

// Open reports whether the shift still counts for conflicts and bookings.
func (s *Shift) Open() bool {
	return s.Status == ShiftScheduled || s.Status == ShiftActive
}

func ValidShiftType(t string) bool {
	switch t {
	case ShiftMorning, ShiftAfternoon, ShiftEvening:
		return true
	}
	return false
}

func ValidShiftStatus(s string) bool {
	switch s {
	case ShiftScheduled, ShiftActive, ShiftCompleted, ShiftCancelled:
		return true
	}
	return false
}

// ParseClock converts "HH:MM" (or "HH:MM:SS", seconds ignored) to minutes after midnight.
func ParseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}
	h, ok := twoDigits(parts[0])
	if !ok || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, ok := twoDigits(parts[1])
	if !ok || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	if len(parts) == 3 {
		if sec, ok := twoDigits(parts[2]); !ok || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q", v)
		}
	}
	return h*60 + m, nil
}

func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DateOnly truncates t to its calendar date in t's location, expressed as UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
