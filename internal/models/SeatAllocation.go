package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AllocationAllocated = "allocated"
	AllocationCancelled = "cancelled"
)

// SeatAllocation is a student's claim on one seat of one shift.
// Rows are never deleted; cancelling flips Status. Uniqueness of
// (shift, seat) and (shift, student) among non-cancelled rows is enforced
// by partial indexes created in config.Migrate.
type SeatAllocation struct {
	gorm.Model
	StudentID      uint      `json:"student_id" gorm:"not null;index"`
	ShiftID        uint      `json:"shift_id" gorm:"not null;index"`
	SeatNumber     int       `json:"seat_number" gorm:"not null"`
	AllocationDate time.Time `json:"allocation_date" gorm:"type:date"`
	Status         string    `json:"status" gorm:"size:16;default:allocated;index"`

	Student Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Shift   Shift   `gorm:"foreignKey:ShiftID" json:"shift,omitempty"`
}
