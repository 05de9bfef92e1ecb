package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TargetAll      = "all"
	TargetStudents = "students"
	TargetShift    = "shift"
)

type Notification struct {
	gorm.Model
	Title            string     `json:"title" gorm:"not null"`
	Message          string     `json:"message" gorm:"not null"`
	NotificationType string     `json:"notification_type" gorm:"size:32;default:general"`
	TargetType       string     `json:"target_type" gorm:"size:16;default:all"`
	TargetIDs        string     `json:"target_ids"` // JSON array of ids
	SentBy           uint       `json:"sent_by"`
	IsSent           bool       `json:"is_sent"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
}
