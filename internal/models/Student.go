package models

import "gorm.io/gorm"

type Student struct {
	gorm.Model
	StudentCode  string `json:"student_code" gorm:"size:32;uniqueIndex;not null"`
	FullName     string `json:"full_name" gorm:"not null"`
	Email        string `json:"email" gorm:"size:128;uniqueIndex;not null"`
	Phone        string `json:"phone"`
	ParentPhone  string `json:"parent_phone"`
	Department   string `json:"department" gorm:"index"`
	Year         int    `json:"year"`
	Address      string `json:"address"`
	PickupStopID *uint  `json:"pickup_stop_id,omitempty"`
	DropStopID   *uint  `json:"drop_stop_id,omitempty"`
	PasswordHash string `json:"-"`
	FCMToken     string `json:"-"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
}
