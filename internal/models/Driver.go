// internal/models/driver.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type Driver struct {
	gorm.Model
	DriverCode    string     `json:"driver_code" gorm:"size:32;uniqueIndex;not null"`
	FullName      string     `json:"full_name" gorm:"not null"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email"`
	LicenseNumber string     `json:"license_number" gorm:"size:64;uniqueIndex;not null"`
	LicenseExpiry *time.Time `json:"license_expiry,omitempty" gorm:"type:date"`
	IsActive      bool       `json:"is_active" gorm:"default:true;index"`
}
