// internal/models/bus.go
package models

import (
	"gorm.io/gorm"
)

const (
	BusTypeStandard = "standard"
	BusTypeLuxury   = "luxury"
	BusTypeMini     = "mini"
)

// Bus is a vehicle of the fleet. Buses are never removed, only deactivated.
type Bus struct {
	gorm.Model
	BusNumber          string `json:"bus_number" gorm:"size:32;uniqueIndex;not null"`
	RegistrationNumber string `json:"registration_number" gorm:"size:32;uniqueIndex;not null"`
	GPSDeviceID        string `json:"gps_device_id" gorm:"size:64;index"`
	Capacity           int    `json:"capacity" gorm:"not null;check:capacity > 0"`
	BusType            string `json:"bus_type" gorm:"size:16;default:standard"`
	BusModel           string `json:"model" gorm:"column:model"`
	Year               int    `json:"year"`
	IsActive           bool   `json:"is_active" gorm:"default:true;index"`
}

// ValidBusType reports whether t is one of the known bus types.
func ValidBusType(t string) bool {
	switch t {
	case BusTypeStandard, BusTypeLuxury, BusTypeMini:
		return true
	}
	return false
}
