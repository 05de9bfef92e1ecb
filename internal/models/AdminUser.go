package models

import "gorm.io/gorm"

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleStudent    = "student"
)

type AdminUser struct {
	gorm.Model
	Username     string `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email        string `json:"email" gorm:"size:128;uniqueIndex;not null"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name"`
	Role         string `json:"role" gorm:"size:16;default:admin"` // "super_admin", "admin"
	IsActive     bool   `json:"is_active" gorm:"default:true"`
}
