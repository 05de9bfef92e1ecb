package models

import (
	"gorm.io/gorm"
)

// Route is a fixed path served by shifts. Stops are ordered by StopOrder.
type Route struct {
	gorm.Model

	RouteCode                string  `json:"route_code" gorm:"size:32;uniqueIndex;not null"`
	RouteName                string  `json:"route_name" gorm:"not null"`
	StartLocation            string  `json:"start_location"`
	EndLocation              string  `json:"end_location"`
	TotalDistanceKm          float64 `json:"total_distance_km"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	IsActive                 bool    `json:"is_active" gorm:"default:true;index"`

	// WKB LineString through the stops, rebuilt whenever the stops change.
	Geometry []byte `json:"-" gorm:"type:bytea"`

	Stops []RouteStop `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops,omitempty"`
}
