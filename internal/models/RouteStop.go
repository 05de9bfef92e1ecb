package models

import (
	"gorm.io/gorm"
)

// RouteStop is a pickup/drop point along a route.
// StopOrder is 1-based and contiguous within a route.
type RouteStop struct {
	gorm.Model

	RouteID              uint    `json:"route_id" gorm:"not null;uniqueIndex:idx_route_stop_order"`
	StopName             string  `json:"stop_name" gorm:"not null"`
	StopOrder            int     `json:"stop_order" gorm:"not null;uniqueIndex:idx_route_stop_order"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	ArrivalOffsetMinutes int     `json:"arrival_offset_minutes"`
}
