// Package realtime mirrors the latest bus and seat state into external
// publish/subscribe stores. Every write is a full-value replacement of the
// value stored under a key; the stores are never read back and never treated
// as authoritative.
package realtime

import (
	"context"
	"fmt"
	"strings"
)

// Broadcaster is a latest-value sink keyed by slash separated paths.
type Broadcaster interface {
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

func LocationKey(busID uint) string { return fmt.Sprintf("buses/%d/location", busID) }

func StatusKey(busID uint) string { return fmt.Sprintf("buses/%d/status", busID) }

func BusKey(busID uint) string { return fmt.Sprintf("buses/%d", busID) }

func OccupancyKey(shiftID uint) string { return fmt.Sprintf("shifts/%d/occupancy", shiftID) }

func StopKey(shiftID, stopID uint) string {
	return fmt.Sprintf("shifts/%d/stops/%d", shiftID, stopID)
}

// TopicOf returns the subscription topic a key belongs to, its first two
// path segments ("buses/3/location" -> "buses/3").
func TopicOf(key string) string {
	parts := strings.SplitN(strings.Trim(key, "/"), "/", 3)
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + "/" + parts[1]
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

type BusStatus struct {
	Status     string `json:"status"`
	ShiftID    uint   `json:"shiftId"`
	ShiftType  string `json:"shiftType"`
	DriverName string `json:"driverName"`
	RouteName  string `json:"routeName"`
	UpdatedAt  int64  `json:"updatedAt"`
}

type Occupancy struct {
	TotalSeats     int   `json:"totalSeats"`
	OccupiedSeats  int   `json:"occupiedSeats"`
	AvailableSeats int   `json:"availableSeats"`
	UpdatedAt      int64 `json:"updatedAt"`
}

type StopETA struct {
	ETA       int   `json:"eta"` // minutes
	UpdatedAt int64 `json:"updatedAt"`
}
