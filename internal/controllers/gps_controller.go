package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/store"
	"ebus_manager/internal/tracking"
)

// LogGPS records one position sample from a device or an admin tool.
func (h *Handler) LogGPS(c *gin.Context) {
	var in tracking.PositionReport
	if !bindJSON(c, &in) {
		return
	}
	log, err := h.Tracker.LogPosition(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "GPS data logged", log)
}

func (h *Handler) GPSHistory(c *gin.Context) {
	busID, ok := paramID(c, "bus_id")
	if !ok {
		return
	}
	q := store.GPSQuery{BusID: busID}
	for name, dst := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, apperr.Validation("%s must be an RFC3339 timestamp", name))
			return
		}
		*dst = &t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, apperr.Validation("limit must be a positive number"))
			return
		}
		q.Limit = n
	}
	logs, err := h.Tracker.History(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "GPS history retrieved", logs)
}

// ShiftETAs estimates arrival at each stop from the bus's latest position.
func (h *Handler) ShiftETAs(c *gin.Context) {
	shiftID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	shift, err := h.Scheduler.Get(ctx, shiftID)
	if err != nil {
		respondError(c, err)
		return
	}
	pos, err := h.Tracker.LatestPosition(ctx, shift.BusID)
	if err != nil {
		respondError(c, err)
		return
	}
	etas, err := h.Tracker.EstimateArrivals(ctx, shiftID, pos.Latitude, pos.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "ETAs computed", gin.H{"position": pos, "stops": etas})
}
