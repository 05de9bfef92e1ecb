package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
	"ebus_manager/internal/scheduling"
	"ebus_manager/internal/store"
)

type shiftInput struct {
	BusID     uint   `json:"bus_id" binding:"required"`
	DriverID  uint   `json:"driver_id" binding:"required"`
	RouteID   uint   `json:"route_id" binding:"required"`
	ShiftDate string `json:"shift_date" binding:"required"` // YYYY-MM-DD
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	ShiftType string `json:"shift_type" binding:"required"`
}

func parseDate(raw, field string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return d, nil
}

func scheduleInput(in shiftInput, date time.Time) scheduling.ShiftInput {
	return scheduling.ShiftInput{
		BusID:     in.BusID,
		DriverID:  in.DriverID,
		RouteID:   in.RouteID,
		Date:      date,
		StartTime: strings.TrimSpace(in.StartTime),
		EndTime:   strings.TrimSpace(in.EndTime),
		ShiftType: strings.ToLower(strings.TrimSpace(in.ShiftType)),
	}
}

func (h *Handler) ListShifts(c *gin.Context) {
	f := store.ShiftFilter{Status: c.Query("status"), Page: queryPage(c)}
	if raw := c.Query("date"); raw != "" {
		d, err := parseDate(raw, "date")
		if err != nil {
			respondError(c, err)
			return
		}
		f.Date = &d
	}
	var err error
	if f.BusID, err = queryUint(c, "bus_id"); err != nil {
		respondError(c, err)
		return
	}
	if f.DriverID, err = queryUint(c, "driver_id"); err != nil {
		respondError(c, err)
		return
	}
	if f.RouteID, err = queryUint(c, "route_id"); err != nil {
		respondError(c, err)
		return
	}

	shifts, err := h.Scheduler.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Shifts retrieved", shifts)
}

func (h *Handler) GetShift(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	shift, err := h.Scheduler.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Shift retrieved", shift)
}

func (h *Handler) CreateShift(c *gin.Context) {
	var in shiftInput
	if !bindJSON(c, &in) {
		return
	}
	date, err := parseDate(in.ShiftDate, "shift_date")
	if err != nil {
		respondError(c, err)
		return
	}
	shift, err := h.Scheduler.CreateShift(c.Request.Context(), scheduleInput(in, date))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Shift created successfully", shift)
}

// UpdateShiftStatus moves a shift through its lifecycle. Cancelling a shift
// notifies its booked students in the background.
func (h *Handler) UpdateShiftStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	shift, err := h.Scheduler.UpdateStatus(c.Request.Context(), id, in.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	if shift.Status == models.ShiftCancelled {
		if h.Simulator != nil {
			h.Simulator.Stop(shift.ID)
		}
		if h.Notifier != nil {
			go h.Notifier.NotifyShiftCancelled(context.WithoutCancel(c.Request.Context()), shift)
		}
	}
	respond(c, http.StatusOK, "Shift status updated", shift)
}
