package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
	"ebus_manager/internal/store"
)

// maxAnalyticsDays bounds the occupancy range a single request may scan.
const maxAnalyticsDays = 366

func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.Store.DashboardStats(c.Request.Context(), h.today())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Dashboard stats retrieved", stats)
}

// ActiveBuses lists today's scheduled and active shifts with each bus's last fix.
func (h *Handler) ActiveBuses(c *gin.Context) {
	buses, err := h.Store.ActiveBuses(c.Request.Context(), h.today())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Active buses retrieved", buses)
}

// OccupancyAnalytics reports daily occupancy between start_date and end_date,
// defaulting to the last seven days.
func (h *Handler) OccupancyAnalytics(c *gin.Context) {
	end := models.DateOnly(h.today())
	var err error
	if raw := c.Query("end_date"); raw != "" {
		if end, err = parseDate(raw, "end_date"); err != nil {
			respondError(c, err)
			return
		}
	}
	start := end.AddDate(0, 0, -7)
	if raw := c.Query("start_date"); raw != "" {
		if start, err = parseDate(raw, "start_date"); err != nil {
			respondError(c, err)
			return
		}
	}
	if start.After(end) {
		respondError(c, apperr.Validation("start_date must not be after end_date"))
		return
	}
	if end.Sub(start) > maxAnalyticsDays*24*time.Hour {
		respondError(c, apperr.Validation("date range must not exceed %d days", maxAnalyticsDays))
		return
	}

	rows, err := h.Store.DailyOccupancy(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Occupancy data retrieved", rows)
}

// AttendanceAnalytics reports per-student booking counts.
func (h *Handler) AttendanceAnalytics(c *gin.Context) {
	f := store.AttendanceFilter{Department: strings.TrimSpace(c.Query("department"))}
	for _, p := range []struct {
		field string
		dst   **time.Time
	}{{"start_date", &f.From}, {"end_date", &f.To}} {
		raw := c.Query(p.field)
		if raw == "" {
			continue
		}
		d, err := parseDate(raw, p.field)
		if err != nil {
			respondError(c, err)
			return
		}
		*p.dst = &d
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		respondError(c, apperr.Validation("start_date must not be after end_date"))
		return
	}

	rows, err := h.Store.StudentAttendance(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Attendance data retrieved", rows)
}
