package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
	"ebus_manager/internal/store"
)

type busInput struct {
	BusNumber          string `json:"bus_number" binding:"required"`
	RegistrationNumber string `json:"registration_number" binding:"required"`
	Capacity           int    `json:"capacity" binding:"required,gt=0"`
	BusType            string `json:"bus_type"`
	Model              string `json:"model"`
	Year               int    `json:"year"`
	GPSDeviceID        string `json:"gps_device_id"`
}

func (h *Handler) ListBuses(c *gin.Context) {
	f := store.BusFilter{Search: strings.TrimSpace(c.Query("search")), Page: queryPage(c)}
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apperr.Validation("is_active must be true or false"))
			return
		}
		f.Active = &active
	}
	buses, total, err := h.Store.ListBuses(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Buses retrieved successfully", gin.H{
		"buses":      buses,
		"pagination": pagination(f.Page, total, 50),
	})
}

func (h *Handler) GetBus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	bus, err := h.Store.FindBus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Bus retrieved", bus)
}

func (h *Handler) CreateBus(c *gin.Context) {
	var in busInput
	if !bindJSON(c, &in) {
		return
	}
	bus, err := in.toBus()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.CreateBus(c.Request.Context(), bus); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Bus created successfully", bus)
}

func (in busInput) toBus() (*models.Bus, error) {
	if in.BusType == "" {
		in.BusType = models.BusTypeStandard
	}
	if !models.ValidBusType(in.BusType) {
		return nil, apperr.Validation("unknown bus_type %q", in.BusType)
	}
	return &models.Bus{
		BusNumber:          strings.TrimSpace(in.BusNumber),
		RegistrationNumber: strings.TrimSpace(in.RegistrationNumber),
		Capacity:           in.Capacity,
		BusType:            in.BusType,
		BusModel:           in.Model,
		Year:               in.Year,
		GPSDeviceID:        in.GPSDeviceID,
		IsActive:           true,
	}, nil
}

type busUpdate struct {
	BusNumber          *string `json:"bus_number"`
	RegistrationNumber *string `json:"registration_number"`
	Capacity           *int    `json:"capacity"`
	BusType            *string `json:"bus_type"`
	Model              *string `json:"model"`
	Year               *int    `json:"year"`
	GPSDeviceID        *string `json:"gps_device_id"`
	IsActive           *bool   `json:"is_active"`
}

// columns maps the fields present in the request onto bus columns.
func (in busUpdate) columns() (map[string]any, error) {
	fields := map[string]any{}
	if in.BusNumber != nil {
		fields["bus_number"] = strings.TrimSpace(*in.BusNumber)
	}
	if in.RegistrationNumber != nil {
		fields["registration_number"] = strings.TrimSpace(*in.RegistrationNumber)
	}
	if in.Capacity != nil {
		if *in.Capacity <= 0 {
			return nil, apperr.Validation("capacity must be positive")
		}
		fields["capacity"] = *in.Capacity
	}
	if in.BusType != nil {
		if !models.ValidBusType(*in.BusType) {
			return nil, apperr.Validation("unknown bus_type %q", *in.BusType)
		}
		fields["bus_type"] = *in.BusType
	}
	if in.Model != nil {
		fields["model"] = *in.Model
	}
	if in.Year != nil {
		fields["year"] = *in.Year
	}
	if in.GPSDeviceID != nil {
		fields["gps_device_id"] = *in.GPSDeviceID
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	return fields, nil
}

// UpdateBus applies a partial update. Only known columns are accepted.
func (h *Handler) UpdateBus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in busUpdate
	if !bindJSON(c, &in) {
		return
	}
	fields, err := in.columns()
	if err != nil {
		respondError(c, err)
		return
	}
	bus, err := h.Store.UpdateBus(c.Request.Context(), id, fields)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Bus updated successfully", bus)
}

// DeactivateBus clears is_active and drops the bus from the realtime layer.
func (h *Handler) DeactivateBus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeactivateBus(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.Publisher.RemoveBus(c.Request.Context(), id)
	respond(c, http.StatusOK, "Bus deactivated successfully", nil)
}

func (h *Handler) BusLocation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	loc, err := h.Tracker.LatestPosition(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Location retrieved", loc)
}
