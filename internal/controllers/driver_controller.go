package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
)

type driverInput struct {
	DriverCode    string `json:"driver_code" binding:"required"`
	FullName      string `json:"full_name" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Email         string `json:"email"`
	LicenseNumber string `json:"license_number" binding:"required"`
	LicenseExpiry string `json:"license_expiry"` // YYYY-MM-DD
}

func (h *Handler) ListDrivers(c *gin.Context) {
	drivers, err := h.Store.ListDrivers(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Drivers retrieved", drivers)
}

func (h *Handler) CreateDriver(c *gin.Context) {
	var in driverInput
	if !bindJSON(c, &in) {
		return
	}
	d := &models.Driver{
		DriverCode:    strings.TrimSpace(in.DriverCode),
		FullName:      strings.TrimSpace(in.FullName),
		Phone:         in.Phone,
		Email:         in.Email,
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
		IsActive:      true,
	}
	if in.LicenseExpiry != "" {
		exp, err := time.Parse(time.DateOnly, in.LicenseExpiry)
		if err != nil {
			respondError(c, apperr.Validation("license_expiry must be YYYY-MM-DD"))
			return
		}
		d.LicenseExpiry = &exp
	}
	if err := h.Store.CreateDriver(c.Request.Context(), d); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Driver created successfully", d)
}

func (h *Handler) DeactivateDriver(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeactivateDriver(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Driver deactivated successfully", nil)
}
