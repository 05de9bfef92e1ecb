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

type studentInput struct {
	StudentCode  string `json:"student_id" binding:"required"`
	FullName     string `json:"full_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
	ParentPhone  string `json:"parent_phone"`
	Department   string `json:"department"`
	Year         int    `json:"year"`
	Address      string `json:"address"`
	PickupStopID *uint  `json:"pickup_stop_id"`
	DropStopID   *uint  `json:"drop_stop_id"`
	Password     string `json:"password" binding:"required,min=8"`
}

func (h *Handler) ListStudents(c *gin.Context) {
	f := store.StudentFilter{
		Department: c.Query("department"),
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       queryPage(c),
	}
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperr.Validation("year must be a number"))
			return
		}
		f.Year = y
	}
	students, total, err := h.Store.ListStudents(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Students retrieved", gin.H{
		"students":   students,
		"pagination": pagination(f.Page, total, 50),
	})
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var in studentInput
	if !bindJSON(c, &in) {
		return
	}
	hashed, err := hashPassword(in.Password)
	if err != nil {
		respondError(c, apperr.Internal("could not hash password", err))
		return
	}
	st := &models.Student{
		StudentCode:  strings.TrimSpace(in.StudentCode),
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        in.Phone,
		ParentPhone:  in.ParentPhone,
		Department:   in.Department,
		Year:         in.Year,
		Address:      in.Address,
		PickupStopID: in.PickupStopID,
		DropStopID:   in.DropStopID,
		PasswordHash: hashed,
		IsActive:     true,
	}
	if err := h.Store.CreateStudent(c.Request.Context(), st); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Student created successfully", st)
}
