package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type bookInput struct {
	ShiftID    uint `json:"shift_id" binding:"required"`
	SeatNumber int  `json:"seat_number" binding:"required"`
}

func (h *Handler) BookableShifts(c *gin.Context) {
	shifts, err := h.Allocator.BookableShifts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Available shifts retrieved", shifts)
}

// ShiftSeats returns the seat map, marking the caller's own seat.
func (h *Handler) ShiftSeats(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	shiftID, ok := paramID(c, "shiftId")
	if !ok {
		return
	}
	seats, err := h.Allocator.ShiftSeats(c.Request.Context(), shiftID, claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Seat map retrieved", seats)
}

func (h *Handler) BookSeat(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var in bookInput
	if !bindJSON(c, &in) {
		return
	}
	alloc, err := h.Allocator.BookSeat(c.Request.Context(), claims.UserID, in.ShiftID, in.SeatNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Seat booked successfully", alloc)
}

func (h *Handler) MyBookings(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	bookings, err := h.Allocator.StudentBookings(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Bookings retrieved", bookings)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	alloc, err := h.Allocator.CancelBooking(c.Request.Context(), claims.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Booking cancelled", alloc)
}

// AllocateSeat books a seat on behalf of a student.
func (h *Handler) AllocateSeat(c *gin.Context) {
	var in struct {
		bookInput
		StudentID uint `json:"student_id" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	alloc, err := h.Allocator.AllocateSeat(c.Request.Context(), claims.UserID, in.StudentID, in.ShiftID, in.SeatNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Seat allocated successfully", alloc)
}

func (h *Handler) ShiftAllocations(c *gin.Context) {
	shiftID, ok := paramID(c, "shift_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	allocs, err := h.Allocator.ShiftAllocations(ctx, shiftID)
	if err != nil {
		respondError(c, err)
		return
	}
	occ, err := h.Allocator.Occupancy(ctx, shiftID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Seat allocations retrieved", gin.H{
		"allocations": allocs,
		"occupancy":   occ,
	})
}
