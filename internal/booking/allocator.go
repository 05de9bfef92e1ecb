// Package booking allocates numbered seats on shifts to students.
package booking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/metrics"
	"ebus_manager/internal/models"
	"ebus_manager/internal/realtime"
)

type Repository interface {
	// BookSeat locks the shift, passes it (with Bus loaded) and its
	// non-cancelled allocations to decide, and inserts the returned allocation.
	BookSeat(ctx context.Context, shiftID uint,
		decide func(shift *models.Shift, active []models.SeatAllocation) (*models.SeatAllocation, error),
	) (*models.SeatAllocation, error)
	CancelAllocation(ctx context.Context, id uint, decide func(*models.SeatAllocation) error) (*models.SeatAllocation, error)
	ShiftWithBus(ctx context.Context, id uint) (*models.Shift, error)
	ActiveAllocations(ctx context.Context, shiftID uint) ([]models.SeatAllocation, error)
	CountActiveAllocations(ctx context.Context, shiftIDs []uint) (map[uint]int, error)
	BookableShifts(ctx context.Context, from time.Time) ([]models.Shift, error)
	StudentAllocations(ctx context.Context, studentID uint) ([]models.SeatAllocation, error)
}

type Seat struct {
	SeatNumber int  `json:"seat_number"`
	IsBooked   bool `json:"is_booked"`
	IsOwn      bool `json:"is_own"`
}

type SeatMap struct {
	ShiftID    uint      `json:"shift_id"`
	ShiftCode  string    `json:"shift_code"`
	ShiftDate  time.Time `json:"shift_date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Status     string    `json:"status"`
	BusNumber  string    `json:"bus_number"`
	RouteName  string    `json:"route_name"`
	TotalSeats int       `json:"total_seats"`
	Seats      []Seat    `json:"seats"`
}

type BookableShift struct {
	models.Shift
	BookedSeats    int `json:"booked_seats"`
	AvailableSeats int `json:"available_seats"`
}

type Allocator struct {
	repo      Repository
	publisher *realtime.Publisher
	metrics   *metrics.Collector
	loc       *time.Location
	now       func() time.Time
}

func NewAllocator(repo Repository, publisher *realtime.Publisher, m *metrics.Collector, loc *time.Location) *Allocator {
	if loc == nil {
		loc = time.Local
	}
	return &Allocator{repo: repo, publisher: publisher, metrics: m, loc: loc, now: time.Now}
}

// BookSeat reserves seatNumber on shiftID for studentID. The checks run in
// order against a locked shift: seat range, seat free, student not already
// booked, shift open.
func (a *Allocator) BookSeat(ctx context.Context, studentID, shiftID uint, seatNumber int) (*models.SeatAllocation, error) {
	return a.book(ctx, studentID, shiftID, seatNumber, logrus.Fields{})
}

// AllocateSeat is BookSeat performed by an admin on a student's behalf.
func (a *Allocator) AllocateSeat(ctx context.Context, adminID, studentID, shiftID uint, seatNumber int) (*models.SeatAllocation, error) {
	return a.book(ctx, studentID, shiftID, seatNumber, logrus.Fields{"allocated_by": adminID})
}

func (a *Allocator) book(ctx context.Context, studentID, shiftID uint, seatNumber int, fields logrus.Fields) (*models.SeatAllocation, error) {
	if studentID == 0 || shiftID == 0 {
		return nil, apperr.Validation("student and shift are required")
	}
	alloc, err := a.repo.BookSeat(ctx, shiftID, func(shift *models.Shift, active []models.SeatAllocation) (*models.SeatAllocation, error) {
		if seatNumber < 1 || seatNumber > shift.Bus.Capacity {
			return nil, apperr.Validation("seat number must be between 1 and %d", shift.Bus.Capacity)
		}
		for _, al := range active {
			if al.SeatNumber == seatNumber {
				return nil, apperr.Conflict(apperr.CodeSeatTaken, "seat %d is already booked", seatNumber)
			}
		}
		for _, al := range active {
			if al.StudentID == studentID {
				return nil, apperr.Conflict(apperr.CodeAlreadyBooked, "you already have seat %d on this shift", al.SeatNumber)
			}
		}
		if !shift.Open() {
			return nil, apperr.Conflict(apperr.CodeShiftClosed, "shift is %s and no longer accepts bookings", shift.Status)
		}
		return &models.SeatAllocation{
			StudentID:      studentID,
			ShiftID:        shift.ID,
			SeatNumber:     seatNumber,
			AllocationDate: shift.ShiftDate,
			Status:         models.AllocationAllocated,
		}, nil
	})
	if err != nil {
		a.metrics.Booking("rejected")
		return nil, err
	}

	a.metrics.Booking("booked")
	fields["student_id"] = studentID
	fields["shift_id"] = shiftID
	fields["seat"] = seatNumber
	logrus.WithFields(fields).Info("Seat booked")
	a.pushOccupancy(ctx, shiftID)
	return alloc, nil
}

// CancelBooking releases a student's own allocation.
func (a *Allocator) CancelBooking(ctx context.Context, studentID, allocationID uint) (*models.SeatAllocation, error) {
	alloc, err := a.repo.CancelAllocation(ctx, allocationID, func(al *models.SeatAllocation) error {
		if al.StudentID != studentID {
			return apperr.NotFound("booking", allocationID)
		}
		if al.Status == models.AllocationCancelled {
			return apperr.Conflict(apperr.CodeAlreadyCancelled, "booking is already cancelled")
		}
		al.Status = models.AllocationCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.metrics.Booking("cancelled")
	logrus.WithFields(logrus.Fields{
		"student_id": studentID,
		"booking_id": allocationID,
		"shift_id":   alloc.ShiftID,
	}).Info("Booking cancelled")
	a.pushOccupancy(ctx, alloc.ShiftID)
	return alloc, nil
}

// Occupancy recomputes seat counts for a shift from the store.
func (a *Allocator) Occupancy(ctx context.Context, shiftID uint) (realtime.Occupancy, error) {
	shift, err := a.repo.ShiftWithBus(ctx, shiftID)
	if err != nil {
		return realtime.Occupancy{}, err
	}
	active, err := a.repo.ActiveAllocations(ctx, shiftID)
	if err != nil {
		return realtime.Occupancy{}, err
	}
	total := shift.Bus.Capacity
	return realtime.Occupancy{
		TotalSeats:     total,
		OccupiedSeats:  len(active),
		AvailableSeats: max(total-len(active), 0),
	}, nil
}

func (a *Allocator) pushOccupancy(ctx context.Context, shiftID uint) {
	occ, err := a.Occupancy(ctx, shiftID)
	if err != nil {
		logrus.WithError(err).WithField("shift_id", shiftID).Warn("Occupancy recompute failed")
		return
	}
	a.publisher.Occupancy(ctx, shiftID, occ)
}

// ShiftSeats returns every seat of the shift's bus with booking flags
// relative to requesterID.
func (a *Allocator) ShiftSeats(ctx context.Context, shiftID, requesterID uint) (*SeatMap, error) {
	shift, err := a.repo.ShiftWithBus(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	active, err := a.repo.ActiveAllocations(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	owner := make(map[int]uint, len(active))
	for _, al := range active {
		owner[al.SeatNumber] = al.StudentID
	}

	seats := make([]Seat, shift.Bus.Capacity)
	for i := range seats {
		n := i + 1
		student, booked := owner[n]
		seats[i] = Seat{SeatNumber: n, IsBooked: booked, IsOwn: booked && student == requesterID}
	}
	return &SeatMap{
		ShiftID:    shift.ID,
		ShiftCode:  shift.ShiftCode,
		ShiftDate:  shift.ShiftDate,
		StartTime:  shift.StartTime,
		EndTime:    shift.EndTime,
		Status:     shift.Status,
		BusNumber:  shift.Bus.BusNumber,
		RouteName:  shift.Route.RouteName,
		TotalSeats: shift.Bus.Capacity,
		Seats:      seats,
	}, nil
}

// BookableShifts lists open shifts from today on with seat counts.
func (a *Allocator) BookableShifts(ctx context.Context) ([]BookableShift, error) {
	shifts, err := a.repo.BookableShifts(ctx, models.DateOnly(a.now().In(a.loc)))
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(shifts))
	for i, sh := range shifts {
		ids[i] = sh.ID
	}
	counts, err := a.repo.CountActiveAllocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]BookableShift, len(shifts))
	for i, sh := range shifts {
		booked := counts[sh.ID]
		out[i] = BookableShift{
			Shift:          sh,
			BookedSeats:    booked,
			AvailableSeats: max(sh.Bus.Capacity-booked, 0),
		}
	}
	return out, nil
}

func (a *Allocator) StudentBookings(ctx context.Context, studentID uint) ([]models.SeatAllocation, error) {
	return a.repo.StudentAllocations(ctx, studentID)
}

// ShiftAllocations lists who sits where on a shift.
func (a *Allocator) ShiftAllocations(ctx context.Context, shiftID uint) ([]models.SeatAllocation, error) {
	if _, err := a.repo.ShiftWithBus(ctx, shiftID); err != nil {
		return nil, err
	}
	return a.repo.ActiveAllocations(ctx, shiftID)
}
