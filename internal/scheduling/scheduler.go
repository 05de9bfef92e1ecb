// Package scheduling creates shifts without bus or driver double-booking
// and drives the shift status machine.
package scheduling

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/metrics"
	"ebus_manager/internal/models"
	"ebus_manager/internal/realtime"
	"ebus_manager/internal/store"
)

type Repository interface {
	// CreateShift calls check with the open shifts of the same date that
	// share the bus or driver and inserts shift if check returns nil. Both
	// resources are locked while this runs.
	CreateShift(ctx context.Context, shift *models.Shift, check func(existing []models.Shift) error) error
	// UpdateShift applies mutate to the locked shift and persists it.
	UpdateShift(ctx context.Context, id uint, mutate func(*models.Shift) error) (*models.Shift, error)
	FindShift(ctx context.Context, id uint) (*models.Shift, error)
	ListShifts(ctx context.Context, f store.ShiftFilter) ([]models.Shift, error)
	OpenShiftsOn(ctx context.Context, day time.Time) ([]models.Shift, error)
}

// ShiftInput is a request to schedule a shift.
type ShiftInput struct {
	BusID     uint
	DriverID  uint
	RouteID   uint
	Date      time.Time
	StartTime string
	EndTime   string
	ShiftType string
}

type Scheduler struct {
	repo      Repository
	publisher *realtime.Publisher
	metrics   *metrics.Collector
	loc       *time.Location
	now       func() time.Time
}

func NewScheduler(repo Repository, publisher *realtime.Publisher, m *metrics.Collector, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{repo: repo, publisher: publisher, metrics: m, loc: loc, now: time.Now}
}

var transitions = map[string][]string{
	models.ShiftScheduled: {models.ShiftActive, models.ShiftCancelled},
	models.ShiftActive:    {models.ShiftCompleted, models.ShiftCancelled},
}

// CanTransition reports whether a shift may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Overlaps applies the inclusive window rule: touching endpoints overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && aEnd >= bStart
}

func (s *Scheduler) CreateShift(ctx context.Context, in ShiftInput) (*models.Shift, error) {
	start, end, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	shift := &models.Shift{
		ShiftCode: newShiftCode(s.now()),
		BusID:     in.BusID,
		DriverID:  in.DriverID,
		RouteID:   in.RouteID,
		ShiftDate: models.DateOnly(in.Date),
		StartTime: models.FormatClock(start),
		EndTime:   models.FormatClock(end),
		ShiftType: in.ShiftType,
		Status:    models.ShiftScheduled,
	}

	err = s.repo.CreateShift(ctx, shift, func(existing []models.Shift) error {
		return findConflict(shift, start, end, existing)
	})
	if err != nil {
		switch apperr.Code(err) {
		case apperr.CodeBusConflict:
			s.metrics.ShiftConflict("bus")
		case apperr.CodeDriverConflict:
			s.metrics.ShiftConflict("driver")
		}
		return nil, err
	}

	s.metrics.ShiftCreated()
	logrus.WithFields(logrus.Fields{
		"shift_id":   shift.ID,
		"shift_code": shift.ShiftCode,
		"bus_id":     shift.BusID,
		"driver_id":  shift.DriverID,
		"date":       shift.ShiftDate.Format(time.DateOnly),
	}).Info("Shift scheduled")
	return shift, nil
}

func validateInput(in ShiftInput) (start, end int, err error) {
	if in.BusID == 0 || in.DriverID == 0 || in.RouteID == 0 {
		return 0, 0, apperr.Validation("bus_id, driver_id and route_id are required")
	}
	if in.Date.IsZero() {
		return 0, 0, apperr.Validation("shift_date is required")
	}
	if !models.ValidShiftType(in.ShiftType) {
		return 0, 0, apperr.Validation("shift_type must be morning, afternoon or evening")
	}
	if start, err = models.ParseClock(in.StartTime); err != nil {
		return 0, 0, apperr.Validation("start_time: %v", err)
	}
	if end, err = models.ParseClock(in.EndTime); err != nil {
		return 0, 0, apperr.Validation("end_time: %v", err)
	}
	if end <= start {
		return 0, 0, apperr.Validation("end_time must be after start_time")
	}
	return start, end, nil
}

// findConflict returns a conflict naming the clashing resource, preferring the bus.
func findConflict(shift *models.Shift, start, end int, existing []models.Shift) error {
	var driverClash *models.Shift
	for i := range existing {
		ex := &existing[i]
		if !ex.Open() || !models.DateOnly(ex.ShiftDate).Equal(shift.ShiftDate) {
			continue
		}
		exStart, err1 := models.ParseClock(ex.StartTime)
		exEnd, err2 := models.ParseClock(ex.EndTime)
		if err1 != nil || err2 != nil {
			logrus.WithField("shift_id", ex.ID).Warn("Shift with unparseable times ignored in conflict check")
			continue
		}
		if !Overlaps(start, end, exStart, exEnd) {
			continue
		}
		if ex.BusID == shift.BusID {
			return apperr.Conflict(apperr.CodeBusConflict,
				"bus %d already has shift %s from %s to %s", ex.BusID, ex.ShiftCode, ex.StartTime, ex.EndTime)
		}
		if ex.DriverID == shift.DriverID && driverClash == nil {
			driverClash = ex
		}
	}
	if driverClash != nil {
		return apperr.Conflict(apperr.CodeDriverConflict,
			"driver %d already has shift %s from %s to %s",
			driverClash.DriverID, driverClash.ShiftCode, driverClash.StartTime, driverClash.EndTime)
	}
	return nil
}

// UpdateStatus moves a shift along the status machine and mirrors the bus
// status when the shift starts or completes.
func (s *Scheduler) UpdateStatus(ctx context.Context, id uint, to string) (*models.Shift, error) {
	if !models.ValidShiftStatus(to) {
		return nil, apperr.Validation("unknown status %q", to)
	}
	now := s.now()
	var from string
	shift, err := s.repo.UpdateShift(ctx, id, func(sh *models.Shift) error {
		if !CanTransition(sh.Status, to) {
			return apperr.InvalidTransition(sh.Status, to)
		}
		from = sh.Status
		sh.Status = to
		switch to {
		case models.ShiftActive:
			sh.ActualStartTime = &now
		case models.ShiftCompleted:
			sh.ActualEndTime = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ShiftTransition(to)
	logrus.WithFields(logrus.Fields{
		"shift_id": id,
		"from":     from,
		"to":       to,
	}).Info("Shift status changed")

	if to == models.ShiftActive || to == models.ShiftCompleted {
		s.publisher.BusStatus(ctx, shift.BusID, realtime.BusStatus{
			Status:     to,
			ShiftID:    shift.ID,
			ShiftType:  shift.ShiftType,
			DriverName: shift.Driver.FullName,
			RouteName:  shift.Route.RouteName,
		})
	}
	return shift, nil
}

func (s *Scheduler) Get(ctx context.Context, id uint) (*models.Shift, error) {
	return s.repo.FindShift(ctx, id)
}

func (s *Scheduler) List(ctx context.Context, f store.ShiftFilter) ([]models.Shift, error) {
	if f.Status != "" && !models.ValidShiftStatus(f.Status) {
		return nil, apperr.Validation("unknown status %q", f.Status)
	}
	return s.repo.ListShifts(ctx, f)
}

func newShiftCode(now time.Time) string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("SH-%d", now.UnixNano())
	}
	return fmt.Sprintf("SH-%d-%s", now.UnixMilli(), hex.EncodeToString(b))
}
