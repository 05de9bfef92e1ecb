package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ebus_manager/internal/models"
)

// ShiftFilter narrows shift listings. Zero values are ignored.
type ShiftFilter struct {
	Date     *time.Time
	Status   string
	BusID    uint
	DriverID uint
	RouteID  uint
	Page     Page
}

var openStatuses = []string{models.ShiftScheduled, models.ShiftActive}

func withShiftDetails(q *gorm.DB) *gorm.DB {
	return q.Preload("Bus").Preload("Driver").Preload("Route")
}

// CreateShift inserts shift after check accepted the open shifts on the same
// date that share its bus or driver. The bus and driver rows stay locked for
// the duration, so concurrent creations for either resource serialize.
func (s *Store) CreateShift(ctx context.Context, shift *models.Shift, check func(existing []models.Shift) error) error {
	return s.inTx(ctx, "CreateShift", func(tx *gorm.DB) error {
		var bus models.Bus
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_active = ?", true).First(&bus, shift.BusID).Error; err != nil {
			return notFoundOr("lock", "bus", shift.BusID, err)
		}
		var driver models.Driver
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_active = ?", true).First(&driver, shift.DriverID).Error; err != nil {
			return notFoundOr("lock", "driver", shift.DriverID, err)
		}
		var route models.Route
		if err := tx.Where("is_active = ?", true).First(&route, shift.RouteID).Error; err != nil {
			return notFoundOr("load", "route", shift.RouteID, err)
		}

		var existing []models.Shift
		if err := tx.Where("shift_date = ? AND status IN ?", shift.ShiftDate, openStatuses).
			Where("bus_id = ? OR driver_id = ?", shift.BusID, shift.DriverID).
			Order("start_time").
			Find(&existing).Error; err != nil {
			return wrap("load same-day shifts", err)
		}
		if err := check(existing); err != nil {
			return err
		}

		if err := tx.Create(shift).Error; err != nil {
			return duplicateError("create shift", err)
		}
		shift.Bus, shift.Driver, shift.Route = bus, driver, route
		return nil
	})
}

// UpdateShift applies mutate to the locked shift row and saves it.
func (s *Store) UpdateShift(ctx context.Context, id uint, mutate func(*models.Shift) error) (*models.Shift, error) {
	var shift models.Shift
	err := s.inTx(ctx, "UpdateShift", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&shift, id).Error; err != nil {
			return notFoundOr("lock", "shift", id, err)
		}
		if err := mutate(&shift); err != nil {
			return err
		}
		return wrap("save shift", tx.Omit(clause.Associations).Save(&shift).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.FindShift(ctx, id)
}

func (s *Store) FindShift(ctx context.Context, id uint) (*models.Shift, error) {
	var shift models.Shift
	if err := withShiftDetails(s.db.WithContext(ctx)).First(&shift, id).Error; err != nil {
		return nil, notFoundOr("find", "shift", id, err)
	}
	return &shift, nil
}

func (s *Store) ListShifts(ctx context.Context, f ShiftFilter) ([]models.Shift, error) {
	q := withShiftDetails(s.db.WithContext(ctx).Model(&models.Shift{}))
	if f.Date != nil {
		q = q.Where("shift_date = ?", models.DateOnly(*f.Date))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.BusID != 0 {
		q = q.Where("bus_id = ?", f.BusID)
	}
	if f.DriverID != 0 {
		q = q.Where("driver_id = ?", f.DriverID)
	}
	if f.RouteID != 0 {
		q = q.Where("route_id = ?", f.RouteID)
	}
	var shifts []models.Shift
	if err := f.Page.apply(q).Order("shift_date DESC, start_time").Find(&shifts).Error; err != nil {
		return nil, wrap("list shifts", err)
	}
	return shifts, nil
}

// OpenShiftsOn returns the scheduled and active shifts of a date.
func (s *Store) OpenShiftsOn(ctx context.Context, day time.Time) ([]models.Shift, error) {
	var shifts []models.Shift
	err := s.db.WithContext(ctx).
		Where("shift_date = ? AND status IN ?", models.DateOnly(day), openStatuses).
		Order("start_time").
		Find(&shifts).Error
	if err != nil {
		return nil, wrap("list open shifts", err)
	}
	return shifts, nil
}

// BookableShifts returns open shifts dated on or after from.
func (s *Store) BookableShifts(ctx context.Context, from time.Time) ([]models.Shift, error) {
	var shifts []models.Shift
	err := withShiftDetails(s.db.WithContext(ctx)).
		Where("shift_date >= ? AND status IN ?", models.DateOnly(from), openStatuses).
		Order("shift_date, start_time").
		Find(&shifts).Error
	if err != nil {
		return nil, wrap("list bookable shifts", err)
	}
	return shifts, nil
}

// ShiftWithBus loads a shift and its bus, which carries the seat capacity.
func (s *Store) ShiftWithBus(ctx context.Context, id uint) (*models.Shift, error) {
	var shift models.Shift
	if err := s.db.WithContext(ctx).Preload("Bus").Preload("Route").First(&shift, id).Error; err != nil {
		return nil, notFoundOr("find", "shift", id, err)
	}
	return &shift, nil
}
